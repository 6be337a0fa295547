package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Equal(t, 59, c.Limits.InventorySize)
	assert.Equal(t, 1000, c.Limits.MaxProjectile)
	assert.Equal(t, int16(509), c.Special.Wrench)
	assert.Equal(t, uint16(21), c.Special.ChestTile)
}

func TestRequiredTool(t *testing.T) {
	c := Default()
	cases := []struct {
		tile uint16
		want Tool
	}{
		{1, ToolPickaxe},   // камень
		{5, ToolAxe},       // дерево
		{26, ToolHammer},   // алтарь
		{4, ToolNone},      // факел ломается руками
		{3, ToolNone},      // трава срезается
		{250, ToolPickaxe}, // неизвестный тип требует кирку
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.RequiredTool(tc.tile), "тайл %d", tc.tile)
	}
}

func TestItemCapabilities(t *testing.T) {
	c := Default()
	assert.True(t, c.Item(1).Has(ToolPickaxe))
	assert.False(t, c.Item(1).Has(ToolAxe))
	assert.True(t, c.Item(166).Explosive)
	assert.Equal(t, 21, c.Item(48).CreateTile)
	assert.Equal(t, 1, c.Item(26).CreateWall)

	unknown := c.Item(1500)
	assert.Equal(t, -1, unknown.CreateTile)
	assert.False(t, unknown.Has(ToolPickaxe))

	it, ok := c.ItemByName("Lava Bucket")
	require.True(t, ok)
	b, ok := c.Bucket(it.ID)
	require.True(t, ok)
	assert.Equal(t, 2, b)
}

func TestFamilies(t *testing.T) {
	c := Default()
	t.Run("tiles", func(t *testing.T) {
		assert.True(t, c.SameTileFamily(2, 199), "трава")
		assert.True(t, c.SameTileFamily(1, 181), "мох относится к камню")
		assert.True(t, c.SameTileFamily(53, 234), "песок")
		assert.False(t, c.SameTileFamily(2, 1), "трава и камень")
		assert.False(t, c.SameTileFamily(21, 21), "сундук не в семействе")
	})
	t.Run("walls", func(t *testing.T) {
		assert.True(t, c.SameWallFamily(1, 83))
		assert.True(t, c.SameWallFamily(63, 81))
		assert.False(t, c.SameWallFamily(1, 63))
		assert.False(t, c.SameWallFamily(2, 2))
	})
}

func TestMaxStyles(t *testing.T) {
	c := Default()
	s, ok := c.MaxStyle(4)
	require.True(t, ok)
	assert.Equal(t, uint8(11), s)
	_, ok = c.MaxStyle(1)
	assert.False(t, ok)
}

func TestLoadRejectsDuplicateItems(t *testing.T) {
	_, err := Load([]byte(`
items:
  - {id: 1, name: A}
  - {id: 1, name: B}
limits: {max_tile_sets: 1, max_wall_types: 1, max_item_types: 2}
`))
	assert.Error(t, err)

	_, err = Load([]byte(`items: []`))
	assert.Error(t, err, "без limits каталог бесполезен")
}
