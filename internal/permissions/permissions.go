// Package permissions — группы прав с наследованием от родителя.
package permissions

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Имена прав, которые проверяет конвейер валидации.
const (
	CanBuild         = "tshock.world.modify"
	EditSpawn        = "tshock.world.editspawn"
	EditRegion       = "tshock.admin.editregion"
	AntiBuild        = "tshock.admin.antibuild"
	EditClientSide   = "tshock.world.editclientside"
	MoveNPC          = "tshock.world.movenpc"
	Teleport         = "tshock.tp.self"
	IgnoreDamageCap  = "tshock.ignore.damage"
	IgnoreKillTile   = "tshock.ignore.removetile"
	IgnorePlaceTile  = "tshock.ignore.placetile"
	IgnoreLiquid     = "tshock.ignore.liquid"
	IgnoreProjectile = "tshock.ignore.projectile"
	IgnoreNoClip     = "tshock.ignore.noclip"
	IgnoreStatHack   = "tshock.ignore.hp"
	IgnoreStackHack  = "tshock.ignore.itemstack"
	UseBannedItem    = "tshock.itemban.bypass"
	BypassInventory  = "tshock.ignore.ssc"
	AdminAPI         = "tshock.admin.api"
	ReservedSlot     = "tshock.reservedslot"
	Wildcard         = "*"
)

const (
	DefaultGroupName    = "default"
	GuestGroupName      = "guest"
	SuperAdminGroupName = "superadmin"

	negationPrefix = "!"
)

// Group — именованный набор прав. Права родителя наследуются,
// "!право" в дочерней группе отменяет унаследованное.
type Group struct {
	Name   string
	Parent *Group

	allowed map[string]bool
	negated map[string]bool
}

// NewGroup создает группу с указанными правами.
func NewGroup(name string, parent *Group, perms ...string) *Group {
	g := &Group{Name: name, Parent: parent, allowed: map[string]bool{}, negated: map[string]bool{}}
	for _, p := range perms {
		g.add(p)
	}
	return g
}

func (g *Group) add(p string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return
	}
	if strings.HasPrefix(p, negationPrefix) {
		g.negated[strings.TrimPrefix(p, negationPrefix)] = true
		return
	}
	g.allowed[p] = true
}

// HasPermission проверяет право с учетом цепочки родителей.
// Nil-группа не имеет прав.
func (g *Group) HasPermission(perm string) bool {
	seen := map[*Group]bool{}
	for cur := g; cur != nil && !seen[cur]; cur = cur.Parent {
		seen[cur] = true
		if cur.negated[perm] {
			return false
		}
		if cur.allowed[perm] || cur.allowed[Wildcard] {
			return true
		}
	}
	return false
}

// Permissions возвращает собственные права группы (без родителя).
func (g *Group) Permissions() []string {
	out := make([]string, 0, len(g.allowed)+len(g.negated))
	for p := range g.allowed {
		out = append(out, p)
	}
	for p := range g.negated {
		out = append(out, negationPrefix+p)
	}
	return out
}

// Registry — набор групп по имени. Только чтение после загрузки.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*Group
}

type fileGroup struct {
	Name        string   `yaml:"name"`
	Parent      string   `yaml:"parent"`
	Permissions []string `yaml:"permissions"`
}

type groupsFile struct {
	Groups []fileGroup `yaml:"groups"`
}

// DefaultRegistry возвращает встроенные группы guest → default → vip → admin, плюс superadmin.
func DefaultRegistry() *Registry {
	guest := NewGroup(GuestGroupName, nil, CanBuild)
	def := NewGroup(DefaultGroupName, guest)
	vip := NewGroup("vip", def, ReservedSlot)
	admin := NewGroup("admin", vip,
		EditSpawn, EditRegion, AntiBuild, MoveNPC, Teleport, IgnoreDamageCap, IgnoreKillTile, IgnorePlaceTile,
		IgnoreLiquid, IgnoreProjectile, IgnoreNoClip, IgnoreStatHack, IgnoreStackHack, UseBannedItem,
		BypassInventory, AdminAPI)
	super := NewGroup(SuperAdminGroupName, nil, Wildcard)
	r := &Registry{groups: map[string]*Group{}}
	for _, g := range []*Group{guest, def, vip, admin, super} {
		r.groups[g.Name] = g
	}
	return r
}

// LoadRegistry читает группы из YAML. Родитель может быть объявлен позже потомка.
func LoadRegistry(data []byte) (*Registry, error) {
	var f groupsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("permissions: разбор yaml: %w", err)
	}
	r := &Registry{groups: map[string]*Group{}}
	for _, fg := range f.Groups {
		if fg.Name == "" {
			return nil, fmt.Errorf("permissions: группа без имени")
		}
		if _, dup := r.groups[fg.Name]; dup {
			return nil, fmt.Errorf("permissions: группа %q описана дважды", fg.Name)
		}
		r.groups[fg.Name] = NewGroup(fg.Name, nil, fg.Permissions...)
	}
	for _, fg := range f.Groups {
		if fg.Parent == "" {
			continue
		}
		parent, ok := r.groups[fg.Parent]
		if !ok {
			return nil, fmt.Errorf("permissions: у группы %q неизвестный родитель %q", fg.Name, fg.Parent)
		}
		r.groups[fg.Name].Parent = parent
	}
	for name, g := range r.groups {
		if hasCycle(g) {
			return nil, fmt.Errorf("permissions: цикл наследования через группу %q", name)
		}
	}
	if _, ok := r.groups[DefaultGroupName]; !ok {
		return nil, fmt.Errorf("permissions: нет группы %q", DefaultGroupName)
	}
	return r, nil
}

// LoadRegistryFile читает группы из файла; пустой путь — встроенные группы.
func LoadRegistryFile(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("permissions: чтение %s: %w", path, err)
	}
	return LoadRegistry(data)
}

func hasCycle(g *Group) bool {
	seen := map[*Group]bool{}
	for cur := g; cur != nil; cur = cur.Parent {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

// Get возвращает группу по имени; для неизвестного имени — группу по умолчанию.
func (r *Registry) Get(name string) *Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.groups[name]; ok {
		return g
	}
	return r.groups[DefaultGroupName]
}

// Lookup возвращает группу только если она существует.
func (r *Registry) Lookup(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[name]
	return g, ok
}

// Guest — группа неавторизованных соединений.
func (r *Registry) Guest() *Group {
	if g, ok := r.Lookup(GuestGroupName); ok {
		return g
	}
	return r.Get(DefaultGroupName)
}
