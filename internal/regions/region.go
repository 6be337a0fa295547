// Package regions — прямоугольные защищенные зоны мира с приоритетом Z.
// Конвейер только читает регионы; изменяются они административными средствами.
package regions

import (
	"slices"

	"github.com/annel0/packetguard/internal/player"
)

// Rect — прямоугольник в клетках. Правая и нижняя границы включаются.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains сообщает, лежит ли клетка внутри прямоугольника.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Region — защищенная зона.
type Region struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Area          Rect     `json:"area"`
	Owner         string   `json:"owner"`
	AllowedIDs    []int64  `json:"allowed_ids"`
	AllowedGroups []string `json:"allowed_groups"`
	DisableBuild  bool     `json:"disable_build"`
	Z             int      `json:"z"`
}

// InArea — клетка внутри региона.
func (r *Region) InArea(x, y int) bool { return r.Area.Contains(x, y) }

// CanBuild — может ли соединение менять клетки региона.
// Регион без защиты разрешает всем; защищенный — только вошедшим владельцу,
// разрешенным учетным записям и группам.
func (r *Region) CanBuild(p *player.Player) bool {
	if !r.DisableBuild {
		return true
	}
	if !p.LoggedIn {
		return false
	}
	if p.AccountName != "" && p.AccountName == r.Owner {
		return true
	}
	if slices.Contains(r.AllowedIDs, p.AccountID) {
		return true
	}
	return p.Group != nil && slices.Contains(r.AllowedGroups, p.Group.Name)
}
