package regions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/packetguard/internal/logging"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
)

// Store — постоянное хранилище регионов.
type Store interface {
	LoadRegions(ctx context.Context) ([]Region, error)
	SaveRegion(ctx context.Context, r Region) error
	DeleteRegion(ctx context.Context, name string) error
}

// Manager — индекс регионов. Чтения конкурентны, изменения сериализуются.
type Manager struct {
	mu      sync.RWMutex
	regions []*Region // по убыванию Z
	store   Store
	log     *logging.Logger
}

// NewManager создает индекс; store может быть nil.
func NewManager(store Store) *Manager {
	return &Manager{store: store, log: logging.GetComponentLogger("regions")}
}

// Reload перечитывает регионы из хранилища.
func (m *Manager) Reload(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	list, err := m.store.LoadRegions(ctx)
	if err != nil {
		return fmt.Errorf("regions: загрузка: %w", err)
	}
	regions := make([]*Region, 0, len(list))
	for i := range list {
		r := list[i]
		regions = append(regions, &r)
	}
	sortByZ(regions)

	m.mu.Lock()
	m.regions = regions
	m.mu.Unlock()
	m.log.Info("Загружено регионов: %d", len(regions))
	return nil
}

func sortByZ(rs []*Region) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Z > rs[j].Z })
}

// Add добавляет регион (и сохраняет его, если есть хранилище).
func (m *Manager) Add(ctx context.Context, r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.regions {
		if cur.Name == r.Name {
			return fmt.Errorf("regions: регион %q уже существует", r.Name)
		}
	}
	if m.store != nil {
		if err := m.store.SaveRegion(ctx, r); err != nil {
			return fmt.Errorf("regions: сохранение %q: %w", r.Name, err)
		}
	}
	m.regions = append(m.regions, &r)
	sortByZ(m.regions)
	return nil
}

// Remove удаляет регион по имени.
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.regions {
		if cur.Name != name {
			continue
		}
		if m.store != nil {
			if err := m.store.DeleteRegion(ctx, name); err != nil {
				return fmt.Errorf("regions: удаление %q: %w", name, err)
			}
		}
		m.regions = append(m.regions[:i], m.regions[i+1:]...)
		return nil
	}
	return fmt.Errorf("regions: регион %q не найден", name)
}

// At возвращает регионы, содержащие клетку, от высшего Z к низшему.
func (m *Manager) At(x, y int) []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Region
	for _, r := range m.regions {
		if r.InArea(x, y) {
			out = append(out, *r)
		}
	}
	return out
}

// InArea — клетка входит хотя бы в один регион.
func (m *Manager) InArea(x, y int) bool {
	_, ok := m.Top(x, y)
	return ok
}

// Top — регион с наибольшим Z, содержащий клетку. При равных Z — добавленный раньше.
func (m *Manager) Top(x, y int) (Region, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.regions {
		if r.InArea(x, y) {
			return *r, true
		}
	}
	return Region{}, false
}

// CanBuild решает по верхнему региону клетки. Право editregion обходит защиту.
func (m *Manager) CanBuild(p *player.Player, x, y int) bool {
	if p.HasPermission(permissions.EditRegion) {
		return true
	}
	top, ok := m.Top(x, y)
	if !ok {
		return true
	}
	return top.CanBuild(p)
}

// Names — имена регионов в клетке.
func (m *Manager) Names(x, y int) []string {
	var names []string
	for _, r := range m.At(x, y) {
		names = append(names, r.Name)
	}
	return names
}

// Count — число регионов.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regions)
}
