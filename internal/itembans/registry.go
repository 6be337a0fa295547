// Package itembans — реестр запрещенных предметов.
//
// Предмет запрещен для соединения, если он есть в реестре и группа соединения
// (с учетом родителей) не входит в список разрешенных для этого предмета.
package itembans

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/packetguard/internal/permissions"
)

// Ban — запрет на предмет.
type Ban struct {
	Name          string   `json:"name"`
	AllowedGroups []string `json:"allowed_groups,omitempty"`
}

// Allows сообщает, разрешен ли предмет группе или одному из ее родителей.
func (b Ban) Allows(g *permissions.Group) bool {
	seen := map[*permissions.Group]bool{}
	for cur := g; cur != nil && !seen[cur]; cur = cur.Parent {
		seen[cur] = true
		if slices.Contains(b.AllowedGroups, cur.Name) {
			return true
		}
	}
	return false
}

// Source — внешний источник списка запретов.
type Source interface {
	Load(ctx context.Context) ([]Ban, error)
}

// Registry — потокобезопасный реестр; имена сравниваются без учета регистра.
type Registry struct {
	mu   sync.RWMutex
	bans map[string]Ban
}

func NewRegistry(bans ...Ban) *Registry {
	r := &Registry{}
	r.Replace(bans)
	return r
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Replace атомарно заменяет весь список.
func (r *Registry) Replace(bans []Ban) {
	next := make(map[string]Ban, len(bans))
	for _, b := range bans {
		if k := key(b.Name); k != "" {
			next[k] = b
		}
	}
	r.mu.Lock()
	r.bans = next
	r.mu.Unlock()
}

// Reload загружает список из источника. При ошибке прежний список остается.
func (r *Registry) Reload(ctx context.Context, src Source) (int, error) {
	bans, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("itembans: загрузка: %w", err)
	}
	r.Replace(bans)
	return len(bans), nil
}

func (r *Registry) Add(b Ban) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans[key(b.Name)] = b
}

func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bans[key(name)]
	delete(r.bans, key(name))
	return ok
}

// Listed — предмет присутствует в реестре.
func (r *Registry) Listed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bans[key(name)]
	return ok
}

// IsBanned — предмет запрещен для группы.
func (r *Registry) IsBanned(name string, g *permissions.Group) bool {
	r.mu.RLock()
	b, ok := r.bans[key(name)]
	r.mu.RUnlock()
	return ok && !b.Allows(g)
}

// List возвращает запреты, отсортированные по имени.
func (r *Registry) List() []Ban {
	r.mu.RLock()
	out := make([]Ban, 0, len(r.bans))
	for _, b := range r.bans {
		out = append(out, b)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return key(out[i].Name) < key(out[j].Name) })
	return out
}
