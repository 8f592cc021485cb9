package ecs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kamstrup/intmap"
)

// ErrDuplicateEntity is returned by Registry.Add for an id already present.
var ErrDuplicateEntity = errors.New("duplicate entity")

// Registry tracks live Characters with two access paths: an id lookup and a
// dense active list. Removal swaps the last element into the hole, so the
// active list never has gaps and every id in one structure is in the other.
type Registry struct {
	mu     sync.RWMutex
	index  *intmap.Map[EntityID, int]
	active []*Character
}

func NewRegistry() *Registry {
	return &Registry{
		index:  intmap.New[EntityID, int](256),
		active: make([]*Character, 0, 256),
	}
}

// Add admits an entity into simulation and returns its Character.
func (r *Registry) Add(ref EntityRef) (*Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index.Get(ref.id); ok {
		return nil, fmt.Errorf("add entity %s: %w", ref.id, ErrDuplicateEntity)
	}
	c := newCharacter(ref)
	r.index.Put(ref.id, len(r.active))
	r.active = append(r.active, c)
	return c, nil
}

// Remove drops the entity and detaches its components. Unknown ids are ignored.
func (r *Registry) Remove(id EntityID) {
	r.mu.Lock()
	pos, ok := r.index.Get(id)
	if !ok {
		r.mu.Unlock()
		return
	}
	c := r.active[pos]
	last := len(r.active) - 1
	if pos != last {
		moved := r.active[last]
		r.active[pos] = moved
		r.index.Put(moved.ref.id, pos)
	}
	r.active[last] = nil
	r.active = r.active[:last]
	r.index.Del(id)
	r.mu.Unlock()

	c.Lock()
	c.SetAlive(false)
	c.detachAll()
	c.Unlock()
}

func (r *Registry) Get(id EntityID) (*Character, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index.Get(id)
	if !ok {
		return nil, false
	}
	return r.active[pos], true
}

// ActiveList returns a copy of the dense active list.
func (r *Registry) ActiveList() []*Character {
	return r.AppendActive(nil)
}

// AppendActive appends the active list to dst, letting callers reuse a buffer.
func (r *Registry) AppendActive(dst []*Character) []*Character {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append(dst, r.active...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
