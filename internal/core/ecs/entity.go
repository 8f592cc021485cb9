package ecs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

// EntityKind distinguishes player-controlled from autonomous entities.
type EntityKind uint8

const (
	KindPlayer EntityKind = iota + 1
	KindNPC
)

func (k EntityKind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EntityRef is the immutable identity of a simulated entity.
type EntityRef struct {
	kind  EntityKind
	id    EntityID
	name  string
	owner uuid.UUID
}

// NewEntityRef builds an identity. The display name is trimmed and NFC
// normalised so that visually equal names compare equal. owner is the
// controlling connection; uuid.Nil for server-driven entities.
func NewEntityRef(kind EntityKind, id EntityID, displayName string, owner uuid.UUID) EntityRef {
	return EntityRef{
		kind:  kind,
		id:    id,
		name:  norm.NFC.String(strings.TrimSpace(displayName)),
		owner: owner,
	}
}

func (r EntityRef) Kind() EntityKind    { return r.kind }
func (r EntityRef) ID() EntityID        { return r.id }
func (r EntityRef) DisplayName() string { return r.name }

// Owner returns the controlling connection, if any.
func (r EntityRef) Owner() (uuid.UUID, bool) {
	return r.owner, r.owner != uuid.Nil
}

// EntityPool manages entity allocation with generational indices and a free list.
// Safe for concurrent use; spawns arrive from the network goroutines as well
// as the game loop.
type EntityPool struct {
	mu          sync.Mutex
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
		nextIndex:   1, // index 0 is reserved so that the zero EntityID is never live
	}
}

func (p *EntityPool) Create() EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	for int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx == 0 || idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx == 0 || idx >= p.nextIndex {
		return
	}
	if p.generations[idx] != id.Generation() {
		return // already destroyed (stale reference)
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}
