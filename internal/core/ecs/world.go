package ecs

import (
	"sync"

	"github.com/google/uuid"
)

// World is the top-level container. It owns the entity pool, the registry of
// live Characters, and a deferred destruction queue flushed by CleanupSystem
// each tick.
type World struct {
	pool     *EntityPool
	registry *Registry

	mu           sync.Mutex
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Spawn allocates an id and admits a new Character for it.
func (w *World) Spawn(kind EntityKind, displayName string, owner uuid.UUID) (*Character, error) {
	id := w.pool.Create()
	c, err := w.registry.Add(NewEntityRef(kind, id, displayName, owner))
	if err != nil {
		w.pool.Destroy(id)
		return nil, err
	}
	return c, nil
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.mu.Unlock()
}

// FlushDestroyQueue removes all queued entities from simulation and returns
// the ids that were destroyed. Called by CleanupSystem at the end of each tick.
func (w *World) FlushDestroyQueue() []EntityID {
	w.mu.Lock()
	queued := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, cap(queued))
	w.mu.Unlock()

	for _, id := range queued {
		w.registry.Remove(id)
		w.pool.Destroy(id)
	}
	return queued
}
