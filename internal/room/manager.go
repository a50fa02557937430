package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps at most one runtime per session id and drives each one
// with its own 1Hz tick goroutine bound to the application context.
type Manager struct {
	ctx         context.Context
	provisioner Provisioner

	mu    sync.RWMutex
	rooms map[uuid.UUID]*Runtime
}

func NewManager(ctx context.Context, provisioner Provisioner) *Manager {
	return &Manager{
		ctx:         ctx,
		provisioner: provisioner,
		rooms:       make(map[uuid.UUID]*Runtime),
	}
}

// Open returns the runtime for the session, creating and starting its tick
// loop when absent. onClose is wired only for a newly created runtime.
func (m *Manager) Open(sessionID uuid.UUID, duration time.Duration, onClose CloseFunc) *Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.rooms[sessionID]; ok {
		return rt
	}

	rt := NewRuntime(sessionID, duration, m.provisioner, func(id uuid.UUID) {
		m.Remove(id)
		if onClose != nil {
			onClose(id)
		}
	})
	m.rooms[sessionID] = rt

	go rt.Run(m.ctx)

	return rt
}

func (m *Manager) Get(sessionID uuid.UUID) (*Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.rooms[sessionID]
	return rt, ok
}

func (m *Manager) Remove(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, sessionID)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}

// CloseAll shuts every open runtime, used on graceful shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	rooms := make([]*Runtime, 0, len(m.rooms))
	for _, rt := range m.rooms {
		rooms = append(rooms, rt)
	}
	m.mu.RUnlock()

	for _, rt := range rooms {
		rt.Close()
	}
}
