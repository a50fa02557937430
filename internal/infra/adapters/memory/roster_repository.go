package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/domain/models"
)

// RosterRepository is the authoritative membership record of open rooms.
// The participants counter stored on a Session is derived from it.
type RosterRepository interface {
	// AddMember is idempotent: joining twice with the same identity keeps
	// the identity in the roster exactly once.
	AddMember(ctx context.Context, sessionID uuid.UUID, participant models.Participant)

	RemoveMember(ctx context.Context, sessionID, userID uuid.UUID)

	// RemoveAll drops a session's whole roster when its room closes.
	RemoveAll(ctx context.Context, sessionID uuid.UUID)

	Members(ctx context.Context, sessionID uuid.UUID) []models.Participant
	Count(ctx context.Context, sessionID uuid.UUID) int

	// SessionOf reports which session the user is currently in. A user is
	// in at most one room at a time.
	SessionOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool)
}

type rosterRepository struct {
	members  map[uuid.UUID]map[uuid.UUID]models.Participant
	sessions map[uuid.UUID]uuid.UUID

	mu sync.RWMutex
}

func NewRosterRepository() RosterRepository {
	return &rosterRepository{
		members:  make(map[uuid.UUID]map[uuid.UUID]models.Participant),
		sessions: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *rosterRepository) AddMember(ctx context.Context, sessionID uuid.UUID, participant models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[participant.ID]; ok && prev != sessionID {
		delete(r.members[prev], participant.ID)
	}

	if _, ok := r.members[sessionID]; !ok {
		r.members[sessionID] = make(map[uuid.UUID]models.Participant)
	}

	r.members[sessionID][participant.ID] = participant
	r.sessions[participant.ID] = sessionID
}

func (r *rosterRepository) RemoveMember(ctx context.Context, sessionID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sessionID]; !ok {
		return
	}

	delete(r.members[sessionID], userID)
	if len(r.members[sessionID]) == 0 {
		delete(r.members, sessionID)
	}

	if r.sessions[userID] == sessionID {
		delete(r.sessions, userID)
	}
}

func (r *rosterRepository) RemoveAll(ctx context.Context, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID := range r.members[sessionID] {
		delete(r.sessions, userID)
	}

	delete(r.members, sessionID)
}

func (r *rosterRepository) Members(ctx context.Context, sessionID uuid.UUID) []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]models.Participant, 0, len(r.members[sessionID]))

	for _, p := range r.members[sessionID] {
		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].Name < participants[j].Name
	})

	return participants
}

func (r *rosterRepository) Count(ctx context.Context, sessionID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members[sessionID])
}

func (r *rosterRepository) SessionOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.sessions[userID]
	return sessionID, ok
}
