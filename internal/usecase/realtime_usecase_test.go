package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowdesk/flowdesk/internal/domain/events"
	"github.com/flowdesk/flowdesk/internal/domain/models"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/memory"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres/repository"
	"github.com/flowdesk/flowdesk/internal/room"
)

type fakeWSRepo struct {
	mu     sync.Mutex
	writes map[uuid.UUID][]events.Message
}

func newFakeWSRepo() *fakeWSRepo {
	return &fakeWSRepo{writes: make(map[uuid.UUID][]events.Message)}
}

func (f *fakeWSRepo) Add(uuid.UUID, *websocket.Conn) {}
func (f *fakeWSRepo) Remove(uuid.UUID)               {}
func (f *fakeWSRepo) GetAllConnected() []uuid.UUID   { return nil }

func (f *fakeWSRepo) Write(userID uuid.UUID, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg, ok := payload.(events.Message); ok {
		f.writes[userID] = append(f.writes[userID], msg)
	}
}

func (f *fakeWSRepo) received(userID uuid.UUID, eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, msg := range f.writes[userID] {
		if msg.Type == eventType {
			n++
		}
	}
	return n
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	created  []*models.Message
	failWith error
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return f.failWith
	}
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Message
	for _, m := range f.created {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeTaskRepo struct {
	mu      sync.Mutex
	created []*models.Task
	updated []*models.Task
	deleted []uuid.UUID
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTaskRepo) Update(ctx context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, task)
	return nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTaskRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Task, error) {
	return nil, nil
}

type stubProvisioner struct{}

func (stubProvisioner) CreateRoom(ctx context.Context) (room.VideoRoom, error) {
	return room.VideoRoom{
		URL:       "https://video.example/flow-stub",
		Name:      "flow-stub",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (stubProvisioner) DeleteRoom(ctx context.Context, name string) error { return nil }

type realtimeFixture struct {
	uc          *realtimeUsecase
	sessionRepo repository.SessionRepository
	userRepo    *fakeUserRepo
	messageRepo *fakeMessageRepo
	taskRepo    *fakeTaskRepo
	roster      memory.RosterRepository
	ws          *fakeWSRepo
	rooms       *room.Manager
}

func newRealtimeFixture(t *testing.T) *realtimeFixture {
	t.Helper()

	sessionRepo := memory.NewSessionRepository()
	userRepo := &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
	messageRepo := &fakeMessageRepo{}
	taskRepo := &fakeTaskRepo{}
	roster := memory.NewRosterRepository()
	ws := newFakeWSRepo()
	rooms := room.NewManager(context.Background(), stubProvisioner{})

	sessionUC := NewSessionUsecase(sessionRepo, nil)

	uc := NewRealtimeUsecase(
		sessionUC,
		sessionRepo,
		userRepo,
		messageRepo,
		taskRepo,
		roster,
		ws,
		rooms,
	).(*realtimeUsecase)

	t.Cleanup(rooms.CloseAll)

	return &realtimeFixture{
		uc:          uc,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		taskRepo:    taskRepo,
		roster:      roster,
		ws:          ws,
		rooms:       rooms,
	}
}

func (f *realtimeFixture) addUser(name string) *models.User {
	user := &models.User{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	f.userRepo.users[user.ID] = user
	return user
}

func (f *realtimeFixture) addActiveSession(t *testing.T, maxParticipants int) *models.Session {
	t.Helper()

	session := &models.Session{
		ID:              uuid.New(),
		Title:           "focus block",
		MaxParticipants: maxParticipants,
		StartTime:       time.Now().Add(-5 * time.Minute),
		DurationMinutes: 45,
	}
	if err := f.sessionRepo.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	return session
}

func (f *realtimeFixture) join(t *testing.T, user *models.User, sessionID uuid.UUID) {
	t.Helper()

	err := f.uc.HandleJoin(context.Background(), user.ID, events.JoinSessionEvent{SessionID: sessionID.String()})
	if err != nil {
		t.Fatalf("HandleJoin(%s) = %v", user.Name, err)
	}
}

func TestHandleJoin(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	user := f.addUser("ada")

	f.join(t, user, session.ID)

	if got := f.roster.Count(context.Background(), session.ID); got != 1 {
		t.Errorf("roster count = %d, want 1", got)
	}

	rt, ok := f.rooms.Get(session.ID)
	if !ok {
		t.Fatal("no runtime opened for session")
	}
	if rt.State() != room.StateRunning {
		t.Errorf("runtime state = %v, want running", rt.State())
	}
	if rt.Video().URL == "" {
		t.Error("video room not provisioned on first join")
	}

	stored, err := f.sessionRepo.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Participants != 1 {
		t.Errorf("persisted participants = %d, want 1", stored.Participants)
	}

	if got := f.ws.received(user.ID, events.TypeSessionUpdated); got == 0 {
		t.Error("joining member never received session-updated")
	}
}

func TestHandleJoinIsIdempotent(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	user := f.addUser("ada")

	f.join(t, user, session.ID)
	f.join(t, user, session.ID)

	if got := f.roster.Count(context.Background(), session.ID); got != 1 {
		t.Errorf("roster count after double join = %d, want 1", got)
	}
	if f.rooms.Count() != 1 {
		t.Errorf("open rooms = %d, want 1", f.rooms.Count())
	}
}

func TestHandleJoinRejectsScheduledSession(t *testing.T) {
	f := newRealtimeFixture(t)
	user := f.addUser("ada")

	session := &models.Session{
		ID:              uuid.New(),
		Title:           "later",
		MaxParticipants: 4,
		StartTime:       time.Now().Add(time.Hour),
		DurationMinutes: 45,
	}
	if err := f.sessionRepo.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	f.join(t, user, session.ID)

	if got := f.roster.Count(context.Background(), session.ID); got != 0 {
		t.Errorf("roster count = %d, want 0", got)
	}
	if f.rooms.Count() != 0 {
		t.Errorf("open rooms = %d, want 0", f.rooms.Count())
	}
	if got := f.ws.received(user.ID, events.TypeError); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
}

func TestHandleJoinRejectsEndedSession(t *testing.T) {
	f := newRealtimeFixture(t)
	user := f.addUser("ada")

	session := &models.Session{
		ID:              uuid.New(),
		Title:           "done",
		MaxParticipants: 4,
		StartTime:       time.Now().Add(-2 * time.Hour),
		DurationMinutes: 25,
	}
	if err := f.sessionRepo.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	f.join(t, user, session.ID)

	if f.rooms.Count() != 0 {
		t.Errorf("open rooms = %d, want 0", f.rooms.Count())
	}
	if got := f.ws.received(user.ID, events.TypeError); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
}

func TestHandleJoinRejectsFullSession(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)

	for i := 0; i < 4; i++ {
		member := f.addUser("member")
		f.join(t, member, session.ID)
	}

	late := f.addUser("late")
	f.join(t, late, session.ID)

	if got := f.roster.Count(context.Background(), session.ID); got != 4 {
		t.Errorf("roster count = %d, want 4", got)
	}
	if got := f.ws.received(late.ID, events.TypeError); got != 1 {
		t.Errorf("error events for late joiner = %d, want 1", got)
	}

	// A member already inside is never turned away by the capacity check.
	memberID := f.roster.Members(context.Background(), session.ID)[0].ID
	err := f.uc.HandleJoin(context.Background(), memberID, events.JoinSessionEvent{SessionID: session.ID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.ws.received(memberID, events.TypeError); got != 0 {
		t.Errorf("member rejoin produced %d error events, want 0", got)
	}
}

func TestHandleLeaveLastMemberClosesRoom(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	user := f.addUser("ada")

	f.join(t, user, session.ID)

	if err := f.uc.HandleLeave(context.Background(), user.ID); err != nil {
		t.Fatalf("HandleLeave() = %v", err)
	}

	if got := f.roster.Count(context.Background(), session.ID); got != 0 {
		t.Errorf("roster count = %d, want 0", got)
	}
	if f.rooms.Count() != 0 {
		t.Errorf("open rooms = %d, want 0", f.rooms.Count())
	}

	// The room close drops the session from the store.
	if _, err := f.sessionRepo.GetByID(context.Background(), session.ID); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Errorf("session still stored after last leave: %v", err)
	}
}

func TestHandleLeaveBroadcastsToRemaining(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	ada := f.addUser("ada")
	bob := f.addUser("bob")

	f.join(t, ada, session.ID)
	f.join(t, bob, session.ID)

	before := f.ws.received(bob.ID, events.TypeSessionUpdated)

	if err := f.uc.HandleLeave(context.Background(), ada.ID); err != nil {
		t.Fatal(err)
	}

	if got := f.roster.Count(context.Background(), session.ID); got != 1 {
		t.Errorf("roster count = %d, want 1", got)
	}

	stored, err := f.sessionRepo.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Participants != 1 {
		t.Errorf("persisted participants = %d, want 1", stored.Participants)
	}

	if got := f.ws.received(bob.ID, events.TypeSessionUpdated); got != before+1 {
		t.Errorf("remaining member session-updated events = %d, want %d", got, before+1)
	}
}

func TestHandleLeaveWithoutJoinIsNoop(t *testing.T) {
	f := newRealtimeFixture(t)
	user := f.addUser("ada")

	if err := f.uc.HandleLeave(context.Background(), user.ID); err != nil {
		t.Fatalf("HandleLeave() = %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	ada := f.addUser("ada")
	bob := f.addUser("bob")

	f.join(t, ada, session.ID)
	f.join(t, bob, session.ID)

	err := f.uc.HandleMessage(context.Background(), ada.ID, events.SendMessageEvent{Text: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage() = %v", err)
	}

	if len(f.messageRepo.created) != 1 {
		t.Fatalf("persisted messages = %d, want 1", len(f.messageRepo.created))
	}
	if f.messageRepo.created[0].Text != "hello" {
		t.Errorf("persisted text = %q", f.messageRepo.created[0].Text)
	}

	for _, member := range []*models.User{ada, bob} {
		if got := f.ws.received(member.ID, events.TypeNewMessage); got != 1 {
			t.Errorf("%s received %d new-message events, want 1", member.Name, got)
		}
	}
}

func TestHandleMessageRequiresMembership(t *testing.T) {
	f := newRealtimeFixture(t)
	user := f.addUser("ada")

	err := f.uc.HandleMessage(context.Background(), user.ID, events.SendMessageEvent{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	if len(f.messageRepo.created) != 0 {
		t.Errorf("persisted messages = %d, want 0", len(f.messageRepo.created))
	}
	if got := f.ws.received(user.ID, events.TypeError); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
}

func TestHandleMessagePersistFailureSkipsBroadcast(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	user := f.addUser("ada")

	f.join(t, user, session.ID)

	f.messageRepo.failWith = errors.New("db down")

	err := f.uc.HandleMessage(context.Background(), user.ID, events.SendMessageEvent{Text: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage() = %v, persistence failures are swallowed", err)
	}

	if got := f.ws.received(user.ID, events.TypeNewMessage); got != 0 {
		t.Errorf("new-message events after failed persist = %d, want 0", got)
	}
}

func TestBroadcastDoesNotLeakAcrossSessions(t *testing.T) {
	f := newRealtimeFixture(t)
	sessionA := f.addActiveSession(t, 4)
	sessionB := f.addActiveSession(t, 4)
	ada := f.addUser("ada")
	bob := f.addUser("bob")

	f.join(t, ada, sessionA.ID)
	f.join(t, bob, sessionB.ID)

	err := f.uc.HandleMessage(context.Background(), ada.ID, events.SendMessageEvent{Text: "only for session A"})
	if err != nil {
		t.Fatal(err)
	}

	if got := f.ws.received(ada.ID, events.TypeNewMessage); got != 1 {
		t.Errorf("sender received %d new-message events, want 1", got)
	}
	if got := f.ws.received(bob.ID, events.TypeNewMessage); got != 0 {
		t.Errorf("member of another session received %d new-message events, want 0", got)
	}
}

func TestTaskLifecycle(t *testing.T) {
	f := newRealtimeFixture(t)
	session := f.addActiveSession(t, 4)
	ada := f.addUser("ada")
	bob := f.addUser("bob")

	f.join(t, ada, session.ID)
	f.join(t, bob, session.ID)

	err := f.uc.HandleAddTask(context.Background(), ada.ID, events.AddTaskEvent{Text: "outline the doc"})
	if err != nil {
		t.Fatalf("HandleAddTask() = %v", err)
	}

	if len(f.taskRepo.created) != 1 {
		t.Fatalf("persisted tasks = %d, want 1", len(f.taskRepo.created))
	}
	taskID := f.taskRepo.created[0].ID

	if got := f.ws.received(bob.ID, events.TypeTaskUpdated); got != 1 {
		t.Errorf("task-updated events = %d, want 1", got)
	}

	// Only the author may toggle.
	err = f.uc.HandleToggleTask(context.Background(), bob.ID, events.TaskRefEvent{TaskID: taskID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.ws.received(bob.ID, events.TypeError); got != 1 {
		t.Errorf("non-author toggle error events = %d, want 1", got)
	}

	err = f.uc.HandleToggleTask(context.Background(), ada.ID, events.TaskRefEvent{TaskID: taskID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.taskRepo.updated) != 1 || !f.taskRepo.updated[0].Completed {
		t.Error("toggled task not persisted as completed")
	}

	rt, _ := f.rooms.Get(session.ID)
	if tasks := rt.Tasks(); len(tasks) != 1 || !tasks[0].Completed {
		t.Errorf("room task state = %v, want one completed task", tasks)
	}

	err = f.uc.HandleDeleteTask(context.Background(), ada.ID, events.TaskRefEvent{TaskID: taskID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.taskRepo.deleted) != 1 || f.taskRepo.deleted[0] != taskID {
		t.Error("deleted task not removed from the store")
	}
	if tasks := rt.Tasks(); len(tasks) != 0 {
		t.Errorf("room task state after delete = %v, want empty", tasks)
	}
}
