package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/domain/models"
)

type State int

const (
	StateInitializing State = iota
	StateRunning
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// endingGraceTicks is how long the terminal acknowledgement stays visible
// before the room releases its resources.
const endingGraceTicks = 3

// VideoRoom is a joinable handle acquired from the video provisioner.
type VideoRoom struct {
	URL       string
	Name      string
	ExpiresAt time.Time
}

// Provisioner acquires and tears down video rooms with an external provider.
type Provisioner interface {
	CreateRoom(ctx context.Context) (VideoRoom, error)
	DeleteRoom(ctx context.Context, name string) error
}

// CloseFunc is invoked exactly once when the runtime reaches StateClosed.
type CloseFunc func(sessionID uuid.UUID)

// Runtime drives one active session: the countdown, the in-room task list
// and the chat log. Initializing -> Running -> Ending -> Closed, with a
// manual Close jumping straight to Closed from any state.
type Runtime struct {
	sessionID uuid.UUID

	provisioner Provisioner
	onClose     CloseFunc

	mu        sync.Mutex
	state     State
	remaining int
	grace     int
	video     VideoRoom
	lastErr   error
	tasks     []models.Task
	messages  []models.Message
}

func NewRuntime(sessionID uuid.UUID, duration time.Duration, provisioner Provisioner, onClose CloseFunc) *Runtime {
	return &Runtime{
		sessionID:   sessionID,
		provisioner: provisioner,
		onClose:     onClose,
		state:       StateInitializing,
		remaining:   int(duration / time.Second),
		grace:       endingGraceTicks,
	}
}

func (r *Runtime) SessionID() uuid.UUID {
	return r.sessionID
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Remaining reports the countdown in seconds.
func (r *Runtime) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remaining
}

// Video returns the acquired room handle, zero until Running.
func (r *Runtime) Video() VideoRoom {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.video
}

// LastErr reports the provisioning error that kept the runtime in
// StateInitializing, if any.
func (r *Runtime) LastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastErr
}

// Start acquires the video room and moves Initializing -> Running. On
// failure the runtime stays in Initializing with the error recorded; there
// is no automatic retry, a later Start attempts provisioning again.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateInitializing {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	video, err := r.provisioner.CreateRoom(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitializing {
		// Closed while provisioning was in flight; the freshly acquired
		// room is no longer wanted.
		if err == nil && video.Name != "" {
			go r.teardown(video)
		}
		return nil
	}

	if err != nil {
		r.lastErr = err
		return fmt.Errorf("acquire video room: %w", err)
	}

	r.video = video
	r.lastErr = nil
	r.state = StateRunning

	return nil
}

// Tick advances the countdown by one second and returns the resulting
// state. The runtime itself never wakes up; Run feeds it real ticks, tests
// feed it manual ones.
func (r *Runtime) Tick() State {
	r.mu.Lock()

	switch r.state {
	case StateRunning:
		r.remaining--
		if r.remaining <= 0 {
			r.remaining = 0
			r.state = StateEnding
		}
		state := r.state
		r.mu.Unlock()
		return state

	case StateEnding:
		r.grace--
		if r.grace > 0 {
			r.mu.Unlock()
			return StateEnding
		}
		r.mu.Unlock()
		r.Close()
		return StateClosed

	default:
		state := r.state
		r.mu.Unlock()
		return state
	}
}

// Run drives the runtime with a 1Hz ticker until it closes or the context
// is cancelled. Cancellation closes the room.
func (r *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if r.Tick() == StateClosed {
				return
			}
		}
	}
}

// Close releases the runtime from any state. The task list and chat log
// are discarded, the video room is torn down best-effort and the owner is
// notified. Racing close triggers are safe: the second one observes
// StateClosed and returns.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return
	}

	r.state = StateClosed
	r.tasks = nil
	r.messages = nil
	video := r.video
	r.video = VideoRoom{}
	r.mu.Unlock()

	if video.Name != "" {
		r.teardown(video)
	}

	if r.onClose != nil {
		r.onClose(r.sessionID)
	}
}

// teardown deletes the provider-side room best-effort.
func (r *Runtime) teardown(video VideoRoom) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.provisioner.DeleteRoom(ctx, video.Name); err != nil {
		slog.Warn(
			"delete video room",
			slog.Any(constant.Error, err),
			slog.Any(constant.SessionID, r.sessionID),
		)
	}
}

// mutable reports whether task/chat operations are currently valid.
func (r *Runtime) mutable() error {
	switch r.state {
	case StateClosed:
		return ErrRoomClosed
	case StateInitializing:
		return ErrNotRunning
	default:
		return nil
	}
}

func (r *Runtime) AddTask(task models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mutable(); err != nil {
		return err
	}

	r.tasks = append(r.tasks, task)
	return nil
}

func (r *Runtime) ToggleTask(taskID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mutable(); err != nil {
		return err
	}

	for i := range r.tasks {
		if r.tasks[i].ID != taskID {
			continue
		}
		if r.tasks[i].AuthorID != userID {
			return ErrNotAuthor
		}
		r.tasks[i].Completed = !r.tasks[i].Completed
		return nil
	}

	return ErrTaskNotFound
}

func (r *Runtime) DeleteTask(taskID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mutable(); err != nil {
		return err
	}

	for i := range r.tasks {
		if r.tasks[i].ID != taskID {
			continue
		}
		if r.tasks[i].AuthorID != userID {
			return ErrNotAuthor
		}
		r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
		return nil
	}

	return ErrTaskNotFound
}

func (r *Runtime) Tasks() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

func (r *Runtime) AppendMessage(msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mutable(); err != nil {
		return err
	}

	r.messages = append(r.messages, msg)
	return nil
}

func (r *Runtime) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Message, len(r.messages))
	copy(out, r.messages)
	return out
}
