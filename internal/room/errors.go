package room

import "errors"

var (
	// ErrRoomClosed is returned for task/chat operations on a closed runtime.
	// Callers treat it as a no-op signal, not a failure.
	ErrRoomClosed = errors.New("room is closed")

	// ErrNotRunning is returned when the runtime has not acquired a video
	// room yet and cannot accept task/chat operations.
	ErrNotRunning = errors.New("room is not running")

	// ErrNotAuthor is returned when someone other than the task author tries
	// to toggle or delete it.
	ErrNotAuthor = errors.New("only the task author can modify it")

	// ErrTaskNotFound is returned for operations on an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
)
