package constant

// Common slog attribute keys.
const (
	Error     = "error"
	UserID    = "user_id"
	SessionID = "session_id"
	TaskID    = "task_id"
)
