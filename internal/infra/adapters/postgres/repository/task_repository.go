package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowdesk/flowdesk/internal/domain/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Task, error)
}

type taskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, task *models.Task) error {
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO tasks (id, session_id, author_id, author_name, text, completed) VALUES ($1, $2, $3, $4, $5, $6)",
		task.ID,
		task.SessionID,
		task.AuthorID,
		task.AuthorName,
		task.Text,
		task.Completed,
	)

	return err
}

func (r *taskRepo) Update(ctx context.Context, task *models.Task) error {
	_, err := r.db.ExecContext(
		ctx,
		"UPDATE tasks SET text = $1, completed = $2, updated_at = $3 WHERE id = $4",
		task.Text,
		task.Completed,
		time.Now(),
		task.ID,
	)

	return err
}

func (r *taskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)

	return err
}

func (r *taskRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Task, error) {
	var tasks []*models.Task

	err := r.db.SelectContext(
		ctx,
		&tasks,
		"SELECT id, session_id, author_id, author_name, text, completed, created_at FROM tasks WHERE session_id = $1 ORDER BY created_at",
		sessionID,
	)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}
