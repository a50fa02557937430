package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowdesk/flowdesk/internal/domain/models"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	_, err := r.db.ExecContext(
		ctx,
		"INSERT INTO messages (id, session_id, author_id, author_name, text) VALUES ($1, $2, $3, $4, $5)",
		msg.ID,
		msg.SessionID,
		msg.AuthorID,
		msg.AuthorName,
		msg.Text,
	)

	return err
}

func (r *messageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	var messages []*models.Message

	err := r.db.SelectContext(
		ctx,
		&messages,
		"SELECT * FROM messages WHERE session_id = $1 ORDER BY created_at",
		sessionID,
	)
	if err != nil {
		return nil, err
	}

	return messages, nil
}
