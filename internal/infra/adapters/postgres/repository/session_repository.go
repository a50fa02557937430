package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowdesk/flowdesk/internal/domain/models"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	UpdateParticipants(ctx context.Context, id uuid.UUID, count int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO sessions
			(id, host_id, host_name, host_avatar, title, description, participants, max_participants, start_time, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID,
		session.HostID,
		session.HostName,
		session.HostAvatar,
		session.Title,
		session.Description,
		session.Participants,
		session.MaxParticipants,
		session.StartTime,
		session.DurationMinutes,
	)

	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session models.Session

	err := r.db.GetContext(ctx, &session, "SELECT * FROM sessions WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepo) List(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session

	err := r.db.SelectContext(ctx, &sessions, "SELECT * FROM sessions ORDER BY start_time")
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *sessionRepo) UpdateParticipants(ctx context.Context, id uuid.UUID, count int) error {
	_, err := r.db.ExecContext(
		ctx,
		"UPDATE sessions SET participants = $1, updated_at = $2 WHERE id = $3",
		count,
		time.Now(),
		id,
	)

	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)

	return err
}
