package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chatsync/internal/models"
)

// StatusRepository persists story entries.
type StatusRepository interface {
	AppendStatus(ctx context.Context, status models.Status) error
	ListStatuses(ctx context.Context) ([]models.Status, error)
}

// StatusRepo is a sqlx implementation of StatusRepository.
type StatusRepo struct {
	db *sqlx.DB
}

// NewStatusRepo constructs a StatusRepo.
func NewStatusRepo(db *sqlx.DB) *StatusRepo {
	return &StatusRepo{db: db}
}

// AppendStatus stores a new status entry.
func (r *StatusRepo) AppendStatus(ctx context.Context, status models.Status) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO statuses (id, user_id, image_url, timestamp) VALUES ($1, $2, $3, $4)`,
		status.ID, status.UserID, status.ImageURL, status.Timestamp)
	return err
}

// ListStatuses returns the shared status feed in append order.
func (r *StatusRepo) ListStatuses(ctx context.Context) ([]models.Status, error) {
	var statuses []models.Status
	err := r.db.SelectContext(ctx, &statuses,
		`SELECT id, user_id, image_url, timestamp FROM statuses ORDER BY timestamp ASC`)
	return statuses, err
}
