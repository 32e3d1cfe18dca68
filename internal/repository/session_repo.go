package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursecast-backend/internal/models"
)

// SessionRepo records workflow runs so owners can see past uploads and their
// outcomes. The remote service stays authoritative for content itself; these
// rows are an audit trail.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.WorkflowSession) error {
	query := `
		INSERT INTO workflow_sessions (owner_id, class_id, subject, total_parts, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query, s.OwnerID, s.ClassID, s.Subject, s.TotalParts, s.State).Scan(
		&s.ID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
}

func (r *SessionRepo) UpdateState(ctx context.Context, id uuid.UUID, state string, contentID, errMsg *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE workflow_sessions
		SET state = $2,
			content_id = COALESCE($3, content_id),
			error_message = $4,
			updated_at = NOW()
		WHERE id = $1
	`, id, state, contentID, errMsg)
	return err
}

func (r *SessionRepo) UpdateTimeline(ctx context.Context, id uuid.UUID, timeline json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE workflow_sessions
		SET timeline_json = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, timeline)
	return err
}

func (r *SessionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WorkflowSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, content_id, class_id, subject, total_parts, state,
		       timeline_json, error_message, created_at, updated_at
		FROM workflow_sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.WorkflowSession{}
	for rows.Next() {
		var s models.WorkflowSession
		if err := rows.Scan(
			&s.ID,
			&s.OwnerID,
			&s.ContentID,
			&s.ClassID,
			&s.Subject,
			&s.TotalParts,
			&s.State,
			&s.TimelineJSON,
			&s.ErrorMessage,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
