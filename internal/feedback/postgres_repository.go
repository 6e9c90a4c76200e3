package feedback

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores events in the feedback_events table.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository accepts a *pgxpool.Pool or anything shaped like it.
func NewPostgresRepository(db db) *PostgresRepository {
	if db == nil {
		panic("feedback: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, evt *Event) error {
	if evt == nil {
		return ErrMissingField
	}
	query := `
		INSERT INTO feedback_events (id, user_id, item_id, feedback_type, session_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`
	if _, err := r.db.Exec(ctx, query,
		evt.ID,
		evt.UserID,
		evt.ItemID,
		evt.FeedbackType,
		evt.SessionID,
		evt.CreatedAt,
	); err != nil {
		return fmt.Errorf("feedback: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, item_id, feedback_type, COALESCE(session_id, ''), created_at
		FROM feedback_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("feedback: select failed: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(
			&evt.ID,
			&evt.UserID,
			&evt.ItemID,
			&evt.FeedbackType,
			&evt.SessionID,
			&evt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("feedback: scan failed: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feedback: rows failed: %w", err)
	}
	return out, nil
}
