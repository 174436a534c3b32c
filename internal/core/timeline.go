package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineService appends and lists audit events. Writes happen inside the
// transaction that performs the state transition, so an event exists exactly
// when its transition committed.
type TimelineService interface {
	// RecordTx appends an event within an open transaction.
	RecordTx(ctx context.Context, tx pgx.Tx, ev TimelineEvent) error

	// GetEvents lists events newest-first, optionally filtered by entity
	// type and kind. Zero-value filters match everything.
	GetEvents(ctx context.Context, entityType string, kind TimelineEventKind, limit int) ([]TimelineEvent, error)
}

type timelineService struct {
	pool *pgxpool.Pool
}

// NewTimelineService constructs a TimelineService backed by PostgreSQL.
func NewTimelineService(pool *pgxpool.Pool) TimelineService {
	return &timelineService{pool: pool}
}

func (s *timelineService) RecordTx(ctx context.Context, tx pgx.Tx, ev TimelineEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO timeline_events (kind, actor_id, entity_type, entity_id, summary, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Kind, ev.ActorID, ev.EntityType, ev.EntityID, ev.Summary, ev.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to record timeline event %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *timelineService) GetEvents(ctx context.Context, entityType string, kind TimelineEventKind, limit int) ([]TimelineEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, actor_id, entity_type, entity_id, summary, details, created_at
		FROM timeline_events
		WHERE ($1 = '' OR entity_type = $1)
		  AND ($2 = '' OR kind = $2)
		ORDER BY id DESC
		LIMIT $3`,
		entityType, string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline events: %w", err)
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.ActorID, &ev.EntityType, &ev.EntityID, &ev.Summary, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
