package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medcore/hospital-ops/pkg/database"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Repository persists audit events
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// CreateEvent inserts an audit event. Before/after snapshots are stored as JSONB.
func (r *Repository) CreateEvent(ctx context.Context, event *types.AuditEvent) error {
	before, err := marshalSnapshot(event.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal before snapshot: %w", err)
	}

	after, err := marshalSnapshot(event.After)
	if err != nil {
		return fmt.Errorf("failed to marshal after snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, actor_id, actor_role, action, resource_type, resource_id,
			patient_id, before_state, after_state, outcome, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.ActorID,
		event.ActorRole,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		nullIfEmpty(event.PatientID),
		before,
		after,
		event.Outcome,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// GetEvents retrieves audit events for a resource, newest first
func (r *Repository) GetEvents(ctx context.Context, resourceType, resourceID string, limit int) ([]*types.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, actor_id, actor_role, action, resource_type, resource_id,
			patient_id, before_state, after_state, outcome, created_at
		FROM audit_events
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*types.AuditEvent
	for rows.Next() {
		event := &types.AuditEvent{}
		var before, after []byte
		var patientID sql.NullString
		var createdAt time.Time

		err := rows.Scan(
			&event.ID,
			&event.ActorID,
			&event.ActorRole,
			&event.Action,
			&event.ResourceType,
			&event.ResourceID,
			&patientID,
			&before,
			&after,
			&event.Outcome,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.PatientID = patientID.String
		event.CreatedAt = createdAt
		if len(before) > 0 {
			if err := json.Unmarshal(before, &event.Before); err != nil {
				r.logger.Warnf("Skipping malformed before snapshot on event %s: %v", event.ID, err)
			}
		}
		if len(after) > 0 {
			if err := json.Unmarshal(after, &event.After); err != nil {
				r.logger.Warnf("Skipping malformed after snapshot on event %s: %v", event.ID, err)
			}
		}

		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func marshalSnapshot(snapshot map[string]interface{}) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}
