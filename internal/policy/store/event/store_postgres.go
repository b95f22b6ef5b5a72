package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"surety/internal/policy/models"
	txcontext "surety/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *models.AuditEvent) error {
	var metadata []byte
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		metadata = b
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO policy_events (id, policy_id, event_type, status, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.PolicyID, string(e.EventType), string(e.Status), e.Description, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert policy event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.AuditEvent, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, policy_id, event_type, status, description, metadata, created_at
		FROM policy_events
		WHERE policy_id = $1
		ORDER BY created_at DESC, id
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("query policy events: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var (
			e                 models.AuditEvent
			eventType, status string
			metadata          []byte
		)
		if err := rows.Scan(&e.ID, &e.PolicyID, &eventType, &status, &e.Description, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy event: %w", err)
		}
		e.EventType = models.EventType(eventType)
		e.Status = models.EventStatus(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByPolicy(ctx context.Context, policyID uuid.UUID) error {
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM policy_events WHERE policy_id = $1`, policyID); err != nil {
		return fmt.Errorf("delete policy events: %w", err)
	}
	return nil
}
