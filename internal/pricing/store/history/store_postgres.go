package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"surety/internal/pricing/models"
	txcontext "surety/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, h *models.History) error {
	oldValues, err := marshalValues(h.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(h.NewValues)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pricing_history (id, pricing_id, action, old_values, new_values, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, h.ID, h.PricingID, string(h.Action), oldValues, newValues, h.ChangedBy, h.ChangeReason, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pricing history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPricing(ctx context.Context, pricingID uuid.UUID) ([]models.History, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, pricing_id, action, old_values, new_values, changed_by, change_reason, created_at
		FROM pricing_history
		WHERE pricing_id = $1
		ORDER BY created_at DESC, id
	`, pricingID)
	if err != nil {
		return nil, fmt.Errorf("query pricing history: %w", err)
	}
	defer rows.Close()

	var out []models.History
	for rows.Next() {
		var (
			h                    models.History
			action               string
			oldValues, newValues []byte
		)
		if err := rows.Scan(&h.ID, &h.PricingID, &action, &oldValues, &newValues,
			&h.ChangedBy, &h.ChangeReason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pricing history: %w", err)
		}
		h.Action = models.HistoryAction(action)
		if err := unmarshalValues(oldValues, &h.OldValues); err != nil {
			return nil, err
		}
		if err := unmarshalValues(newValues, &h.NewValues); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing history: %w", err)
	}
	return out, nil
}

// marshalValues stores nil snapshots as SQL NULL.
func marshalValues(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal history values: %w", err)
	}
	return b, nil
}

func unmarshalValues(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal history values: %w", err)
	}
	return nil
}
