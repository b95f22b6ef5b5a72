package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surety/internal/platform/postgres"
	"surety/internal/pricing/models"
	"surety/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ruleColumns = `
	id, name, description, rule_type, operator, condition_value, adjustment_type,
	adjustment_value, adjustment_percentage, priority, is_active, effective_date,
	expiration_date, metadata, created_by, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, rule *models.PricingRule) error {
	cond, meta, err := marshalMaps(rule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pricing_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		rule.ID, rule.Name, rule.Description, string(rule.RuleType), string(rule.Operator), cond,
		string(rule.AdjustmentType), rule.AdjustmentValue, nullableDecimal(rule.AdjustmentPercentage),
		rule.Priority, rule.IsActive, rule.EffectiveDate, rule.ExpirationDate, meta,
		rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert pricing rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rule *models.PricingRule) error {
	cond, meta, err := marshalMaps(rule)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pricing_rules SET
			name = $2, description = $3, rule_type = $4, operator = $5, condition_value = $6,
			adjustment_type = $7, adjustment_value = $8, adjustment_percentage = $9, priority = $10,
			is_active = $11, effective_date = $12, expiration_date = $13, metadata = $14, updated_at = $15
		WHERE id = $1
	`,
		rule.ID, rule.Name, rule.Description, string(rule.RuleType), string(rule.Operator), cond,
		string(rule.AdjustmentType), rule.AdjustmentValue, nullableDecimal(rule.AdjustmentPercentage),
		rule.Priority, rule.IsActive, rule.EffectiveDate, rule.ExpirationDate, meta, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pricing rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pricing rule: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PricingRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id = $1`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.PricingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM pricing_rules
		WHERE is_active = TRUE
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pricing rules: %w", err)
	}
	defer rows.Close()

	var out []models.PricingRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rules: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*models.PricingRule, error) {
	var (
		r          models.PricingRule
		ruleType   string
		operator   string
		adjType    string
		cond, meta []byte
		pct        decimal.NullDecimal
	)
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &ruleType, &operator, &cond, &adjType,
		&r.AdjustmentValue, &pct, &r.Priority, &r.IsActive, &r.EffectiveDate,
		&r.ExpirationDate, &meta, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan pricing rule: %w", err)
	}
	r.RuleType = models.RuleType(ruleType)
	r.Operator = models.Operator(operator)
	if r.AdjustmentType, err = models.ParseAdjustmentType(adjType); err != nil {
		return nil, err
	}
	if pct.Valid {
		v := pct.Decimal
		r.AdjustmentPercentage = &v
	}
	if err := unmarshalMap(cond, &r.ConditionValue); err != nil {
		return nil, err
	}
	if err := unmarshalMap(meta, &r.Metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

func marshalMaps(rule *models.PricingRule) ([]byte, []byte, error) {
	cond, err := json.Marshal(orEmpty(rule.ConditionValue))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal condition value: %w", err)
	}
	meta, err := json.Marshal(orEmpty(rule.Metadata))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal rule metadata: %w", err)
	}
	return cond, meta, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func unmarshalMap(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal rule json: %w", err)
	}
	return nil
}

func nullableDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
