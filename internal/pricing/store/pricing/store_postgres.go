package pricing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surety/internal/platform/postgres"
	"surety/internal/pricing/models"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/platform/sentinel"
)

// activePricingConstraint is the partial unique index on (policy_id) WHERE status = 'active'.
const activePricingConstraint = "pricings_one_active_per_policy"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pricingColumns = `
	id, policy_id, status, base_premium, taxes, fees, discounts, adjustments,
	total_premium, coverage_amount, premium_rate, pricing_details, calculation_method,
	notes, approved_by, approved_at, rejection_reason, created_by, updated_by,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, p *models.Pricing) error {
	details, err := marshalDetails(p.PricingDetails)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pricings (`+pricingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		p.ID, p.PolicyID, string(p.Status), p.BasePremium, p.Taxes, p.Fees, p.Discounts,
		p.Adjustments, p.TotalPremium, p.CoverageAmount, nullableDecimal(p.PremiumRate), details,
		p.CalculationMethod, p.Notes, p.ApprovedBy, p.ApprovedAt, p.RejectionReason,
		p.CreatedBy, p.UpdatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert pricing: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+pricingColumns+` FROM pricings WHERE id = $1`, id)
	return scanOne(row)
}

func (s *PostgresStore) FindActiveByPolicy(ctx context.Context, policyID uuid.UUID) (*models.Pricing, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+pricingColumns+` FROM pricings WHERE policy_id = $1 AND status = 'active'`, policyID)
	return scanOne(row)
}

func (s *PostgresStore) FindByPolicy(ctx context.Context, policyID uuid.UUID) ([]*models.Pricing, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+pricingColumns+`
		FROM pricings
		WHERE policy_id = $1
		ORDER BY created_at DESC, id
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("query pricings by policy: %w", err)
	}
	return scanAll(rows)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Pricing, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PolicyID != uuid.Nil {
		args = append(args, filter.PolicyID)
		where = append(where, fmt.Sprintf("policy_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	exec := txcontext.Exec(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM pricings `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pricings: %w", err)
	}

	pageArgs := append(args, filter.Limit, filter.Offset())
	rows, err := exec.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pricings
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, pricingColumns, clause, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query pricings: %w", err)
	}
	items, err := scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Execute locks the row with FOR UPDATE, validates and mutates it, and writes
// it back. It joins the transaction in context or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, id uuid.UUID, validate func(*models.Pricing) error, mutate func(*models.Pricing)) (*models.Pricing, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, id, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pricing tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.execute(txcontext.WithTx(ctx, tx), id, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pricing tx: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) execute(ctx context.Context, id uuid.UUID, validate func(*models.Pricing) error, mutate func(*models.Pricing)) (*models.Pricing, error) {
	exec := txcontext.Exec(ctx, s.db)
	p, err := scanOne(exec.QueryRowContext(ctx,
		`SELECT `+pricingColumns+` FROM pricings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	details, err := marshalDetails(p.PricingDetails)
	if err != nil {
		return nil, err
	}
	_, err = exec.ExecContext(ctx, `
		UPDATE pricings SET
			status = $2, base_premium = $3, taxes = $4, fees = $5, discounts = $6,
			adjustments = $7, total_premium = $8, coverage_amount = $9, premium_rate = $10,
			pricing_details = $11, calculation_method = $12, notes = $13, approved_by = $14,
			approved_at = $15, rejection_reason = $16, updated_by = $17, updated_at = $18
		WHERE id = $1
	`,
		p.ID, string(p.Status), p.BasePremium, p.Taxes, p.Fees, p.Discounts, p.Adjustments,
		p.TotalPremium, p.CoverageAmount, nullableDecimal(p.PremiumRate), details,
		p.CalculationMethod, p.Notes, p.ApprovedBy, p.ApprovedAt, p.RejectionReason,
		p.UpdatedBy, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, activePricingConstraint) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update pricing: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM pricings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pricing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pricing: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*models.Pricing, error) {
	p, err := scanPricing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func scanAll(rows *sql.Rows) ([]*models.Pricing, error) {
	defer rows.Close()
	var out []*models.Pricing
	for rows.Next() {
		p, err := scanPricing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricings: %w", err)
	}
	return out, nil
}

func scanPricing(row scanner) (*models.Pricing, error) {
	var (
		p       models.Pricing
		status  string
		rate    decimal.NullDecimal
		details []byte
	)
	err := row.Scan(
		&p.ID, &p.PolicyID, &status, &p.BasePremium, &p.Taxes, &p.Fees, &p.Discounts,
		&p.Adjustments, &p.TotalPremium, &p.CoverageAmount, &rate, &details,
		&p.CalculationMethod, &p.Notes, &p.ApprovedBy, &p.ApprovedAt, &p.RejectionReason,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan pricing: %w", err)
	}
	p.Status = models.Status(status)
	if rate.Valid {
		r := rate.Decimal
		p.PremiumRate = &r
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &p.PricingDetails); err != nil {
			return nil, fmt.Errorf("unmarshal pricing details: %w", err)
		}
	}
	return &p, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal pricing details: %w", err)
	}
	return b, nil
}

func nullableDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
