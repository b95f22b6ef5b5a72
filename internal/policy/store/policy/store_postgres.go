package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"surety/internal/platform/postgres"
	"surety/internal/policy/models"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `
	id, policy_number, type, status, payment_status, customer_id, agent_id,
	premium_amount, coverage_amount, taxes, fees, discounts, adjustments, total_premium,
	start_date, end_date, effective_date, cancellation_date, cancellation_reason,
	payment_due_date, payment_date, payment_transaction_id,
	coverage_details, credit_assessment, pricing_details, metadata,
	version, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, p *models.Policy) error {
	blobs, err := marshalBlobs(p)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO policies (`+policyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, 1, $27, $28)
	`,
		p.ID, p.PolicyNumber, string(p.Type), string(p.Status), string(p.PaymentStatus),
		p.CustomerID, p.AgentID, p.PremiumAmount, p.CoverageAmount, p.Taxes, p.Fees,
		p.Discounts, p.Adjustments, p.TotalPremium, p.StartDate, p.EndDate, p.EffectiveDate,
		p.CancellationDate, p.CancellationReason, p.PaymentDueDate, p.PaymentDate,
		p.PaymentTransactionID, blobs[0], blobs[1], blobs[2], blobs[3], p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	p.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, id)
	return scanOne(row)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Policy, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE policy_number = $1`, number)
	return scanOne(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Policy, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Type != "" {
		add("type", string(filter.Type))
	}
	if filter.CustomerID != "" {
		add("customer_id", filter.CustomerID)
	}
	if filter.AgentID != "" {
		add("agent_id", filter.AgentID)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	exec := txcontext.Exec(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}

	pageArgs := append(args, filter.Limit, filter.Offset())
	rows, err := exec.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM policies
		%s
		ORDER BY created_at DESC, policy_number DESC
		LIMIT $%d OFFSET $%d
	`, policyColumns, clause, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate policies: %w", err)
	}
	return out, total, nil
}

// Execute locks the row with FOR UPDATE, validates and mutates it, and writes
// it back guarded by the version it read. It joins the transaction in context
// or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, id uuid.UUID, validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, id, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin policy tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.execute(txcontext.WithTx(ctx, tx), id, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit policy tx: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) execute(ctx context.Context, id uuid.UUID, validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error) {
	exec := txcontext.Exec(ctx, s.db)
	p, err := scanOne(exec.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	blobs, err := marshalBlobs(p)
	if err != nil {
		return nil, err
	}
	res, err := exec.ExecContext(ctx, `
		UPDATE policies SET
			status = $3, payment_status = $4, customer_id = $5, agent_id = $6,
			premium_amount = $7, coverage_amount = $8, taxes = $9, fees = $10,
			discounts = $11, adjustments = $12, total_premium = $13,
			start_date = $14, end_date = $15, effective_date = $16,
			cancellation_date = $17, cancellation_reason = $18, payment_due_date = $19,
			payment_date = $20, payment_transaction_id = $21,
			coverage_details = $22, credit_assessment = $23, pricing_details = $24, metadata = $25,
			updated_at = $26, version = version + 1
		WHERE id = $1 AND version = $2
	`,
		p.ID, p.Version, string(p.Status), string(p.PaymentStatus), p.CustomerID, p.AgentID,
		p.PremiumAmount, p.CoverageAmount, p.Taxes, p.Fees, p.Discounts, p.Adjustments,
		p.TotalPremium, p.StartDate, p.EndDate, p.EffectiveDate, p.CancellationDate,
		p.CancellationReason, p.PaymentDueDate, p.PaymentDate, p.PaymentTransactionID,
		blobs[0], blobs[1], blobs[2], blobs[3], p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	if n == 0 {
		return nil, sentinel.ErrConflict
	}
	p.Version++
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// NextSequence atomically increments and returns the counter for series.
func (s *PostgresStore) NextSequence(ctx context.Context, series string) (int64, error) {
	var next int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO policy_number_sequences (series, last_value)
		VALUES ($1, 1)
		ON CONFLICT (series) DO UPDATE SET last_value = policy_number_sequences.last_value + 1
		RETURNING last_value
	`, series).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next policy sequence: %w", err)
	}
	return next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*models.Policy, error) {
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func scanPolicy(row scanner) (*models.Policy, error) {
	var (
		p                                   models.Policy
		typ, status, paymentStatus          string
		coverage, credit, pricing, metadata []byte
	)
	err := row.Scan(
		&p.ID, &p.PolicyNumber, &typ, &status, &paymentStatus, &p.CustomerID, &p.AgentID,
		&p.PremiumAmount, &p.CoverageAmount, &p.Taxes, &p.Fees, &p.Discounts, &p.Adjustments,
		&p.TotalPremium, &p.StartDate, &p.EndDate, &p.EffectiveDate, &p.CancellationDate,
		&p.CancellationReason, &p.PaymentDueDate, &p.PaymentDate, &p.PaymentTransactionID,
		&coverage, &credit, &pricing, &metadata, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	p.Type = models.Type(typ)
	p.Status = models.Status(status)
	p.PaymentStatus = models.PaymentStatus(paymentStatus)
	if len(coverage) > 0 {
		if err := json.Unmarshal(coverage, &p.CoverageDetails); err != nil {
			return nil, fmt.Errorf("unmarshal coverage details: %w", err)
		}
	}
	for _, blob := range []struct {
		raw  []byte
		dest *map[string]any
	}{{credit, &p.CreditAssessment}, {pricing, &p.PricingDetails}, {metadata, &p.Metadata}} {
		if len(blob.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(blob.raw, blob.dest); err != nil {
			return nil, fmt.Errorf("unmarshal policy blob: %w", err)
		}
	}
	return &p, nil
}

// marshalBlobs encodes coverage details, credit assessment, pricing details
// and metadata, in that order. Nil maps become SQL NULL.
func marshalBlobs(p *models.Policy) ([4]any, error) {
	var out [4]any
	coverage, err := json.Marshal(p.CoverageDetails)
	if err != nil {
		return out, fmt.Errorf("marshal coverage details: %w", err)
	}
	out[0] = coverage
	for i, m := range []map[string]any{p.CreditAssessment, p.PricingDetails, p.Metadata} {
		if m == nil {
			continue
		}
		b, err := json.Marshal(m)
		if err != nil {
			return out, fmt.Errorf("marshal policy blob: %w", err)
		}
		out[i+1] = b
	}
	return out, nil
}
