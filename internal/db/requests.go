package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const requestColumns = `id, user_id, request_type, amount::text, bank, status,
	status_detail::text, photo_url, withdrawal_code, created_at, processed_at`

// CreatePaymentRequest inserts a new request and returns its id. A unique
// violation on the active-deposit-amount index comes back as ErrAmountTaken
// so the caller can re-run the allocator.
func (d *DB) CreatePaymentRequest(ctx context.Context, r *PaymentRequest) (int64, error) {
	detail := strings.TrimSpace(r.StatusDetail)
	if detail == "" {
		detail = "{}"
	}
	status := r.Status
	if status == "" {
		status = StatusPending
	}
	var id int64
	err := d.Pool.QueryRow(ctx, `
INSERT INTO payment_requests (user_id, request_type, amount, bank, status, status_detail, photo_url, withdrawal_code)
VALUES ($1, $2, $3::numeric, $4, $5, $6::jsonb, $7, $8)
RETURNING id
`, r.UserID, r.RequestType, nullAmount(r.Amount), r.Bank, status, detail, r.PhotoURL, r.WithdrawalCode).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			strings.Contains(pgErr.ConstraintName, "uq_active_deposit_amount") {
			return 0, ErrAmountTaken
		}
		return 0, fmt.Errorf("create request: %w", err)
	}
	return id, nil
}

// IsDepositAmountActive is the allocator's optimistic pre-check.
func (d *DB) IsDepositAmountActive(ctx context.Context, amount decimal.Decimal) (bool, error) {
	var exists bool
	err := d.Pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM payment_requests
	WHERE request_type = 'deposit'
	  AND status IN ('pending','processing','deferred')
	  AND amount = $1::numeric
)`, amount.StringFixed(2)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("amount active check: %w", err)
	}
	return exists, nil
}

func (d *DB) GetRequest(ctx context.Context, id int64) (PaymentRequest, error) {
	row := d.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err == pgx.ErrNoRows {
		return PaymentRequest{}, ErrNotFound
	}
	return r, err
}

func (d *DB) ListRequests(ctx context.Context, status string, limit int64) ([]PaymentRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + requestColumns + ` FROM payment_requests`
	args := []any{}
	if s := strings.TrimSpace(status); s != "" {
		query += ` WHERE status = $1`
		args = append(args, s)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit)

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []PaymentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindActiveDepositByAmount returns the most recent active deposit request
// holding exactly this amount, or ErrNotFound.
func (d *DB) FindActiveDepositByAmount(ctx context.Context, amount decimal.Decimal) (PaymentRequest, error) {
	row := d.Pool.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM payment_requests
WHERE request_type = 'deposit'
  AND status IN ('pending','processing','deferred')
  AND amount = $1::numeric
ORDER BY id DESC
LIMIT 1`, amount.StringFixed(2))
	r, err := scanRequest(row)
	if err == pgx.ErrNoRows {
		return PaymentRequest{}, ErrNotFound
	}
	return r, err
}

// CompleteRequest marks a deposit auto-matched against an incoming payment.
// Both rows flip in one transaction so a crash cannot leave the payment
// claimable twice.
func (d *DB) CompleteRequest(ctx context.Context, requestID, paymentID int64) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("complete request: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE payment_requests
SET status = 'completed',
    processed_at = now(),
    status_detail = status_detail || jsonb_build_object('matched_payment_id', $2::bigint)
WHERE id = $1 AND status IN ('pending','processing','deferred')
`, requestID, paymentID)
	if err != nil {
		return fmt.Errorf("complete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	if _, err := tx.Exec(ctx, `UPDATE incoming_payments SET is_processed = TRUE WHERE id = $1`, paymentID); err != nil {
		return fmt.Errorf("complete request: %w", err)
	}
	return tx.Commit(ctx)
}

// ProcessRequest applies a manual admin decision. Only active requests can be
// processed; the withdraw-rejection rule lives in the handler because it is
// an authorization concern, not a storage one.
func (d *DB) ProcessRequest(ctx context.Context, id int64, approve bool, note string) error {
	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	detail := "{}"
	if strings.TrimSpace(note) != "" {
		detail = fmt.Sprintf(`{"admin_note": %q}`, note)
	}
	tag, err := d.Pool.Exec(ctx, `
UPDATE payment_requests
SET status = $2,
    processed_at = now(),
    status_detail = status_detail || $3::jsonb
WHERE id = $1 AND status IN ('pending','processing','deferred')
`, id, status, detail)
	if err != nil {
		return fmt.Errorf("process request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

// MarkDeferred parks a request that could not be matched synchronously.
func (d *DB) MarkDeferred(ctx context.Context, id int64) error {
	_, err := d.Pool.Exec(ctx, `
UPDATE payment_requests SET status = 'deferred' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("mark deferred: %w", err)
	}
	return nil
}

func nullAmount(a decimal.NullDecimal) any {
	if !a.Valid {
		return nil
	}
	return a.Decimal.StringFixed(2)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (PaymentRequest, error) {
	var (
		r         PaymentRequest
		amountStr *string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.RequestType, &amountStr, &r.Bank, &r.Status,
		&r.StatusDetail, &r.PhotoURL, &r.WithdrawalCode, &r.CreatedAt, &r.ProcessedAt)
	if err != nil {
		return PaymentRequest{}, err
	}
	if amountStr != nil {
		d, err := decimal.NewFromString(*amountStr)
		if err != nil {
			return PaymentRequest{}, fmt.Errorf("scan amount: %w", err)
		}
		r.Amount = decimal.NewNullDecimal(d)
	}
	return r, nil
}
