package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RecordIncomingPayment stores a bank-reported inbound transfer.
func (d *DB) RecordIncomingPayment(ctx context.Context, amount decimal.Decimal, paymentDate time.Time) (int64, error) {
	var id int64
	err := d.Pool.QueryRow(ctx, `
INSERT INTO incoming_payments (amount, payment_date)
VALUES ($1::numeric, $2)
RETURNING id
`, amount.StringFixed(2), paymentDate.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record incoming payment: %w", err)
	}
	return id, nil
}

// FindUnprocessedPayment returns the most recent unprocessed payment with
// exactly this amount inside the recency window. Stale payments never match:
// reconciling against an old transfer would credit the wrong user.
func (d *DB) FindUnprocessedPayment(ctx context.Context, amount decimal.Decimal, window time.Duration) (IncomingPayment, error) {
	since := time.Now().UTC().Add(-window)
	var (
		p         IncomingPayment
		amountStr string
	)
	err := d.Pool.QueryRow(ctx, `
SELECT id, amount::text, payment_date, is_processed
FROM incoming_payments
WHERE NOT is_processed
  AND amount = $1::numeric
  AND payment_date >= $2
ORDER BY payment_date DESC
LIMIT 1`, amount.StringFixed(2), since).Scan(&p.ID, &amountStr, &p.PaymentDate, &p.IsProcessed)
	if err == pgx.ErrNoRows {
		return IncomingPayment{}, ErrNotFound
	}
	if err != nil {
		return IncomingPayment{}, fmt.Errorf("find unprocessed payment: %w", err)
	}
	p.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return IncomingPayment{}, fmt.Errorf("scan amount: %w", err)
	}
	return p, nil
}
