package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request types.
const (
	TypeDeposit  = "deposit"
	TypeWithdraw = "withdraw"
	TypeErrorLog = "error_log"
)

// Request statuses. Active statuses (pending/processing/deferred) are the
// ones still matchable against an incoming payment.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDeferred   = "deferred"
	StatusCompleted  = "completed"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

func IsActiveStatus(s string) bool {
	return s == StatusPending || s == StatusProcessing || s == StatusDeferred
}

type PaymentRequest struct {
	ID             int64               `json:"id"`
	UserID         int64               `json:"user_id"`
	RequestType    string              `json:"request_type"`
	Amount         decimal.NullDecimal `json:"amount"`
	Bank           string              `json:"bank"`
	Status         string              `json:"status"`
	StatusDetail   string              `json:"status_detail"`
	PhotoURL       *string             `json:"photo_url,omitempty"`
	WithdrawalCode *string             `json:"withdrawal_code,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	ProcessedAt    *time.Time          `json:"processed_at,omitempty"`
}

type IncomingPayment struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	IsProcessed bool            `json:"is_processed"`
}

type Requisite struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Bank     string  `json:"bank"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"-"`
	IsActive bool    `json:"is_active"`
}
