package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kassa_panel/internal/allocator"
	"kassa_panel/internal/db"
)

type paymentCreateRequest struct {
	PlayerID       string  `json:"playerId"`
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	Bank           string  `json:"bank"`
	WithdrawalCode string  `json:"withdrawalCode"`
	Photo          string  `json:"photo"`
}

type paymentIncomingRequest struct {
	Amount      float64 `json:"amount"`
	PaymentDate string  `json:"payment_date"`
}

// createAttempts bounds re-running the allocator when the unique index on
// active deposit amounts beats the optimistic pre-check.
const createAttempts = 3

func (a *API) paymentCreate(w http.ResponseWriter, r *http.Request) {
	var req paymentCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(req.PlayerID), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad playerId"})
		return
	}

	reqType := strings.ToLower(strings.TrimSpace(req.Type))
	if reqType != db.TypeDeposit && reqType != db.TypeWithdraw {
		writeJSON(w, 400, envelope{OK: false, Error: "bad type"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad amount"})
		return
	}

	ctx := r.Context()
	requested := decimal.NewFromFloat(req.Amount).Round(2)

	record := db.PaymentRequest{
		UserID:      userID,
		RequestType: reqType,
		Bank:        strings.ToUpper(strings.TrimSpace(req.Bank)),
		Status:      db.StatusPending,
	}
	if photo := normalizePhoto(req.Photo); photo != "" {
		record.PhotoURL = &photo
	}

	switch reqType {
	case db.TypeWithdraw:
		code := strings.TrimSpace(req.WithdrawalCode)
		if code == "" {
			writeJSON(w, 400, envelope{OK: false, Error: "bad withdrawalCode"})
			return
		}
		record.WithdrawalCode = &code
		record.Amount = decimal.NewNullDecimal(requested)

		id, err := a.DB.CreatePaymentRequest(ctx, &record)
		if err != nil {
			a.Log.Errorf("payment create: %v", err)
			writeJSON(w, 500, envelope{OK: false, Error: "create failed"})
			return
		}
		if a.Tg != nil {
			a.Tg.NotifyAdmins("Заявка на вывод #" + strconv.FormatInt(id, 10) +
				" на " + requested.StringFixed(2) + ", код " + code)
		}
		a.Hub.Publish("request.created", map[string]any{
			"request_id": id, "type": reqType, "amount": requested.StringFixed(2),
		})
		writeJSON(w, 200, envelope{OK: true, Data: map[string]any{
			"request_id": id,
			"amount":     requested.StringFixed(2),
		}})
		return

	case db.TypeDeposit:
		if !a.Settings.DepositsEnabled(ctx) {
			writeJSON(w, 400, envelope{OK: false, Error: "deposits disabled"})
			return
		}

		maxDeposit := a.Settings.MaxDeposit(ctx, a.Cfg.MaxDepositAmount)
		if maxDeposit.IsPositive() && requested.GreaterThan(maxDeposit) {
			writeJSON(w, 400, envelope{OK: false, Error: "amount exceeds deposit limit"})
			return
		}
		hasCents := allocator.HasExplicitCents(requested)

		var (
			id     int64
			amount decimal.Decimal
		)
		for attempt := 0; ; attempt++ {
			amount = allocator.Allocate(requested, hasCents, maxDeposit, func(probe decimal.Decimal) bool {
				taken, err := a.DB.IsDepositAmountActive(ctx, probe)
				if err != nil {
					a.Log.Warnf("payment create: amount check: %v", err)
					return false
				}
				return taken
			})

			record.Amount = decimal.NewNullDecimal(amount)
			id, err = a.DB.CreatePaymentRequest(ctx, &record)
			if err == nil {
				break
			}
			if errors.Is(err, db.ErrAmountTaken) && attempt < createAttempts-1 {
				// Lost the race to another request; allocate again.
				continue
			}
			if errors.Is(err, db.ErrAmountTaken) {
				writeJSON(w, 409, envelope{OK: false, Error: "amount busy, retry"})
				return
			}
			a.Log.Errorf("payment create: %v", err)
			writeJSON(w, 500, envelope{OK: false, Error: "create failed"})
			return
		}

		matched := a.Matcher.OnDepositCreated(ctx, id, amount)
		a.Hub.Publish("request.created", map[string]any{
			"request_id": id, "type": reqType, "amount": amount.StringFixed(2), "matched": matched,
		})
		writeJSON(w, 200, envelope{OK: true, Data: map[string]any{
			"request_id": id,
			"amount":     amount.StringFixed(2),
			"matched":    matched,
		}})
		return
	}
}

// paymentIncoming records a bank-reported transfer and immediately tries to
// close a pending deposit with it.
func (a *API) paymentIncoming(w http.ResponseWriter, r *http.Request) {
	var req paymentIncomingRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, 400, envelope{OK: false, Error: "bad json"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, 400, envelope{OK: false, Error: "bad amount"})
		return
	}

	paymentDate := time.Now().UTC()
	if s := strings.TrimSpace(req.PaymentDate); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, 400, envelope{OK: false, Error: "bad payment_date"})
			return
		}
		paymentDate = t.UTC()
	}

	ctx := r.Context()
	amount := decimal.NewFromFloat(req.Amount).Round(2)
	id, err := a.DB.RecordIncomingPayment(ctx, amount, paymentDate)
	if err != nil {
		a.Log.Errorf("incoming payment: %v", err)
		writeJSON(w, 500, envelope{OK: false, Error: "record failed"})
		return
	}

	matched := a.Matcher.OnIncomingPayment(ctx, id, amount)
	writeJSON(w, 200, envelope{OK: true, Data: map[string]any{
		"payment_id": id,
		"matched":    matched,
	}})
}

// normalizePhoto accepts either a full data URL or bare base64 and returns a
// normalized data URL; empty stays empty.
func normalizePhoto(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "data:") {
		return s
	}
	return "data:image/jpeg;base64," + s
}
