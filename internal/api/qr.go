package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"kassa_panel/internal/allocator"
	"kassa_panel/internal/bank"
	"kassa_panel/internal/db"
)

type generateQRRequest struct {
	Amount   float64 `json:"amount"`
	PlayerID string  `json:"playerId"`
	Bank     string  `json:"bank"`
}

type qrSettings struct {
	EnabledBanks    []string `json:"enabled_banks"`
	DepositsEnabled bool     `json:"deposits_enabled"`
}

type generateQRResponse struct {
	Success     bool              `json:"success"`
	QRHash      string            `json:"qr_hash,omitempty"`
	PrimaryURL  string            `json:"primary_url,omitempty"`
	AllBankURLs map[string]string `json:"all_bank_urls,omitempty"`
	Settings    *qrSettings       `json:"settings,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func qrFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, generateQRResponse{Success: false, Error: msg})
}

// generateQR is the mini-app's payment entry point: allocate a collision-free
// amount, encode it into the active requisite's bank format, and hand back
// deep links for every supported app.
func (a *API) generateQR(w http.ResponseWriter, r *http.Request) {
	var req generateQRRequest
	if err := readJSON(r, &req); err != nil {
		qrFail(w, 400, "bad json")
		return
	}
	if req.Amount <= 0 {
		qrFail(w, 400, "bad amount")
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		qrFail(w, 400, "bad playerId")
		return
	}

	ctx := r.Context()
	requested := decimal.NewFromFloat(req.Amount).Round(2)
	maxDeposit := a.Settings.MaxDeposit(ctx, a.Cfg.MaxDepositAmount)
	if maxDeposit.IsPositive() && requested.GreaterThan(maxDeposit) {
		qrFail(w, 400, "amount exceeds deposit limit")
		return
	}

	requisite, err := a.activeRequisite(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNoActiveRequisite) {
			a.Log.Warnf("generate-qr: no active requisite")
			qrFail(w, 400, "no active requisite configured")
			return
		}
		a.Log.Errorf("generate-qr: requisite lookup: %v", err)
		qrFail(w, 400, "requisite unavailable")
		return
	}

	kind, err := bank.ParseKind(requisite.Bank)
	if err != nil {
		a.Log.Errorf("generate-qr: requisite %d has unknown bank %q", requisite.ID, requisite.Bank)
		qrFail(w, 400, "unsupported requisite bank")
		return
	}

	amount := allocator.Allocate(requested, allocator.HasExplicitCents(requested), maxDeposit,
		func(probe decimal.Decimal) bool {
			taken, err := a.DB.IsDepositAmountActive(ctx, probe)
			if err != nil {
				// Optimistic pre-check only; the unique index has the final say.
				a.Log.Warnf("generate-qr: amount check: %v", err)
				return false
			}
			return taken
		})

	qrHash, err := bank.Generate(kind, requisite.Value, amount)
	if err != nil {
		switch {
		case bank.IsInvariantViolation(err):
			// Protocol-format bug, never user error. Loud log, nothing
			// partial to the client.
			a.Log.Errorf("generate-qr: encoding invariant: %v (requisite %d, amount %s)",
				err, requisite.ID, amount.StringFixed(2))
			qrFail(w, 500, "qr encoding failed")
		case bank.IsConfigError(err):
			a.Log.Errorf("generate-qr: requisite %d misconfigured: %v", requisite.ID, err)
			qrFail(w, 400, "requisite misconfigured")
		default:
			a.Log.Errorf("generate-qr: %v", err)
			qrFail(w, 500, "qr encoding failed")
		}
		return
	}

	links := bank.ResolveLinks(qrHash)
	primary := bank.PickPrimary(req.Bank, links)

	// Response carries only the canonical six names; the lowercase aliases
	// are lookup keys, not part of the wire contract.
	all := make(map[string]string, 6)
	for _, name := range bank.CanonicalBankNames() {
		all[name] = links[name]
	}

	enabled := a.Settings.EnabledBanks(ctx)
	if len(enabled) == 0 {
		enabled = bank.CanonicalBankNames()
	}

	writeJSON(w, 200, generateQRResponse{
		Success:     true,
		QRHash:      qrHash,
		PrimaryURL:  primary,
		AllBankURLs: all,
		Settings: &qrSettings{
			EnabledBanks:    enabled,
			DepositsEnabled: a.Settings.DepositsEnabled(ctx),
		},
	})
}
