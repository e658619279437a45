package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kassa_panel/internal/cache"
	"kassa_panel/internal/config"
	"kassa_panel/internal/db"
	"kassa_panel/internal/matcher"
	"kassa_panel/internal/ws"
)

// End-to-end flow against a throwaway Postgres. Set TEST_DATABASE_URL to run;
// the referenced database is truncated.
func newE2EAPI(t *testing.T) (*API, *db.DB) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(database.Close)

	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := database.Pool.Exec(ctx,
		`TRUNCATE payment_requests, incoming_payments, requisites, settings`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	log := zap.NewNop().Sugar()
	cfg := config.Config{
		AdminToken:       "secret",
		MaxDepositAmount: decimal.RequireFromString("100000"),
		MatchWindow:      30 * time.Minute,
	}
	hub := ws.NewHub(log)
	a := &API{
		Cfg:      cfg,
		DB:       database,
		Settings: cache.NewSettings(database, nil, 30*time.Second, time.Now, log),
		Hub:      hub,
		Matcher:  matcher.New(database, nil, nil, hub, cfg.MatchWindow, time.Second, time.Hour, log),
		Log:      log,
	}
	return a, database
}

func activateTestRequisite(t *testing.T, database *db.DB, bankCode, value string) {
	t.Helper()
	ctx := context.Background()
	id, err := database.CreateRequisite(ctx, &db.Requisite{
		Name:  "test wallet",
		Value: value,
		Bank:  bankCode,
	})
	if err != nil {
		t.Fatalf("create requisite: %v", err)
	}
	if err := database.ActivateRequisite(ctx, id); err != nil {
		t.Fatalf("activate requisite: %v", err)
	}
}

func TestGenerateQREndToEnd(t *testing.T) {
	a, database := newE2EAPI(t)
	activateTestRequisite(t, database, "DEMIRBANK", "1111222233334444")
	h := a.Router()

	w := doJSON(t, h, "POST", "/generate-qr", "", `{"amount":500,"playerId":"123","bank":"demirbank"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp generateQRResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}

	// No competing requests, so the amount survives as-is and the artifact
	// is fully deterministic.
	const wantHash = "00020101021132590015qr.demirbank.kg01047001101611112222333344441202111302125204482953034175405500005909DEMIRBANK63045a92"
	if resp.QRHash != wantHash {
		t.Fatalf("qr_hash mismatch\n got %s\nwant %s", resp.QRHash, wantHash)
	}
	if resp.PrimaryURL != "https://retail.demirbank.kg/#"+wantHash {
		t.Fatalf("primary_url = %s", resp.PrimaryURL)
	}
	if len(resp.AllBankURLs) != 6 {
		t.Fatalf("all_bank_urls has %d entries, want 6", len(resp.AllBankURLs))
	}
	for name, url := range resp.AllBankURLs {
		if !strings.HasSuffix(url, wantHash) {
			t.Errorf("link for %s missing artifact: %s", name, url)
		}
	}
	if resp.Settings == nil || !resp.Settings.DepositsEnabled {
		t.Fatalf("settings = %+v", resp.Settings)
	}
}

func TestDepositFlowEndToEnd(t *testing.T) {
	a, database := newE2EAPI(t)
	activateTestRequisite(t, database, "DEMIRBANK", "1111222233334444")
	h := a.Router()
	ctx := context.Background()

	// First deposit takes the requested amount.
	w := doJSON(t, h, "POST", "/payments/create", "",
		`{"playerId":"123","type":"deposit","amount":750.25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var first struct {
		OK   bool `json:"ok"`
		Data struct {
			RequestID int64  `json:"request_id"`
			Amount    string `json:"amount"`
			Matched   bool   `json:"matched"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !first.OK || first.Data.Amount != "750.25" || first.Data.Matched {
		t.Fatalf("first = %+v", first)
	}

	// Second deposit for the same amount must be displaced by one cent.
	w = doJSON(t, h, "POST", "/payments/create", "",
		`{"playerId":"456","type":"deposit","amount":750.25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var second struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if second.Data.Amount != "750.26" {
		t.Fatalf("second amount = %s, want 750.26", second.Data.Amount)
	}

	// An incoming payment with the first amount closes the first request.
	w = doJSON(t, h, "POST", "/admin/payments/incoming", "secret",
		`{"amount":750.25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var incoming struct {
		Data struct {
			Matched bool `json:"matched"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &incoming); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !incoming.Data.Matched {
		t.Fatal("incoming payment should match the first deposit")
	}

	req, err := database.GetRequest(ctx, first.Data.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != db.StatusCompleted {
		t.Fatalf("status = %s, want %s", req.Status, db.StatusCompleted)
	}
}
