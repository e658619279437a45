package matcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHTTPProcessorSuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL, time.Second)
	ok, err := p.MatchAndProcess(context.Background(), 7, decimal.RequireFromString("100.03"))
	if err != nil {
		t.Fatalf("MatchAndProcess: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if got["payment_id"] != float64(7) || got["amount"] != "100.03" {
		t.Fatalf("request body = %v", got)
	}
}

func TestHTTPProcessorDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL, time.Second)
	ok, err := p.MatchAndProcess(context.Background(), 7, decimal.RequireFromString("1.00"))
	if err != nil {
		t.Fatalf("MatchAndProcess: %v", err)
	}
	if ok {
		t.Fatal("decline must not read as success")
	}
}

func TestHTTPProcessorUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL, time.Second)
	if _, err := p.MatchAndProcess(context.Background(), 7, decimal.RequireFromString("1.00")); err == nil {
		t.Fatal("non-200 must be an error")
	}
}

func TestHTTPProcessorContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise r.Context() is never
		// canceled and srv.Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := p.MatchAndProcess(ctx, 7, decimal.RequireFromString("1.00")); err == nil {
		t.Fatal("deadline must surface as an error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("deadline ignored")
	}
}
