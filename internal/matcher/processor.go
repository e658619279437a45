package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPProcessor calls the platform's auto-deposit endpoint. The client
// timeout is the second line of defense after the caller's context deadline;
// the upstream must never be able to hang a request.
type HTTPProcessor struct {
	url    string
	client *http.Client
}

func NewHTTPProcessor(url string, timeout time.Duration) *HTTPProcessor {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPProcessor{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProcessor) MatchAndProcess(ctx context.Context, paymentID int64, amount decimal.Decimal) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"payment_id": paymentID,
		"amount":     amount.StringFixed(2),
	})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("processor call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("processor status %d", resp.StatusCode)
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("processor decode: %w", err)
	}
	return out.Success, nil
}
