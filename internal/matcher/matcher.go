// Package matcher reconciles deposit requests with bank-reported incoming
// payments. The exact decimal amount is the only join key, so matching is
// equality within a recency window, most recent payment first.
package matcher

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kassa_panel/internal/db"
)

type Store interface {
	FindUnprocessedPayment(ctx context.Context, amount decimal.Decimal, window time.Duration) (db.IncomingPayment, error)
	FindActiveDepositByAmount(ctx context.Context, amount decimal.Decimal) (db.PaymentRequest, error)
	GetRequest(ctx context.Context, id int64) (db.PaymentRequest, error)
	CompleteRequest(ctx context.Context, requestID, paymentID int64) error
	MarkDeferred(ctx context.Context, id int64) error
}

// Processor is the external auto-deposit service that credits the player's
// casino balance. It is a black box here: success means the money landed.
type Processor interface {
	MatchAndProcess(ctx context.Context, paymentID int64, amount decimal.Decimal) (bool, error)
}

type Notifier interface {
	NotifyAdmins(text string)
}

type EventSink interface {
	Publish(eventType string, data any)
}

type Matcher struct {
	store     Store
	processor Processor // nil means complete locally without an upstream call
	notifier  Notifier
	events    EventSink
	log       *zap.SugaredLogger

	window      time.Duration
	procTimeout time.Duration
	notifyDelay time.Duration
}

func New(store Store, processor Processor, notifier Notifier, events EventSink,
	window, procTimeout, notifyDelay time.Duration, log *zap.SugaredLogger) *Matcher {
	return &Matcher{
		store:       store,
		processor:   processor,
		notifier:    notifier,
		events:      events,
		log:         log,
		window:      window,
		procTimeout: procTimeout,
		notifyDelay: notifyDelay,
	}
}

// OnDepositCreated runs the synchronous probe right after a deposit request
// is persisted. It never returns an error: matching failures must not block
// request creation, the delayed notification is the safety net.
func (m *Matcher) OnDepositCreated(ctx context.Context, requestID int64, amount decimal.Decimal) bool {
	payment, err := m.store.FindUnprocessedPayment(ctx, amount, m.window)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			m.log.Warnf("matcher: probe for request %d: %v", requestID, err)
		}
		m.scheduleFallback(requestID, amount)
		return false
	}

	if m.settle(ctx, requestID, payment.ID, amount) {
		return true
	}
	m.scheduleFallback(requestID, amount)
	return false
}

// OnIncomingPayment is the ingestion-path entry: a bank webhook recorded a
// payment, try to close a pending deposit with it.
func (m *Matcher) OnIncomingPayment(ctx context.Context, paymentID int64, amount decimal.Decimal) bool {
	req, err := m.store.FindActiveDepositByAmount(ctx, amount)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			m.log.Warnf("matcher: request lookup for payment %d: %v", paymentID, err)
		}
		return false
	}
	return m.settle(ctx, req.ID, paymentID, amount)
}

// settle drives the processor (bounded by procTimeout) and completes the
// request on success.
func (m *Matcher) settle(ctx context.Context, requestID, paymentID int64, amount decimal.Decimal) bool {
	if m.processor != nil {
		pctx, cancel := context.WithTimeout(ctx, m.procTimeout)
		defer cancel()
		ok, err := m.processor.MatchAndProcess(pctx, paymentID, amount)
		if err != nil {
			m.log.Warnf("matcher: processor for payment %d: %v", paymentID, err)
			return false
		}
		if !ok {
			return false
		}
	}

	if err := m.store.CompleteRequest(ctx, requestID, paymentID); err != nil {
		m.log.Errorf("matcher: complete request %d with payment %d: %v", requestID, paymentID, err)
		return false
	}
	m.log.Infof("matcher: request %d auto-completed by payment %d (%s)", requestID, paymentID, amount.StringFixed(2))
	if m.events != nil {
		m.events.Publish("request.completed", map[string]any{
			"request_id": requestID,
			"payment_id": paymentID,
			"amount":     amount.StringFixed(2),
		})
	}
	return true
}

// scheduleFallback arms the delayed admin notification. The timer is
// in-memory and does not survive a restart; the dashboard still shows the
// request, so nothing is lost except the nudge.
func (m *Matcher) scheduleFallback(requestID int64, amount decimal.Decimal) {
	jobID := uuid.NewString()
	m.log.Infof("matcher: request %d unmatched, fallback alert %s in %s", requestID, jobID, m.notifyDelay)

	time.AfterFunc(m.notifyDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := m.store.GetRequest(ctx, requestID)
		if err != nil {
			m.log.Warnf("matcher: fallback %s: request %d: %v", jobID, requestID, err)
			return
		}
		if !db.IsActiveStatus(req.Status) {
			// Resolved in the meantime, stay quiet.
			return
		}
		if err := m.store.MarkDeferred(ctx, requestID); err != nil {
			m.log.Warnf("matcher: fallback %s: defer request %d: %v", jobID, requestID, err)
		}
		if m.notifier != nil {
			m.notifier.NotifyAdmins(
				"Депозит #" + strconv.FormatInt(requestID, 10) + " на " + amount.StringFixed(2) +
					" не сопоставлен автоматически, нужна проверка.")
		}
		if m.events != nil {
			m.events.Publish("request.deferred", map[string]any{"request_id": requestID})
		}
	})
}
