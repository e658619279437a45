// Package allocator resolves a requested deposit amount to one that is not
// currently claimed by another active request. The exact amount is the only
// key that reconciles an anonymous bank transfer with a request, so two
// active deposits must never share one.
package allocator

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// MaxAttempts bounds the probing loop. Exhaustion is not an error: the last
// probe is returned best-effort and the caller logs a warning.
const MaxAttempts = 10

var cent = decimal.New(1, -2) // 0.01

// HasExplicitCents reports whether the client already appended a fractional
// part to the amount. Integer amounts come from bot flows and get randomized
// cents instead of deterministic probing.
func HasExplicitCents(amount decimal.Decimal) bool {
	return !amount.Equal(amount.Truncate(0))
}

// Allocate returns an amount with exactly two fractional digits that the
// taken predicate reported free, or the last probed value if every attempt
// was taken. Probes above maxAmount are rejected; hitting the ceiling falls
// back to the last value checked before it. The requested amount itself must
// already be within the ceiling; the intake handlers reject over-limit
// requests before allocating.
//
// The check-then-use sequence is racy under concurrency; the storage layer's
// unique index on active deposit amounts is the authority, and its conflict
// error re-runs this allocation.
func Allocate(requested decimal.Decimal, hasExplicitCents bool, maxAmount decimal.Decimal, taken func(decimal.Decimal) bool) decimal.Decimal {
	amount := requested.Round(2)
	if !taken(amount) {
		return amount
	}

	whole := requested.Truncate(0)
	last := amount
	for i := 0; i < MaxAttempts; i++ {
		var probe decimal.Decimal
		if hasExplicitCents {
			probe = last.Add(cent).Round(2)
		} else {
			probe = whole.Add(decimal.New(int64(rand.Intn(99)+1), -2))
		}
		if maxAmount.IsPositive() && probe.GreaterThan(maxAmount) {
			return last
		}
		last = probe
		if !taken(probe) {
			return probe
		}
	}
	return last
}
