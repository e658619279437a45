package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// takenSet builds a predicate over a fixed set of busy amounts and counts
// probes.
func takenSet(amounts ...string) (func(decimal.Decimal) bool, *int) {
	busy := make(map[string]bool, len(amounts))
	for _, a := range amounts {
		busy[dec(a).StringFixed(2)] = true
	}
	calls := 0
	return func(d decimal.Decimal) bool {
		calls++
		return busy[d.StringFixed(2)]
	}, &calls
}

func TestHasExplicitCents(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"100", false},
		{"100.00", false},
		{"100.01", true},
		{"100.10", true},
		{"0.99", true},
	}
	for _, tc := range cases {
		if got := HasExplicitCents(dec(tc.in)); got != tc.want {
			t.Errorf("HasExplicitCents(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAllocateFreeAmountReturnedAsIs(t *testing.T) {
	taken, calls := takenSet()
	got := Allocate(dec("100.01"), true, dec("100000"), taken)
	if !got.Equal(dec("100.01")) {
		t.Fatalf("got %s, want 100.01", got)
	}
	if *calls != 1 {
		t.Fatalf("probe calls = %d, want 1", *calls)
	}
}

func TestAllocateDeterministicProbing(t *testing.T) {
	// Explicit cents walk up by exactly 0.01 per collision.
	taken, _ := takenSet("100.01", "100.02")
	got := Allocate(dec("100.01"), true, dec("100000"), taken)
	if !got.Equal(dec("100.03")) {
		t.Fatalf("got %s, want 100.03", got)
	}
}

func TestAllocateRandomizedCents(t *testing.T) {
	// Integer request whose exact value is busy: the result keeps the whole
	// part and gains cents in [0.01, 0.99].
	taken, _ := takenSet("500.00")
	for i := 0; i < 50; i++ {
		got := Allocate(dec("500"), false, dec("100000"), taken)
		if got.Equal(dec("500.00")) {
			t.Fatal("returned the busy amount")
		}
		if !got.Truncate(0).Equal(dec("500")) {
			t.Fatalf("whole part changed: %s", got)
		}
		cents := got.Sub(got.Truncate(0))
		if cents.LessThan(dec("0.01")) || cents.GreaterThan(dec("0.99")) {
			t.Fatalf("cents out of range: %s", got)
		}
	}
}

func TestAllocateCeilingReturnsLastBelow(t *testing.T) {
	// 99.99 and 100.00 busy with a 100.00 ceiling: the next probe would
	// exceed the ceiling, so the last in-range value comes back best-effort.
	taken, _ := takenSet("99.99", "100.00")
	got := Allocate(dec("99.99"), true, dec("100.00"), taken)
	if !got.Equal(dec("100.00")) {
		t.Fatalf("got %s, want 100.00", got)
	}
}

func TestAllocateExhaustionReturnsLastProbe(t *testing.T) {
	calls := 0
	allBusy := func(decimal.Decimal) bool {
		calls++
		return true
	}
	got := Allocate(dec("10.00"), true, dec("100000"), allBusy)
	// Initial check plus MaxAttempts probes, +0.01 each.
	if !got.Equal(dec("10.10")) {
		t.Fatalf("got %s, want 10.10", got)
	}
	if calls != MaxAttempts+1 {
		t.Fatalf("probe calls = %d, want %d", calls, MaxAttempts+1)
	}
}

func TestAllocateNoCeilingWhenZero(t *testing.T) {
	taken, _ := takenSet("100.01")
	got := Allocate(dec("100.01"), true, decimal.Zero, taken)
	if !got.Equal(dec("100.02")) {
		t.Fatalf("got %s, want 100.02", got)
	}
}
