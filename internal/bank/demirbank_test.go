package bank

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const testPAN = "1234567890123456"

// Golden payloads captured from codes the DemirBank app actually accepted.
// Any change here means the wire format changed and every deployed requisite
// breaks.
func TestBuildDemirPayloadGolden(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		payload string
	}{
		{
			name:    "round hundred",
			amount:  "100.00",
			payload: "00020101021132590015qr.demirbank.kg01047001101612345678901234561202111302125204482953034175405100005909DEMIRBANK",
		},
		{
			name:    "small amount pads cents to five digits",
			amount:  "5.00",
			payload: "00020101021132590015qr.demirbank.kg01047001101612345678901234561202111302125204482953034175405005005909DEMIRBANK",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			got, err := BuildDemirPayload(testPAN, amount)
			if err != nil {
				t.Fatalf("BuildDemirPayload: %v", err)
			}
			if got != tc.payload {
				t.Fatalf("payload mismatch\n got %s\nwant %s", got, tc.payload)
			}
		})
	}
}

func TestBuildDemirPayloadDeterministic(t *testing.T) {
	amount := decimal.RequireFromString("250.50")
	first, err := BuildDemirPayload(testPAN, amount)
	if err != nil {
		t.Fatalf("BuildDemirPayload: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := BuildDemirPayload(testPAN, amount)
		if err != nil {
			t.Fatalf("BuildDemirPayload: %v", err)
		}
		if again != first {
			t.Fatalf("payload not deterministic: %s vs %s", again, first)
		}
	}
}

func TestBuildDemirPayloadStructure(t *testing.T) {
	amount := decimal.RequireFromString("123.45")
	payload, err := BuildDemirPayload(testPAN, amount)
	if err != nil {
		t.Fatalf("BuildDemirPayload: %v", err)
	}
	for _, want := range []string{
		"000201",
		"010211",
		"0015qr.demirbank.kg",
		"1016" + testPAN,
		"120211130212",
		"52044829",
		"5303417",
		"540512345", // 123.45 as zero-padded cents
		"5909DEMIRBANK",
	} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload missing %q: %s", want, payload)
		}
	}
	if strings.Contains(payload, checksumTag) {
		t.Errorf("checksum-less payload must not contain %s: %s", checksumTag, payload)
	}
}

func TestBuildDemirPayloadRejectsBadPAN(t *testing.T) {
	amount := decimal.RequireFromString("10.00")
	for _, pan := range []string{
		"",
		"123456789012345",   // 15 digits
		"12345678901234567", // 17 digits
		"123456789012345x",
		"1234 567890 12345",
	} {
		if _, err := BuildDemirPayload(pan, amount); !errors.Is(err, ErrBadPAN) {
			t.Errorf("pan %q: got err %v, want ErrBadPAN", pan, err)
		}
	}
}

func TestBuildDemirPayloadErrorHidesPAN(t *testing.T) {
	_, err := BuildDemirPayload("9876543210987654321", decimal.RequireFromString("10.00"))
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "9876543210987654321") {
		t.Fatalf("error leaks full requisite: %v", err)
	}
}

func TestGenerateDemirArtifact(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	artifact, err := Generate(DemirBank, testPAN, amount)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	const want = "00020101021132590015qr.demirbank.kg01047001101612345678901234561202111302125204482953034175405100005909DEMIRBANK" + "6304" + "4755"
	if artifact != want {
		t.Fatalf("artifact mismatch\n got %s\nwant %s", artifact, want)
	}
	tail := artifact[len(artifact)-4:]
	if tail != strings.ToLower(tail) {
		t.Fatalf("demirbank checksum must be lowercase, got %q", tail)
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	if _, err := Generate(Kind(99), testPAN, decimal.RequireFromString("1.00")); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("got %v, want ErrUnknownBank", err)
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"DEMIRBANK", DemirBank, true},
		{"demir", DemirBank, true},
		{" demirbank ", DemirBank, true},
		{"BAKAI", Bakai, true},
		{"bakai24", Bakai, true},
		{"MBANK", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrUnknownBank) {
			t.Errorf("ParseKind(%q) err = %v; want ErrUnknownBank", tc.in, err)
		}
	}
}
