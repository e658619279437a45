package bank

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed top-level fields of the DemirBank EMV-style payload. These are
// protocol constants; changing any of them produces codes the scanner
// rejects.
const (
	demirPayloadFormat  = "000201"   // tag 00: payload format indicator
	demirPointOfInit    = "010211"   // tag 01: point of initiation, static
	demirMerchantCat    = "52044829" // tag 52: MCC 4829, money transfer
	demirCurrency       = "5303417"  // tag 53: ISO 4217 numeric, KGS
	demirAmountMinWidth = 5
)

// BuildDemirPayload assembles the checksum-less EMV-style TLV payload for a
// 16-digit card requisite and a target amount. The returned string is exactly
// what the checksum is computed over.
func BuildDemirPayload(pan string, amount decimal.Decimal) (string, error) {
	pan = strings.TrimSpace(pan)
	if len(pan) != 16 || strings.IndexFunc(pan, notDigit) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrBadPAN, preview(pan))
	}

	amountStr, amountLen := amountField(amount, demirAmountMinWidth)

	// Nested merchant account blob under tag 32.
	merchant := tlv("00", demirDomain) +
		tlv("01", "7001") +
		tlv("10", pan) +
		tlv("12", "11") +
		tlv("13", "12")

	payload := demirPayloadFormat +
		demirPointOfInit +
		tlv("32", merchant) +
		demirMerchantCat +
		demirCurrency +
		"54" + amountLen + amountStr +
		tlv("59", demirMerchantName)

	// Tamper-evidence check: the amount field must sit inside the
	// checksum-protected region. If it does not, the encoder is broken and
	// nothing may be returned to the client.
	if !strings.Contains(payload, "54"+amountLen+amountStr) {
		return "", ErrAmountTagMissing
	}
	return payload, nil
}

func notDigit(r rune) bool { return r < '0' || r > '9' }

// preview truncates a requisite value for diagnostics so full card numbers
// never reach the logs.
func preview(s string) string {
	if len(s) <= 6 {
		return s
	}
	return s[:4] + "…" + s[len(s)-2:]
}
