package bank

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Bakai requisites are a full pre-built QR hash with somebody's amount baked
// in. We splice the target amount into its tag-54 field and cut the string at
// the checksum tag; the checksum itself is recomputed by the caller.

type tagSpan struct {
	start, end int // end exclusive, covers "54" + len + digits
}

// MutateBakaiPayload replaces the amount field of a stored Bakai base hash
// and returns the checksum-less payload prefix.
func MutateBakaiPayload(baseHash string, amount decimal.Decimal) (string, error) {
	baseHash = strings.TrimSpace(baseHash)

	// A Bakai requisite must never carry DemirBank markers; that means the
	// operator pasted the wrong bank's value into the wallet form.
	lower := strings.ToLower(baseHash)
	if strings.Contains(lower, strings.ToLower(demirDomain)) ||
		strings.Contains(lower, strings.ToLower(demirMerchantName)) {
		return "", ErrMarkerMismatch
	}

	switch strings.Count(baseHash, checksumTag) {
	case 0:
		return "", ErrChecksumTagMissing
	case 1:
		// ok
	default:
		// Two checksum markers cannot both be the real one. Fail loudly
		// instead of guessing; see DESIGN.md.
		return "", ErrAmbiguousChecksumTag
	}
	idx63 := strings.Index(baseHash, checksumTag)

	// Pick the last amount tag that starts before the checksum tag.
	var (
		target tagSpan
		found  bool
	)
	for _, span := range findTag54(baseHash) {
		if span.start < idx63 {
			target = span
			found = true
		}
	}
	if !found {
		return "", ErrAmountTagMissing
	}

	amountStr, amountLen := amountField(amount, 1)
	newField := "54" + amountLen + amountStr

	mutated := baseHash[:target.start] + newField + baseHash[target.end:]

	// The replacement may change the string length; shift the checksum
	// offset by the delta and verify it still lands on the tag.
	newIdx63 := idx63 + len(newField) - (target.end - target.start)
	if newIdx63 < 0 || newIdx63+len(checksumTag) > len(mutated) ||
		mutated[newIdx63:newIdx63+len(checksumTag)] != checksumTag {
		return "", ErrChecksumOffset
	}

	payload := mutated[:newIdx63]
	if !strings.Contains(payload, newField) {
		return "", ErrAmountTagMissing
	}
	return payload, nil
}

// findTag54 scans for every "54" + 2-digit length + that many digits
// occurrence. A "54" whose declared length is not backed by actual digits is
// not an amount tag.
func findTag54(s string) []tagSpan {
	var spans []tagSpan
	for i := 0; i+4 <= len(s); i++ {
		if s[i] != '5' || s[i+1] != '4' {
			continue
		}
		if notDigit(rune(s[i+2])) || notDigit(rune(s[i+3])) {
			continue
		}
		n := int(s[i+2]-'0')*10 + int(s[i+3]-'0')
		if n == 0 || i+4+n > len(s) {
			continue
		}
		value := s[i+4 : i+4+n]
		if strings.IndexFunc(value, notDigit) >= 0 {
			continue
		}
		spans = append(spans, tagSpan{start: i, end: i + 4 + n})
	}
	return spans
}
