// Package bank builds and verifies the QR payment payloads accepted by the
// Kyrgyz bank apps the cashier works with. Everything here is pure: no I/O,
// no clock, no storage.
package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of wire formats we can produce. Adding a bank means
// adding a case to every switch below; the compiler finds the rest.
type Kind int

const (
	DemirBank Kind = iota
	Bakai
)

var (
	ErrUnknownBank = errors.New("bank: unknown bank kind")

	// Configuration problems: an operator stored the wrong requisite.
	ErrMarkerMismatch = errors.New("bank: bakai requisite contains demirbank markers")
	ErrBadPAN         = errors.New("bank: requisite is not a 16-digit PAN")

	// Encoding invariant violations. These mean a format bug, not user error,
	// and must abort the whole generation.
	ErrAmountTagMissing     = errors.New("bank: amount tag 54 not found in payload")
	ErrChecksumTagMissing   = errors.New("bank: checksum tag 6304 not found in base hash")
	ErrAmbiguousChecksumTag = errors.New("bank: base hash contains multiple 6304 checksum tags")
	ErrChecksumOffset       = errors.New("bank: recomputed checksum offset does not point at 6304")
)

const (
	demirDomain       = "qr.demirbank.kg"
	demirMerchantName = "DEMIRBANK"
	checksumTag       = "6304"
)

func (k Kind) String() string {
	switch k {
	case DemirBank:
		return "DEMIRBANK"
	case Bakai:
		return "BAKAI"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a stored requisite bank code onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEMIRBANK", "DEMIR":
		return DemirBank, nil
	case "BAKAI", "BAKAI24":
		return Bakai, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBank, s)
}

// amountField renders amount as integer cents, left-padded to minWidth
// digits, plus the 2-digit decimal length prefix the tag-54 field carries.
// DemirBank pads to 5; the Bakai scanner wants the bare digits.
func amountField(amount decimal.Decimal, minWidth int) (amountStr, amountLen string) {
	cents := amount.Round(2).Shift(2).IntPart()
	amountStr = fmt.Sprintf("%0*d", minWidth, cents)
	amountLen = fmt.Sprintf("%02d", len(amountStr))
	return amountStr, amountLen
}

// tlv is the 2-digit-tag + 2-digit-length + value building block both formats
// are made of.
func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// Generate builds the final scannable QR artifact (payload + "6304" + checksum)
// for the given requisite value and amount.
func Generate(kind Kind, requisite string, amount decimal.Decimal) (string, error) {
	var (
		payload string
		err     error
	)
	switch kind {
	case DemirBank:
		payload, err = BuildDemirPayload(requisite, amount)
	case Bakai:
		payload, err = MutateBakaiPayload(requisite, amount)
	default:
		return "", ErrUnknownBank
	}
	if err != nil {
		return "", err
	}
	return payload + checksumTag + Checksum(payload, kind), nil
}

// IsInvariantViolation reports whether err is a protocol-format bug rather
// than a validation or configuration problem.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrAmountTagMissing) ||
		errors.Is(err, ErrChecksumTagMissing) ||
		errors.Is(err, ErrAmbiguousChecksumTag) ||
		errors.Is(err, ErrChecksumOffset)
}

// IsConfigError reports whether err points at a misconfigured requisite.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMarkerMismatch) || errors.Is(err, ErrBadPAN)
}
