// Package currencycode maps human-readable XRPL currency codes to the ledger's
// 160-bit wire representation and back.
//
// Short ISO-like codes ("USD") travel as-is. Longer codes (4-20 printable ASCII
// characters) are packed into a 40 hex digit field, right-padded with zero bytes.
package currencycode

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Native is the code of the ledger's native asset.
	Native = "XRP"

	standardLen = 3
	minLongLen  = 4
	maxLongLen  = 20
	wireLen     = 40
)

// ErrInvalidCurrencyCode is returned when a code violates length or charset constraints.
var ErrInvalidCurrencyCode = errors.New("invalid currency code")

// Encode converts a human-readable code into its wire form.
func Encode(code string) (string, error) {
	switch {
	case len(code) == standardLen && isAlphanumeric(code):
		return code, nil
	case len(code) == wireLen:
		if !isHex(code) {
			return "", errors.Wrapf(ErrInvalidCurrencyCode, "%q is not a 160-bit hex code", code)
		}
		return strings.ToUpper(code), nil
	case len(code) >= standardLen && len(code) <= maxLongLen:
		if !isPrintable(code) {
			return "", errors.Wrapf(ErrInvalidCurrencyCode, "%q contains non-printable characters", code)
		}
		var buf [wireLen / 2]byte
		copy(buf[:], code)
		return strings.ToUpper(hex.EncodeToString(buf[:])), nil
	default:
		return "", errors.Wrapf(ErrInvalidCurrencyCode, "length %d is not supported", len(code))
	}
}

// Decode converts a wire code into display form. It never fails: anything that
// cannot be rendered as printable ASCII is returned unchanged.
func Decode(wire string) string {
	if len(wire) != wireLen {
		return wire
	}

	raw, err := hex.DecodeString(wire)
	if err != nil {
		return wire
	}

	if iso, ok := standardFromBytes(raw); ok {
		return iso
	}

	trimmed := strings.TrimRight(string(raw), "\x00")
	if trimmed == "" || !isPrintable(trimmed) {
		return wire
	}

	return trimmed
}

// Canonical returns the form used for equality comparisons across the system.
func Canonical(code string) string {
	return Decode(code)
}

// Equal reports whether two codes denote the same currency, regardless of which
// of them is in wire form.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// IsNative reports whether code names the native asset, either by its symbol or
// by the all-zero 160-bit code.
func IsNative(code string) bool {
	if code == "" || code == Native {
		return true
	}
	return len(code) == wireLen && strings.Trim(code, "0") == ""
}

// standardFromBytes recognises the ISO layout where the three ASCII letters sit in
// bytes 12..14 and every other byte is zero.
func standardFromBytes(raw []byte) (string, bool) {
	if len(raw) != wireLen/2 {
		return "", false
	}
	for i, b := range raw {
		if i >= 12 && i <= 14 {
			continue
		}
		if b != 0 {
			return "", false
		}
	}
	code := string(raw[12:15])
	if !isAlphanumeric(code) {
		return "", false
	}
	return code, true
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func isPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
