// Package domain defines core data structures used throughout the console.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/xrpdesk/pkg/currencycode"
)

// ErrInvalidPair is returned for pair strings not in BASE[.ISSUER]_QUOTE[.ISSUER] form.
var ErrInvalidPair = errors.New("invalid pair")

// Currency identifies an asset on the ledger. An empty Issuer denotes the native asset.
type Currency struct {
	// Code human-readable or wire currency code.
	Code string `json:"currency"`
	// Issuer issuing account, empty for XRP.
	Issuer string `json:"issuer,omitempty"`
}

// XRP returns the native asset identity.
func XRP() Currency {
	return Currency{Code: currencycode.Native}
}

// NewCurrency builds an identity. The issuer is dropped for the native asset.
func NewCurrency(code, issuer string) Currency {
	if currencycode.IsNative(code) {
		return XRP()
	}
	return Currency{Code: code, Issuer: issuer}
}

// IsNative reports whether the identity is the ledger's native asset.
func (c Currency) IsNative() bool {
	return c.Issuer == "" && currencycode.IsNative(c.Code)
}

// Equal compares codes under canonical decoding and issuers for issued currencies.
func (c Currency) Equal(other Currency) bool {
	if !currencycode.Equal(c.Code, other.Code) {
		return false
	}
	if c.IsNative() || other.IsNative() {
		return c.IsNative() && other.IsNative()
	}
	return c.Issuer == other.Issuer
}

// String returns the string representation.
func (c Currency) String() string {
	if c.IsNative() {
		return currencycode.Native
	}
	return fmt.Sprintf("%s.%s", currencycode.Decode(c.Code), c.Issuer)
}

// Pair base/quote trading pair. Orientation is the caller's choice.
type Pair struct {
	// Base asset being bought or sold.
	Base Currency `json:"base"`
	// Quote asset prices are expressed in.
	Quote Currency `json:"quote"`
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base.String(), p.Quote.String())
}

// Key returns a stable identifier of the pair usable as a map key.
func (p Pair) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		currencycode.Canonical(p.Base.Code), p.Base.Issuer,
		currencycode.Canonical(p.Quote.Code), p.Quote.Issuer)
}

// IsIssuer reports whether account issues either leg of the pair.
func (p Pair) IsIssuer(account string) bool {
	if account == "" {
		return false
	}
	return account == p.Base.Issuer || account == p.Quote.Issuer
}

// ParseCurrency parses CODE or CODE.ISSUER. Issued currencies require an issuer.
func ParseCurrency(s string) (Currency, error) {
	code, issuer, _ := strings.Cut(strings.TrimSpace(s), ".")
	if code == "" {
		return Currency{}, errors.Wrapf(ErrInvalidPair, "empty currency in %q", s)
	}
	if currencycode.IsNative(code) {
		return XRP(), nil
	}
	if issuer == "" {
		return Currency{}, errors.Wrapf(ErrInvalidPair, "currency %s has no issuer", code)
	}
	if _, err := currencycode.Encode(code); err != nil {
		return Currency{}, err
	}
	return NewCurrency(code, issuer), nil
}

// ParsePair parses the form produced by Pair.String, e.g. XRP_USD.rIssuer.
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "_")
	if !ok {
		return Pair{}, errors.Wrapf(ErrInvalidPair, "%q", s)
	}
	b, err := ParseCurrency(base)
	if err != nil {
		return Pair{}, err
	}
	q, err := ParseCurrency(quote)
	if err != nil {
		return Pair{}, err
	}
	if b.Equal(q) {
		return Pair{}, errors.Wrapf(ErrInvalidPair, "%q trades an asset against itself", s)
	}
	return Pair{Base: b, Quote: q}, nil
}
