package domain

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/xrpdesk/pkg/currencycode"
)

// dropsPerXRP number of drops in one XRP.
var dropsPerXRP = decimal.NewFromInt(1_000_000)

// Amount wire-format ledger amount: XRP drops as a string, or an issued currency object.
type Amount struct {
	// Currency wire currency code, "XRP" for native amounts.
	Currency string `json:"currency"`
	// Issuer issuing account, empty for XRP.
	Issuer string `json:"issuer,omitempty"`
	// Value drops for XRP, decimal string for issued currencies.
	Value string `json:"value"`
}

// NewXRPAmount creates a native amount from drops.
func NewXRPAmount(drops string) Amount {
	return Amount{Currency: currencycode.Native, Value: drops}
}

// NewIssuedAmount creates an issued currency amount.
func NewIssuedAmount(currency, issuer, value string) Amount {
	return Amount{Currency: currency, Issuer: issuer, Value: value}
}

// IsNative reports whether the amount is denominated in XRP.
func (a Amount) IsNative() bool {
	return a.Issuer == "" && currencycode.IsNative(a.Currency)
}

// Identity returns the currency identity of the amount.
func (a Amount) Identity() Currency {
	if a.IsNative() {
		return XRP()
	}
	return Currency{Code: a.Currency, Issuer: a.Issuer}
}

// Decimal returns the amount in whole units (XRP for native, value for issued).
func (a Amount) Decimal() (decimal.Decimal, error) {
	if a.Value == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse amount value %q", a.Value)
	}
	if a.IsNative() {
		return v.Div(dropsPerXRP), nil
	}
	return v, nil
}

// UnmarshalJSON accepts both the drops string and the issued currency object.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		*a = NewXRPAmount(drops)
		return nil
	}

	type issued Amount
	var v issued
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "failed to decode amount")
	}
	*a = Amount(v)
	if a.Currency == "" {
		a.Currency = currencycode.Native
	}
	return nil
}

// MarshalJSON emits the drops string for XRP and the object form otherwise.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.IsNative() {
		return json.Marshal(a.Value)
	}
	type issued Amount
	return json.Marshal(issued(a))
}

// DropsToXRP converts a drops string into XRP.
func DropsToXRP(drops string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse drops %q", drops)
	}
	return v.Div(dropsPerXRP), nil
}

// Matches reports whether amount belongs to the given currency identity.
func Matches(amount Amount, want Currency) bool {
	return MatchesCurrency(amount.Currency, amount.Issuer, want)
}

// MatchesCurrency is the matching rule shared by fill reconciliation and pool
// normalization. The wire code is compared both decoded and raw, so either side
// may already be in display form. The native asset has no issuer to compare.
func MatchesCurrency(code, issuer string, want Currency) bool {
	decoded := currencycode.Decode(code)
	if decoded != want.Code && code != want.Code && decoded != currencycode.Decode(want.Code) {
		return false
	}
	if want.IsNative() {
		return true
	}
	return issuer == want.Issuer
}
