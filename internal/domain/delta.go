package domain

import "github.com/shopspring/decimal"

// BalanceDelta signed balance change of one account in one currency.
// Positive values mean the account gained.
type BalanceDelta struct {
	Account  string
	Currency Currency
	Value    decimal.Decimal
}
