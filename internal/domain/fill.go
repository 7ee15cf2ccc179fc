package domain

import "fmt"

// Side direction of an executed fill relative to the pair's base asset.
type Side string

const (
	// SideBuy the submitter acquired base.
	SideBuy Side = "buy"
	// SideSell the submitter gave up base.
	SideSell Side = "sell"
)

// String returns the string representation of the side
func (s Side) String() string {
	return string(s)
}

// Fill offer that actually executed against existing liquidity.
// Numeric fields are rendered to six significant digits.
type Fill struct {
	Side            Side   `json:"side"`
	Price           string `json:"price"`
	BaseAmount      string `json:"baseAmount"`
	QuoteAmount     string `json:"quoteAmount"`
	Account         string `json:"account"`
	Timestamp       string `json:"timestamp"`
	TransactionHash string `json:"hash"`
}

// String returns a human-readable string representation.
func (f Fill) String() string {
	return fmt.Sprintf("%s %s @ %s (%s) by %s", f.Side, f.BaseAmount, f.Price, f.QuoteAmount, f.Account)
}

// FillRecord bundles a journaled fill with its pair and WAL index.
type FillRecord struct {
	Index uint64 `json:"index"`
	Pair  string `json:"pair"`
	Fill  Fill   `json:"fill"`
}
