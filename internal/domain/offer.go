package domain

import "time"

// Offer resting offer as returned by book_offers.
type Offer struct {
	Account    string `json:"Account"`
	Sequence   uint32 `json:"Sequence"`
	TakerGets  Amount `json:"TakerGets"`
	TakerPays  Amount `json:"TakerPays"`
	Quality    string `json:"quality,omitempty"`
	OwnerFunds string `json:"owner_funds,omitempty"`
	Expiration uint32 `json:"Expiration,omitempty"`
}

// OrderBook both sides of a pair's book. Asks sell base, bids buy base.
type OrderBook struct {
	Asks []Offer `json:"asks"`
	Bids []Offer `json:"bids"`
}

// AccountOffer own resting offer as returned by account_offers.
type AccountOffer struct {
	Flags      uint32 `json:"flags"`
	Sequence   uint32 `json:"seq"`
	TakerGets  Amount `json:"taker_gets"`
	TakerPays  Amount `json:"taker_pays"`
	Quality    string `json:"quality,omitempty"`
	Expiration uint32 `json:"expiration,omitempty"`
}

// ExpiresAt returns the expiration instant and whether the offer expires at all.
func (o AccountOffer) ExpiresAt() (time.Time, bool) {
	if o.Expiration == 0 {
		return time.Time{}, false
	}
	return RippleTime(o.Expiration), true
}
