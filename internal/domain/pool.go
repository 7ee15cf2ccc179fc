package domain

import "time"

// RawPool amm_info result. Amount and Amount2 come back in no particular order.
type RawPool struct {
	Exists       bool            `json:"-"`
	Account      string          `json:"account"`
	Amount       Amount          `json:"amount"`
	Amount2      Amount          `json:"amount2"`
	LPToken      Amount          `json:"lp_token"`
	TradingFee   uint32          `json:"trading_fee"`
	AssetFrozen  bool            `json:"asset_frozen,omitempty"`
	Asset2Frozen bool            `json:"asset2_frozen,omitempty"`
	AuctionSlot  *RawAuctionSlot `json:"auction_slot,omitempty"`
	VoteSlots    []RawVoteSlot   `json:"vote_slots,omitempty"`
}

// RawAuctionSlot auction slot holder as reported by amm_info.
type RawAuctionSlot struct {
	Account       string `json:"account"`
	DiscountedFee uint32 `json:"discounted_fee"`
	Expiration    string `json:"expiration"`
	Price         Amount `json:"price"`
	TimeInterval  uint32 `json:"time_interval"`
}

// RawVoteSlot liquidity provider fee vote.
type RawVoteSlot struct {
	Account    string `json:"account"`
	TradingFee uint32 `json:"trading_fee"`
	VoteWeight uint32 `json:"vote_weight"`
}

// PoolSnapshot pool state in the caller's base/quote orientation.
// Callers must check Exists before reading any other field.
type PoolSnapshot struct {
	Exists            bool         `json:"exists"`
	Account           string       `json:"account,omitempty"`
	Base              Currency     `json:"base,omitzero"`
	Quote             Currency     `json:"quote,omitzero"`
	BaseAmount        string       `json:"baseAmount,omitempty"`
	QuoteAmount       string       `json:"quoteAmount,omitempty"`
	LPTokenAmount     string       `json:"lpTokenAmount,omitempty"`
	TradingFeeUnits   uint32       `json:"tradingFeeUnits,omitempty"`
	TradingFeePercent string       `json:"tradingFeePercent,omitempty"`
	SpotPrice         string       `json:"spotPrice,omitempty"`
	BaseFrozen        bool         `json:"baseFrozen"`
	QuoteFrozen       bool         `json:"quoteFrozen"`
	AuctionSlot       *AuctionSlot `json:"auctionSlot,omitempty"`
	VoteSlots         []VoteSlot   `json:"voteSlots,omitempty"`
}

// AuctionSlot normalized auction slot.
type AuctionSlot struct {
	Account       string `json:"account"`
	DiscountedFee uint32 `json:"discountedFee"`
	Expiration    string `json:"expiration"`
	Price         string `json:"price"`
}

// VoteSlot normalized fee vote.
type VoteSlot struct {
	Account    string `json:"account"`
	TradingFee uint32 `json:"tradingFee"`
	VoteWeight uint32 `json:"voteWeight"`
}

// PoolObservation snapshot journaled at a point in time.
type PoolObservation struct {
	Timestamp time.Time    `json:"ts"`
	Pair      string       `json:"pair"`
	Snapshot  PoolSnapshot `json:"snapshot"`
}

// PoolObservationRecord bundles an observation with its WAL index.
type PoolObservationRecord struct {
	Index       uint64
	Observation PoolObservation
}
