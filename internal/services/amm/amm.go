// Package amm normalizes AMM pool query results into the caller's base/quote orientation.
package amm

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/pkg/currencycode"
)

// feeUnitsPerPercent trading fee units are 1/100000, so 1000 units equal 1%.
var feeUnitsPerPercent = decimal.NewFromInt(1000)

type leg struct {
	currency domain.Currency
	value    decimal.Decimal
	frozen   bool
}

// NormalizePool returns the pool state with base being whichever leg matches base.
// The ledger reports the two assets in no defined order. When neither leg
// matches, the reported order is kept.
func NormalizePool(raw *domain.RawPool, base domain.Currency) domain.PoolSnapshot {
	if raw == nil || !raw.Exists {
		return domain.PoolSnapshot{Exists: false}
	}

	first := decodeLeg(raw.Amount, raw.AssetFrozen)
	second := decodeLeg(raw.Amount2, raw.Asset2Frozen)

	if !legMatches(first, base) && legMatches(second, base) {
		first, second = second, first
	}

	spot := "0"
	if first.value.IsPositive() {
		spot = second.value.Div(first.value).String()
	}

	lp, _ := raw.LPToken.Decimal()

	snapshot := domain.PoolSnapshot{
		Exists:            true,
		Account:           raw.Account,
		Base:              first.currency,
		Quote:             second.currency,
		BaseAmount:        first.value.String(),
		QuoteAmount:       second.value.String(),
		LPTokenAmount:     lp.String(),
		TradingFeeUnits:   raw.TradingFee,
		TradingFeePercent: decimal.NewFromInt(int64(raw.TradingFee)).Div(feeUnitsPerPercent).String(),
		SpotPrice:         spot,
		BaseFrozen:        first.frozen,
		QuoteFrozen:       second.frozen,
	}

	if slot := raw.AuctionSlot; slot != nil {
		price, _ := slot.Price.Decimal()
		snapshot.AuctionSlot = &domain.AuctionSlot{
			Account:       slot.Account,
			DiscountedFee: slot.DiscountedFee,
			Expiration:    slot.Expiration,
			Price:         price.String(),
		}
	}
	for _, v := range raw.VoteSlots {
		snapshot.VoteSlots = append(snapshot.VoteSlots, domain.VoteSlot{
			Account:    v.Account,
			TradingFee: v.TradingFee,
			VoteWeight: v.VoteWeight,
		})
	}

	return snapshot
}

// decodeLeg converts a raw leg into display code, issuer and whole-unit value.
func decodeLeg(a domain.Amount, frozen bool) leg {
	value, err := a.Decimal()
	if err != nil {
		value = decimal.Zero
	}
	return leg{
		currency: domain.NewCurrency(currencycode.Decode(a.Currency), a.Issuer),
		value:    value,
		frozen:   frozen,
	}
}

func legMatches(l leg, base domain.Currency) bool {
	return domain.MatchesCurrency(l.currency.Code, l.currency.Issuer, base)
}
