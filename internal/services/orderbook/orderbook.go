// Package orderbook aggregates resting offers into price levels.
package orderbook

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const treeDegree = 32

// Level aggregated offers at one displayed price.
type Level struct {
	Price       string `json:"price"`
	BaseAmount  string `json:"baseAmount"`
	QuoteAmount string `json:"quoteAmount"`
	Cumulative  string `json:"cumulative"`
	Offers      int    `json:"offers"`
}

// Depth both sides of the book, best price first.
type Depth struct {
	Asks   []Level `json:"asks"`
	Bids   []Level `json:"bids"`
	Spread string  `json:"spread,omitempty"`
	Mid    string  `json:"mid,omitempty"`
}

// priceLevel btree item. Asks order ascending, bids descending.
type priceLevel struct {
	price  decimal.Decimal
	base   decimal.Decimal
	quote  decimal.Decimal
	offers int
	desc   bool
}

func (pl *priceLevel) Less(than btree.Item) bool {
	other := than.(*priceLevel)
	if pl.desc {
		return pl.price.GreaterThan(other.price)
	}
	return pl.price.LessThan(other.price)
}

// Aggregate groups offers by price rounded to display precision and returns at
// most depth levels per side. A non-positive depth returns every level.
// Asks sell base (taker gets base), bids buy base (taker pays base).
func Aggregate(book domain.OrderBook, depth int) Depth {
	asks := btree.New(treeDegree)
	for _, o := range book.Asks {
		base, errBase := o.TakerGets.Decimal()
		quote, errQuote := o.TakerPays.Decimal()
		if errBase != nil || errQuote != nil {
			continue
		}
		insert(asks, base, quote, false)
	}

	bids := btree.New(treeDegree)
	for _, o := range book.Bids {
		base, errBase := o.TakerPays.Decimal()
		quote, errQuote := o.TakerGets.Decimal()
		if errBase != nil || errQuote != nil {
			continue
		}
		insert(bids, base, quote, true)
	}

	d := Depth{Asks: collect(asks, depth), Bids: collect(bids, depth)}

	bestAsk, okAsk := best(asks)
	bestBid, okBid := best(bids)
	if okAsk && okBid {
		d.Spread = domain.FormatDisplay(bestAsk.Sub(bestBid))
		d.Mid = domain.FormatDisplay(bestAsk.Add(bestBid).Div(decimal.NewFromInt(2)))
	}

	return d
}

func insert(tree *btree.BTree, base, quote decimal.Decimal, desc bool) {
	if !base.IsPositive() {
		return
	}
	price := decimal.RequireFromString(domain.FormatDisplay(quote.Div(base)))
	key := &priceLevel{price: price, desc: desc}

	if item := tree.Get(key); item != nil {
		level := item.(*priceLevel)
		level.base = level.base.Add(base)
		level.quote = level.quote.Add(quote)
		level.offers++
		return
	}

	key.base = base
	key.quote = quote
	key.offers = 1
	tree.ReplaceOrInsert(key)
}

func collect(tree *btree.BTree, depth int) []Level {
	levels := make([]Level, 0, tree.Len())
	cumulative := decimal.Zero
	tree.Ascend(func(item btree.Item) bool {
		if depth > 0 && len(levels) >= depth {
			return false
		}
		pl := item.(*priceLevel)
		cumulative = cumulative.Add(pl.base)
		levels = append(levels, Level{
			Price:       domain.FormatDisplay(pl.price),
			BaseAmount:  domain.FormatDisplay(pl.base),
			QuoteAmount: domain.FormatDisplay(pl.quote),
			Cumulative:  domain.FormatDisplay(cumulative),
			Offers:      pl.offers,
		})
		return true
	})
	return levels
}

func best(tree *btree.BTree) (decimal.Decimal, bool) {
	item := tree.Min()
	if item == nil {
		return decimal.Zero, false
	}
	return item.(*priceLevel).price, true
}
