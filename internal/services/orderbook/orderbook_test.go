package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const gateway = "rGateway333333333333333333333333"

func ask(usd, drops string) domain.Offer {
	return domain.Offer{
		TakerGets: domain.NewIssuedAmount("USD", gateway, usd),
		TakerPays: domain.NewXRPAmount(drops),
	}
}

func bid(usd, drops string) domain.Offer {
	return domain.Offer{
		TakerGets: domain.NewXRPAmount(drops),
		TakerPays: domain.NewIssuedAmount("USD", gateway, usd),
	}
}

func TestAggregate(t *testing.T) {
	book := domain.OrderBook{
		Asks: []domain.Offer{ask("10", "26000000"), ask("4", "10000000"), ask("6", "15000000")},
		Bids: []domain.Offer{bid("10", "24000000"), bid("2", "4000000"), bid("0", "1")},
	}

	depth := Aggregate(book, 10)

	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "2.50000", depth.Asks[0].Price)
	assert.Equal(t, "10.0000", depth.Asks[0].BaseAmount)
	assert.Equal(t, 2, depth.Asks[0].Offers)
	assert.Equal(t, "2.60000", depth.Asks[1].Price)
	assert.Equal(t, "20.0000", depth.Asks[1].Cumulative)

	require.Len(t, depth.Bids, 2)
	assert.Equal(t, "2.40000", depth.Bids[0].Price)
	assert.Equal(t, "2.00000", depth.Bids[1].Price)

	assert.Equal(t, "0.100000", depth.Spread)
	assert.Equal(t, "2.45000", depth.Mid)
}

func TestAggregateDepthLimit(t *testing.T) {
	book := domain.OrderBook{Asks: []domain.Offer{ask("1", "1000000"), ask("1", "2000000"), ask("1", "3000000")}}

	depth := Aggregate(book, 2)
	require.Len(t, depth.Asks, 2)
	assert.Equal(t, "1.00000", depth.Asks[0].Price)
	assert.Empty(t, depth.Bids)
	assert.Empty(t, depth.Spread)
}
