package fills

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	alice   = "rAlice1111111111111111111111111111"
	bob     = "rBob22222222222222222222222222222"
	carol   = "rCarol3333333333333333333333333333"
	gateway = "rGateway333333333333333333333333"

	feeDrops = 12
)

var usdXRP = domain.Pair{Base: domain.NewCurrency("USD", gateway), Quote: domain.XRP()}

func accountRoot(account string, prevDrops, finalDrops int64) map[string]any {
	return map[string]any{"ModifiedNode": map[string]any{
		"LedgerEntryType": "AccountRoot",
		"FinalFields":     map[string]any{"Account": account, "Balance": strconv.FormatInt(finalDrops, 10)},
		"PreviousFields":  map[string]any{"Balance": strconv.FormatInt(prevDrops, 10)},
	}}
}

// trustLine builds a holder/gateway line where the holder is the low account.
func trustLine(holder, issuer, code, prev, final string) map[string]any {
	balance := func(v string) map[string]any {
		return map[string]any{"currency": code, "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": v}
	}
	return map[string]any{"ModifiedNode": map[string]any{
		"LedgerEntryType": "RippleState",
		"FinalFields": map[string]any{
			"Balance":   balance(final),
			"LowLimit":  map[string]any{"currency": code, "issuer": holder, "value": "1000"},
			"HighLimit": map[string]any{"currency": code, "issuer": issuer, "value": "0"},
		},
		"PreviousFields": map[string]any{"Balance": balance(prev)},
	}}
}

func offerNode(owner string) map[string]any {
	return map[string]any{"CreatedNode": map[string]any{
		"LedgerEntryType": "Offer",
		"NewFields":       map[string]any{"Account": owner},
	}}
}

func usd(value string) map[string]any {
	return map[string]any{"currency": "USD", "issuer": gateway, "value": value}
}

type txFixture struct {
	hash      string
	account   string
	txType    string
	result    string
	takerPays any
	takerGets any
	nodes     []map[string]any
}

func envelope(t *testing.T, s txFixture) domain.TransactionEnvelope {
	t.Helper()
	if s.txType == "" {
		s.txType = domain.TxTypeOfferCreate
	}
	if s.result == "" {
		s.result = domain.ResultSuccess
	}

	raw, err := json.Marshal(map[string]any{
		"tx": map[string]any{
			"TransactionType": s.txType,
			"Account":         s.account,
			"Fee":             strconv.Itoa(feeDrops),
			"TakerPays":       s.takerPays,
			"TakerGets":       s.takerGets,
			"date":            760000000,
		},
		"hash":           s.hash,
		"close_time_iso": "2024-01-01T00:00:00Z",
		"validated":      true,
		"meta": map[string]any{
			"TransactionResult": s.result,
			"AffectedNodes":     s.nodes,
		},
	})
	require.NoError(t, err)

	var env domain.TransactionEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// aliceBuys alice takes bob's offer: she receives 10 USD and pays 25 XRP.
func aliceBuys(t *testing.T, hash string) domain.TransactionEnvelope {
	return envelope(t, txFixture{
		hash:      hash,
		account:   alice,
		takerPays: usd("10"),
		takerGets: "25000000",
		nodes: []map[string]any{
			accountRoot(alice, 100_000_000, 100_000_000-25_000_000-feeDrops),
			accountRoot(bob, 100_000_000, 125_000_000),
			trustLine(alice, gateway, "USD", "0", "10"),
			trustLine(bob, gateway, "USD", "50", "40"),
		},
	})
}

// aliceSells alice takes bob's bid: she gives 10 USD and receives 25 XRP.
func aliceSells(t *testing.T, hash string) domain.TransactionEnvelope {
	return envelope(t, txFixture{
		hash:      hash,
		account:   alice,
		takerPays: "25000000",
		takerGets: usd("10"),
		nodes: []map[string]any{
			accountRoot(alice, 100_000_000, 125_000_000-feeDrops),
			accountRoot(bob, 100_000_000, 75_000_000),
			trustLine(alice, gateway, "USD", "10", "0"),
			trustLine(bob, gateway, "USD", "0", "10"),
		},
	})
}

// aliceRests alice places an offer that does not cross.
func aliceRests(t *testing.T, hash string) domain.TransactionEnvelope {
	return envelope(t, txFixture{
		hash:      hash,
		account:   alice,
		takerPays: usd("10"),
		takerGets: "25000000",
		nodes: []map[string]any{
			accountRoot(alice, 100_000_000, 100_000_000-feeDrops),
			offerNode(alice),
		},
	})
}
