package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/pkg/retrier"
)

const gateway = "rGateway333333333333333333333333"

// fakeNode answers each request with respond(command, request).
type fakeNode struct {
	server      *httptest.Server
	connections int32
	requests    chan map[string]any
}

func newFakeNode(t *testing.T, respond func(req map[string]any) map[string]any, closeAfterFirst bool) *fakeNode {
	t.Helper()
	node := &fakeNode{requests: make(chan map[string]any, 16)}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	node.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(&node.connections, 1)

		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			node.requests <- req

			resp := respond(req)
			resp["id"] = req["id"]
			resp["type"] = "response"
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
			if closeAfterFirst {
				return
			}
		}
	}))
	t.Cleanup(node.server.Close)

	return node
}

func (n *fakeNode) url() string {
	return strings.Replace(n.server.URL, "http://", "ws://", 1)
}

func success(result string) map[string]any {
	var v any
	_ = json.Unmarshal([]byte(result), &v)
	return map[string]any{"status": "success", "result": v}
}

func newTestClient(url string) *LedgerClient {
	return NewLedgerClient(zap.NewNop(), url,
		WithRequestTimeout(2*time.Second),
		WithRetrier(retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond))),
	)
}

func TestLedgerClientAccountTx(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return success(`{"account":"rA","transactions":[
			{"tx":{"TransactionType":"OfferCreate","Account":"rA","Fee":"12","hash":"H1"},
			 "meta":{"TransactionResult":"tesSUCCESS","AffectedNodes":[]},"validated":true}]}`)
	}, false)

	c := newTestClient(node.url())
	defer c.Close()

	txs, err := c.AccountTx(context.Background(), "rA", 5)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "H1", txs[0].TxHash())

	req := <-node.requests
	assert.Equal(t, "account_tx", req["command"])
	assert.Equal(t, "rA", req["account"])
	assert.EqualValues(t, 5, req["limit"])
}

func TestLedgerClientBookOffersEncodesCurrencies(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return success(`{"offers":[{"Account":"rB","Sequence":7,
			"TakerGets":{"currency":"534F4C4F00000000000000000000000000000000","issuer":"` + gateway + `","value":"10"},
			"TakerPays":"25000000","quality":"2500000"}]}`)
	}, false)

	c := newTestClient(node.url())
	defer c.Close()

	offers, err := c.BookOffers(context.Background(), domain.NewCurrency("SOLO", gateway), domain.XRP(), 20)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, uint32(7), offers[0].Sequence)
	assert.True(t, offers[0].TakerPays.IsNative())

	req := <-node.requests
	gets := req["taker_gets"].(map[string]any)
	assert.Equal(t, "534F4C4F00000000000000000000000000000000", gets["currency"])
	assert.Equal(t, gateway, gets["issuer"])
	assert.Equal(t, map[string]any{"currency": "XRP"}, req["taker_pays"])
}

func TestLedgerClientAMMInfo(t *testing.T) {
	t.Run("pool exists", func(t *testing.T) {
		node := newFakeNode(t, func(req map[string]any) map[string]any {
			return success(`{"amm":{"account":"rAMM","amount":"1000000",
				"amount2":{"currency":"USD","issuer":"` + gateway + `","value":"2"},
				"lp_token":{"currency":"03930D02208264E2E40EC1B0C09E4DB96EE197B1","issuer":"rAMM","value":"1"},
				"trading_fee":100,"asset2_frozen":true}}`)
		}, false)
		c := newTestClient(node.url())
		defer c.Close()

		pool, err := c.AMMInfo(context.Background(), domain.XRP(), domain.NewCurrency("USD", gateway))
		require.NoError(t, err)
		assert.True(t, pool.Exists)
		assert.True(t, pool.Asset2Frozen)
		assert.Equal(t, uint32(100), pool.TradingFee)
	})

	t.Run("no such pool", func(t *testing.T) {
		node := newFakeNode(t, func(req map[string]any) map[string]any {
			return map[string]any{"status": "error", "error": "actNotFound", "error_message": "Account not found."}
		}, false)
		c := newTestClient(node.url())
		defer c.Close()

		pool, err := c.AMMInfo(context.Background(), domain.XRP(), domain.NewCurrency("USD", gateway))
		require.NoError(t, err)
		assert.False(t, pool.Exists)
	})
}

func TestLedgerClientRPCError(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return map[string]any{"status": "error", "error": "actMalformed", "error_message": "Account malformed."}
	}, false)
	c := newTestClient(node.url())
	defer c.Close()

	_, err := c.AccountOffers(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, IsRPCError(err, "actMalformed"))
}

func TestLedgerClientReconnectsAfterDrop(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return success(`{"offers":[]}`)
	}, true)
	c := newTestClient(node.url())
	defer c.Close()

	_, err := c.AccountOffers(context.Background(), "rA")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, 10*time.Millisecond)

	_, err = c.AccountOffers(context.Background(), "rA")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&node.connections))
}

func TestLedgerClientInvalidCurrency(t *testing.T) {
	c := newTestClient("ws://127.0.0.1:1")
	_, err := c.BookOffers(context.Background(), domain.NewCurrency("A", gateway), domain.XRP(), 1)
	assert.Error(t, err)
}

func TestLedgerClientClosed(t *testing.T) {
	c := newTestClient("ws://127.0.0.1:1")
	require.NoError(t, c.Close())
	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestLedgerClientBadHandshakeNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewLedgerClient(zap.NewNop(), strings.Replace(server.URL, "http://", "ws://", 1),
		WithRetrier(retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond))))
	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
