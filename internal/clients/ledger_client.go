package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/pkg/currencycode"
	"github.com/vadiminshakov/xrpdesk/pkg/retrier"
)

const (
	defaultRequestTimeout   = 20 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultConnectRetries   = 3
	accountOffersLimit      = 400

	errorActNotFound = "actNotFound"
)

var (
	// ErrConnectionLost is returned to requests pending when the socket drops.
	ErrConnectionLost = errors.New("ledger connection lost")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("ledger client closed")
)

// RPCError error response reported by the ledger node.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger error %s", e.Code)
	}
	return fmt.Sprintf("ledger error %s: %s", e.Code, e.Message)
}

// IsRPCError reports whether err carries the given ledger error code.
func IsRPCError(err error, code string) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

type rpcResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// LedgerClient JSON-RPC client over one websocket connection to a ledger node.
// The connection is opened lazily by the first request and reopened by the
// first request after it drops. Concurrent requests share the connection.
type LedgerClient struct {
	l       *zap.Logger
	url     string
	dialer  *websocket.Dialer
	retrier *retrier.Retrier
	timeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan rpcResponse
	closed  bool

	writeMu sync.Mutex
}

// LedgerClientOption configures a LedgerClient.
type LedgerClientOption func(*LedgerClient)

// WithRequestTimeout bounds how long a single request waits for its response.
func WithRequestTimeout(d time.Duration) LedgerClientOption {
	return func(c *LedgerClient) {
		c.timeout = d
	}
}

// WithRetrier replaces the connect backoff policy.
func WithRetrier(r *retrier.Retrier) LedgerClientOption {
	return func(c *LedgerClient) {
		c.retrier = r
	}
}

// NewLedgerClient creates a client for the node at url (ws:// or wss://).
func NewLedgerClient(l *zap.Logger, url string, opts ...LedgerClientOption) *LedgerClient {
	c := &LedgerClient{
		l:       l,
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		timeout: defaultRequestTimeout,
		pending: make(map[string]chan rpcResponse),
	}
	c.retrier = retrier.New(
		retrier.WithMaxRetries(defaultConnectRetries),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			c.l.Warn("failed to dial ledger node, retrying",
				zap.String("url", c.url), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the node address.
func (c *LedgerClient) URL() string {
	return c.url
}

// Connect returns the live connection, dialing a new one if there is none.
func (c *LedgerClient) Connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (*websocket.Conn, error) {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		// the node answered but refused the upgrade, dialing again will not help
		if errors.Is(err, websocket.ErrBadHandshake) {
			return nil, retrier.Permanent(err)
		}
		return conn, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", c.url)
	}

	c.conn = conn
	go c.readLoop(conn)
	c.l.Info("connected to ledger node", zap.String("url", c.url))

	return conn, nil
}

// Connected reports whether a connection is currently open.
func (c *LedgerClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection and fails pending requests.
func (c *LedgerClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.drop(conn, ErrClientClosed)
	return nil
}

// Request sends command with params and decodes the result into out.
func (c *LedgerClient) Request(ctx context.Context, command string, params map[string]any, out any) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	req := make(map[string]any, len(params)+2)
	for k, v := range params {
		req[k] = v
	}
	req["id"] = id
	req["command"] = command

	ch := make(chan rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	c.writeMu.Lock()
	err = conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn, err)
		return errors.Wrapf(err, "failed to send %s", command)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var resp rpcResponse
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Errorf("%s timed out after %s", command, c.timeout)
	case r, ok := <-ch:
		if !ok {
			return errors.Wrapf(ErrConnectionLost, "%s", command)
		}
		resp = r
	}

	if resp.Status == "error" || resp.Error != "" {
		return &RPCError{Code: resp.Error, Message: resp.ErrorMessage}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", command)
	}

	return nil
}

func (c *LedgerClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *LedgerClient) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.l.Warn("failed to decode ledger message", zap.Error(err))
			continue
		}
		// stream messages carry no id
		if resp.ID == "" {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// drop forgets conn if it is still current and fails every pending request.
func (c *LedgerClient) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan rpcResponse)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	_ = conn.Close()

	if !errors.Is(cause, ErrClientClosed) {
		c.l.Warn("ledger connection dropped", zap.String("url", c.url), zap.Error(cause))
	}
}

// AccountTx returns the most recent validated transactions of account, newest first.
func (c *LedgerClient) AccountTx(ctx context.Context, account string, limit int) ([]domain.TransactionEnvelope, error) {
	var result struct {
		Transactions []domain.TransactionEnvelope `json:"transactions"`
	}
	err := c.Request(ctx, "account_tx", map[string]any{
		"account":          account,
		"ledger_index_min": -1,
		"ledger_index_max": -1,
		"limit":            limit,
		"forward":          false,
	}, &result)
	if err != nil {
		return nil, errors.Wrapf(err, "account_tx %s", account)
	}
	return result.Transactions, nil
}

// BookOffers returns offers giving the taker gets in exchange for pays, best first.
func (c *LedgerClient) BookOffers(ctx context.Context, gets, pays domain.Currency, limit int) ([]domain.Offer, error) {
	takerGets, err := assetParam(gets)
	if err != nil {
		return nil, err
	}
	takerPays, err := assetParam(pays)
	if err != nil {
		return nil, err
	}

	var result struct {
		Offers []domain.Offer `json:"offers"`
	}
	err = c.Request(ctx, "book_offers", map[string]any{
		"taker_gets": takerGets,
		"taker_pays": takerPays,
		"limit":      limit,
	}, &result)
	if err != nil {
		return nil, errors.Wrapf(err, "book_offers %s/%s", gets, pays)
	}
	return result.Offers, nil
}

// AccountOffers returns the resting offers owned by account.
func (c *LedgerClient) AccountOffers(ctx context.Context, account string) ([]domain.AccountOffer, error) {
	var result struct {
		Offers []domain.AccountOffer `json:"offers"`
	}
	err := c.Request(ctx, "account_offers", map[string]any{
		"account": account,
		"limit":   accountOffersLimit,
	}, &result)
	if err != nil {
		return nil, errors.Wrapf(err, "account_offers %s", account)
	}
	return result.Offers, nil
}

// AMMInfo returns the pool trading asset1 against asset2. A missing pool is
// reported as RawPool.Exists == false, not as an error.
func (c *LedgerClient) AMMInfo(ctx context.Context, asset1, asset2 domain.Currency) (*domain.RawPool, error) {
	first, err := assetParam(asset1)
	if err != nil {
		return nil, err
	}
	second, err := assetParam(asset2)
	if err != nil {
		return nil, err
	}

	var result struct {
		AMM *domain.RawPool `json:"amm"`
	}
	err = c.Request(ctx, "amm_info", map[string]any{
		"asset":  first,
		"asset2": second,
	}, &result)
	if IsRPCError(err, errorActNotFound) {
		return &domain.RawPool{Exists: false}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "amm_info %s/%s", asset1, asset2)
	}
	if result.AMM == nil {
		return &domain.RawPool{Exists: false}, nil
	}

	result.AMM.Exists = true
	return result.AMM, nil
}

// assetParam renders an identity in request form with the wire currency code.
func assetParam(c domain.Currency) (map[string]string, error) {
	if c.IsNative() {
		return map[string]string{"currency": currencycode.Native}, nil
	}
	code, err := currencycode.Encode(c.Code)
	if err != nil {
		return nil, err
	}
	return map[string]string{"currency": code, "issuer": c.Issuer}, nil
}
