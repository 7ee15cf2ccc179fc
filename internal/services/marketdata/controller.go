// Package marketdata keeps the order book, own offers and fill history of the
// selected pair live while the console is visible.
package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/services/orderbook"
	"github.com/vadiminshakov/xrpdesk/pkg/indicators"
)

const (
	DefaultPollInterval    = 4 * time.Second
	DefaultExpiryLookAhead = 5 * time.Minute
	DefaultExpiryBuffer    = 2 * time.Second
)

var (
	// ErrNoSelection is returned by operations that need an active pair.
	ErrNoSelection = errors.New("no pair selected")
	// ErrInvalidPair is returned when base and quote are the same asset.
	ErrInvalidPair = errors.New("base and quote must differ")
)

// State of the controller.
type State string

const (
	// StateIdle nothing selected, no fetching, no timers.
	StateIdle State = "idle"
	// StateLoaded initial load of a selection is running or done.
	StateLoaded State = "loaded"
	// StatePolling views are refreshed silently every poll interval.
	StatePolling State = "polling"
	// StatePaused selection kept but polling suspended while hidden.
	StatePaused State = "paused"
)

// Config controller timings.
type Config struct {
	PollInterval    time.Duration
	ExpiryLookAhead time.Duration
	ExpiryBuffer    time.Duration
	SummaryPeriod   int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ExpiryLookAhead <= 0 {
		c.ExpiryLookAhead = DefaultExpiryLookAhead
	}
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = DefaultExpiryBuffer
	}
	if c.SummaryPeriod <= 0 {
		c.SummaryPeriod = indicators.DefaultPeriod
	}
	return c
}

// Loading per-view loading flags.
type Loading struct {
	OrderBook bool `json:"orderBook"`
	Offers    bool `json:"offers"`
	Fills     bool `json:"fills"`
}

// View state exposed to the console.
type View struct {
	State      State                 `json:"state"`
	Pair       *domain.Pair          `json:"pair,omitempty"`
	Account    string                `json:"account,omitempty"`
	OrderBook  domain.OrderBook      `json:"orderBook"`
	Depth      orderbook.Depth       `json:"depth"`
	Offers     []domain.AccountOffer `json:"offers"`
	Fills      []domain.Fill         `json:"fills"`
	Summary    indicators.Summary    `json:"summary"`
	Loading    Loading               `json:"loading"`
	NextExpiry *time.Time            `json:"nextExpiry,omitempty"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// Publisher receives every committed view. Publish must not block.
type Publisher interface {
	Publish(View)
}

// FillJournal records fills first observed while a pair is selected.
type FillJournal interface {
	Append(pair domain.Pair, fills []domain.Fill) (int, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithPublisher streams view updates to p.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithJournal records newly observed fills to j.
func WithJournal(j FillJournal) Option {
	return func(c *Controller) {
		c.journal = j
	}
}

// refreshCycle state of one (pair, account) selection.
type refreshCycle struct {
	id      string
	pair    domain.Pair
	account string
	ctx     context.Context
	cancel  context.CancelFunc

	pollingEnabled bool
	inFlight       bool
	pollTimer      Timer

	expiryTimer Timer
	expiryGen   uint64

	seenFillHashes map[string]struct{}
	seeded         bool
}

// Controller keeps three views of the selected pair current: order book,
// the account's own offers and its reconciled fills.
type Controller struct {
	l         *zap.Logger
	fetcher   Fetcher
	clock     Clock
	cfg       Config
	publisher Publisher
	journal   FillJournal

	mu      sync.Mutex
	cycle   *refreshCycle
	view    View
	visible bool
}

// NewController creates an idle controller. The console is assumed visible.
func NewController(l *zap.Logger, fetcher Fetcher, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		l:       l,
		fetcher: fetcher,
		clock:   SystemClock(),
		cfg:     cfg.withDefaults(),
		view:    View{State: StateIdle},
		visible: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select makes (pair, account) the active context. Selecting the active
// context again is a no-op. Any other selection discards the previous
// cycle, loads all three views and then starts polling.
func (c *Controller) Select(ctx context.Context, pair domain.Pair, account string) error {
	if pair.Base.Equal(pair.Quote) {
		return ErrInvalidPair
	}

	c.mu.Lock()
	if cy := c.cycle; cy != nil && cy.pair.Key() == pair.Key() && cy.account == account {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()

	cycleCtx, cancel := context.WithCancel(context.Background())
	cy := &refreshCycle{
		id:             uuid.NewString(),
		pair:           pair,
		account:        account,
		ctx:            cycleCtx,
		cancel:         cancel,
		seenFillHashes: make(map[string]struct{}),
	}
	c.cycle = cy
	c.view = View{
		State:   StateLoaded,
		Pair:    &pair,
		Account: account,
		Loading: Loading{OrderBook: true, Offers: true, Fills: true},
	}
	c.commitLocked()
	c.mu.Unlock()

	c.l.Info("market selected",
		zap.String("pair", pair.String()),
		zap.String("account", account),
		zap.String("cycle", cy.id))

	loadCtx, stop := c.cycleContext(ctx, cy)
	defer stop()
	c.loadAll(loadCtx, cy)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle != cy {
		return nil
	}
	c.startPollingLocked(cy)
	c.commitLocked()

	return nil
}

// Clear drops the selection and returns to idle.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycle == nil {
		return
	}
	c.resetLocked()
	c.view = View{State: StateIdle}
	c.commitLocked()
}

// Close stops all timers.
func (c *Controller) Close() {
	c.Clear()
}

// SetVisible pauses polling while the console is hidden and resumes it when
// shown again. Resuming does not fetch immediately.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible = visible
	cy := c.cycle
	if cy == nil {
		return
	}

	switch {
	case !visible && cy.pollingEnabled:
		cy.pollingEnabled = false
		stopTimer(&cy.pollTimer)
		c.view.State = StatePaused
		c.commitLocked()
	case visible && !cy.pollingEnabled && c.view.State == StatePaused:
		c.startPollingLocked(cy)
		c.commitLocked()
	}
}

// Refresh reloads all three views of the active selection with loading flags.
// It may overlap a poll tick.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	cy := c.cycle
	if cy == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	c.view.Loading = Loading{OrderBook: true, Offers: true, Fills: true}
	c.commitLocked()
	c.mu.Unlock()

	loadCtx, stop := c.cycleContext(ctx, cy)
	defer stop()
	c.loadAll(loadCtx, cy)

	return nil
}

// PollTick runs one silent refresh of all views. It returns false without
// fetching when polling is off or the previous tick has not settled.
func (c *Controller) PollTick() bool {
	c.mu.Lock()
	cy := c.cycle
	c.mu.Unlock()
	if cy == nil {
		return false
	}
	return c.pollCycle(cy)
}

// Snapshot returns a copy of the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// NextExpiry returns the expiration the refresh timer is armed for.
func (c *Controller) NextExpiry() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.NextExpiry == nil {
		return time.Time{}, false
	}
	return *c.view.NextExpiry, true
}

func (c *Controller) pollCycle(cy *refreshCycle) bool {
	c.mu.Lock()
	if c.cycle != cy || !cy.pollingEnabled || cy.inFlight {
		c.mu.Unlock()
		return false
	}
	cy.inFlight = true
	c.mu.Unlock()

	c.loadAll(cy.ctx, cy)

	c.mu.Lock()
	cy.inFlight = false
	c.mu.Unlock()

	return true
}

func (c *Controller) onPollTimer(cy *refreshCycle) {
	c.mu.Lock()
	if c.cycle != cy || !cy.pollingEnabled {
		c.mu.Unlock()
		return
	}
	c.armPollLocked(cy)
	c.mu.Unlock()

	if !c.pollCycle(cy) {
		c.l.Debug("poll tick skipped, previous tick in flight", zap.String("cycle", cy.id))
	}
}

// loadAll fetches the three views concurrently and waits for all of them.
// A failure in one view never cancels the others.
func (c *Controller) loadAll(ctx context.Context, cy *refreshCycle) {
	var g errgroup.Group
	g.Go(func() error {
		c.refreshOrderBook(ctx, cy)
		return nil
	})
	g.Go(func() error {
		c.refreshOffers(ctx, cy)
		return nil
	})
	g.Go(func() error {
		c.refreshFills(ctx, cy)
		return nil
	})
	_ = g.Wait()
}

func (c *Controller) refreshOrderBook(ctx context.Context, cy *refreshCycle) {
	book, err := c.fetcher.OrderBook(ctx, cy.pair)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(cy, "order book") {
		return
	}

	if err != nil {
		c.l.Warn("failed to fetch order book", zap.String("pair", cy.pair.String()), zap.Error(err))
		book = domain.OrderBook{}
	}
	c.view.OrderBook = book
	c.view.Depth = orderbook.Aggregate(book, 0)
	c.view.Loading.OrderBook = false
	c.commitLocked()
}

func (c *Controller) refreshOffers(ctx context.Context, cy *refreshCycle) {
	offers, err := c.fetcher.AccountOffers(ctx, cy.account)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(cy, "offers") {
		return
	}

	if err != nil {
		c.l.Warn("failed to fetch account offers", zap.String("account", cy.account), zap.Error(err))
		offers = nil
	}
	c.view.Offers = offers
	c.view.Loading.Offers = false
	c.armExpiryLocked(cy, offers)
	c.commitLocked()
}

func (c *Controller) refreshFills(ctx context.Context, cy *refreshCycle) {
	fills, err := c.fetcher.Trades(ctx, cy.account, cy.pair)

	c.mu.Lock()
	if !c.activeLocked(cy, "fills") {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.l.Warn("failed to fetch trades",
			zap.String("account", cy.account), zap.String("pair", cy.pair.String()), zap.Error(err))
		c.view.Fills = nil
		c.view.Summary = summarize(nil, c.cfg.SummaryPeriod)
		c.view.Loading.Fills = false
		c.commitLocked()
		c.mu.Unlock()
		return
	}

	c.view.Fills = fills
	c.view.Summary = summarize(fills, c.cfg.SummaryPeriod)
	c.view.Loading.Fills = false
	fresh, own := c.detectNewFillsLocked(cy, fills)
	c.commitLocked()
	c.mu.Unlock()

	if len(fresh) > 0 && c.journal != nil {
		if _, err := c.journal.Append(cy.pair, fresh); err != nil {
			c.l.Error("failed to journal fills", zap.String("pair", cy.pair.String()), zap.Error(err))
		}
	}

	if own {
		c.l.Info("own offer filled, refreshing offers",
			zap.String("account", cy.account), zap.Int("new_fills", len(fresh)))
		c.refreshOffers(cy.ctx, cy)
	}
}

// detectNewFillsLocked seeds the seen set on the first population and
// afterwards returns unseen fills and whether any belongs to the subject.
func (c *Controller) detectNewFillsLocked(cy *refreshCycle, fills []domain.Fill) (fresh []domain.Fill, own bool) {
	if !cy.seeded {
		for _, f := range fills {
			cy.seenFillHashes[f.TransactionHash] = struct{}{}
		}
		cy.seeded = true
		return nil, false
	}

	for _, f := range fills {
		if f.TransactionHash == "" {
			continue
		}
		if _, seen := cy.seenFillHashes[f.TransactionHash]; seen {
			continue
		}
		cy.seenFillHashes[f.TransactionHash] = struct{}{}
		fresh = append(fresh, f)
		if cy.account != "" && f.Account == cy.account {
			own = true
		}
	}

	return fresh, own
}

// armExpiryLocked replaces the expiry timer with one for the nearest offer
// expiring within the look-ahead window, if any.
func (c *Controller) armExpiryLocked(cy *refreshCycle, offers []domain.AccountOffer) {
	stopTimer(&cy.expiryTimer)
	cy.expiryGen++
	c.view.NextExpiry = nil

	now := c.clock.Now()
	var nearest time.Time
	for _, o := range offers {
		at, ok := o.ExpiresAt()
		if !ok || !at.After(now) || at.Sub(now) > c.cfg.ExpiryLookAhead {
			continue
		}
		if nearest.IsZero() || at.Before(nearest) {
			nearest = at
		}
	}
	if nearest.IsZero() {
		return
	}

	gen := cy.expiryGen
	cy.expiryTimer = c.clock.AfterFunc(nearest.Sub(now)+c.cfg.ExpiryBuffer, func() {
		c.onExpiry(cy, gen)
	})
	c.view.NextExpiry = &nearest
}

func (c *Controller) onExpiry(cy *refreshCycle, gen uint64) {
	c.mu.Lock()
	if c.cycle != cy || cy.expiryGen != gen {
		c.mu.Unlock()
		return
	}
	cy.expiryTimer = nil
	c.mu.Unlock()

	c.l.Debug("offer expired, refreshing offers", zap.String("account", cy.account))
	c.refreshOffers(cy.ctx, cy)
}

func (c *Controller) startPollingLocked(cy *refreshCycle) {
	if !c.visible {
		cy.pollingEnabled = false
		c.view.State = StatePaused
		return
	}
	cy.pollingEnabled = true
	c.view.State = StatePolling
	c.armPollLocked(cy)
}

func (c *Controller) armPollLocked(cy *refreshCycle) {
	stopTimer(&cy.pollTimer)
	cy.pollTimer = c.clock.AfterFunc(c.cfg.PollInterval, func() {
		c.onPollTimer(cy)
	})
}

// resetLocked cancels the active cycle and its timers.
func (c *Controller) resetLocked() {
	cy := c.cycle
	if cy == nil {
		return
	}
	cy.cancel()
	cy.pollingEnabled = false
	stopTimer(&cy.pollTimer)
	stopTimer(&cy.expiryTimer)
	cy.expiryGen++
	c.cycle = nil
}

// activeLocked reports whether results fetched for cy may still be applied.
func (c *Controller) activeLocked(cy *refreshCycle, view string) bool {
	if c.cycle == cy {
		return true
	}
	c.l.Debug("discarding stale result", zap.String("view", view), zap.String("cycle", cy.id))
	return false
}

func (c *Controller) commitLocked() {
	c.view.UpdatedAt = c.clock.Now()
	if c.publisher != nil {
		c.publisher.Publish(c.snapshotLocked())
	}
}

func (c *Controller) snapshotLocked() View {
	v := c.view
	if v.Pair != nil {
		p := *v.Pair
		v.Pair = &p
	}
	if v.NextExpiry != nil {
		t := *v.NextExpiry
		v.NextExpiry = &t
	}
	v.Offers = append(make([]domain.AccountOffer, 0, len(v.Offers)), v.Offers...)
	v.Fills = append(make([]domain.Fill, 0, len(v.Fills)), v.Fills...)
	return v
}

// cycleContext derives a context cancelled when either ctx or the cycle ends.
func (c *Controller) cycleContext(ctx context.Context, cy *refreshCycle) (context.Context, func()) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(cy.ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// summarize builds the trade summary from newest-first fills.
func summarize(fills []domain.Fill, period int) indicators.Summary {
	points := make([]indicators.Point, 0, len(fills))
	for i := len(fills) - 1; i >= 0; i-- {
		f := fills[i]
		price, err := decimal.NewFromString(f.Price)
		if err != nil {
			continue
		}
		volume, err := decimal.NewFromString(f.BaseAmount)
		if err != nil {
			continue
		}
		points = append(points, indicators.Point{Price: price, Volume: volume, Buy: f.Side == domain.SideBuy})
	}
	return indicators.Summarize(points, period)
}
