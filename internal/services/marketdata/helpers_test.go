package marketdata

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

// mockFetcher testify mock of Fetcher. Return values may be given as functions.
type mockFetcher struct {
	mock.Mock
}

func newMockFetcher(t *testing.T) *mockFetcher {
	m := &mockFetcher{}
	m.Mock.Test(t)
	return m
}

func (m *mockFetcher) OrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBook, error) {
	ret := m.Called(ctx, pair)

	var r0 domain.OrderBook
	if rf, ok := ret.Get(0).(func(context.Context, domain.Pair) domain.OrderBook); ok {
		r0 = rf(ctx, pair)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(domain.OrderBook)
	}
	return r0, ret.Error(1)
}

func (m *mockFetcher) AccountOffers(ctx context.Context, account string) ([]domain.AccountOffer, error) {
	ret := m.Called(ctx, account)

	var r0 []domain.AccountOffer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.AccountOffer)
	}
	return r0, ret.Error(1)
}

func (m *mockFetcher) Trades(ctx context.Context, account string, pair domain.Pair) ([]domain.Fill, error) {
	ret := m.Called(ctx, account, pair)

	var r0 []domain.Fill
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Fill)
	}
	return r0, ret.Error(1)
}

// fakeClock manual clock. Timers fire only from Advance, on the caller's goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Active returns the deadlines of timers neither stopped nor fired.
func (c *fakeClock) Active() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at)
		}
	}
	return out
}

type fakeJournal struct {
	mu    sync.Mutex
	fills []domain.Fill
}

func (j *fakeJournal) Append(_ domain.Pair, fills []domain.Fill) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fills = append(j.fills, fills...)
	return len(fills), nil
}

func (j *fakeJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.fills)
}
