// Command sse_load opens many concurrent subscriptions to a console stream
// and reports connection failures and event throughput.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64

	mu     sync.Mutex
	events map[string]int64
}

func newStats() *stats {
	return &stats{events: make(map[string]int64)}
}

func (s *stats) event(name string) {
	s.mu.Lock()
	s.events[name]++
	s.mu.Unlock()
}

func (s *stats) total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.events {
		n += c
	}
	return n
}

func (s *stats) byName() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.events))
	for k, v := range s.events {
		out[k] = v
	}
	return out
}

// subscribe reads one stream until ctx ends or the server closes it.
func subscribe(ctx context.Context, client *http.Client, url string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}
	st.connected.Add(1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			st.event(name)
		}
	}
	if ctx.Err() == nil {
		st.streamErrs.Add(1)
	}
}

// run opens conns subscriptions spread over rampUp and waits until ctx ends.
func run(ctx context.Context, l *zap.Logger, url string, conns int, rampUp time.Duration, st *stats) error {
	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     conns + 100,
			MaxIdleConns:        conns + 100,
			MaxIdleConnsPerHost: conns + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(conns)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < conns; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			subscribe(ctx, client, url, st)
			return nil
		})
	}

	start := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Info("status",
					zap.Int64("connected", st.connected.Load()),
					zap.Int64("connect_errs", st.connectErrs.Load()),
					zap.Int64("stream_errs", st.streamErrs.Load()),
					zap.Int64("events", st.total()),
					zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
			}
		}
	}()

	return g.Wait()
}

func main() {
	var (
		url      string
		conns    int
		duration time.Duration
		rampUp   time.Duration
	)
	flag.StringVar(&url, "url", "http://localhost:8080/market/stream", "stream endpoint URL")
	flag.IntVar(&conns, "conns", 1000, "number of concurrent subscriptions")
	flag.DurationVar(&duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread subscription starts across this window")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if conns <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", conns))
	}
	if rampUp == 0 && conns > 100 {
		rampUp = max(time.Duration(conns/500)*time.Second, time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger.Info("starting stream load",
		zap.String("url", url), zap.Int("conns", conns), zap.Duration("duration", duration), zap.Duration("ramp", rampUp))

	st := newStats()
	start := time.Now()
	if err := run(ctx, logger, url, conns, rampUp, st); err != nil {
		logger.Error("load run failed", zap.Error(err))
		os.Exit(1)
	}

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%v elapsed=%s events/s=%.2f\n",
		st.connected.Load(), st.connectErrs.Load(), st.streamErrs.Load(), st.byName(),
		elapsed.Truncate(time.Millisecond), float64(st.total())/elapsed.Seconds())
}
