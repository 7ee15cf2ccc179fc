// Package web hosts the market console: JSON endpoints driving the live
// market data controller and SSE streams of its views and journals.
package web

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/services/marketdata"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 15 * time.Second
	idleTimeout       = 120 * time.Second
)

type marketController interface {
	Select(ctx context.Context, pair domain.Pair, account string) error
	Clear()
	Refresh(ctx context.Context) error
	SetVisible(visible bool)
	Snapshot() marketdata.View
}

type viewFeed interface {
	Subscribe() chan marketdata.View
	Unsubscribe(ch chan marketdata.View)
}

type fillReader interface {
	FillsAfter(index uint64) ([]domain.FillRecord, error)
}

type poolReader interface {
	ObservationsAfter(index uint64) ([]domain.PoolObservationRecord, error)
}

type poolQuerier interface {
	Pool(ctx context.Context, pair domain.Pair) (domain.PoolSnapshot, error)
}

type marketTradesReader interface {
	MarketTrades(ctx context.Context, issuerAccount string, pair domain.Pair) ([]domain.Fill, error)
}

// Server exposes the console over HTTP.
type Server struct {
	Addr string

	l              *zap.Logger
	market         marketController
	views          viewFeed
	fills          fillReader
	pools          poolReader
	poolQuery      poolQuerier
	trades         marketTradesReader
	defaultAccount string
	storePoll      time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithFillStore enables /fills/stream.
func WithFillStore(r fillReader) Option {
	return func(s *Server) {
		s.fills = r
	}
}

// WithPoolStore enables /pool/stream.
func WithPoolStore(r poolReader) Option {
	return func(s *Server) {
		s.pools = r
	}
}

// WithPoolQuery enables /api/pool.
func WithPoolQuery(q poolQuerier) Option {
	return func(s *Server) {
		s.poolQuery = q
	}
}

// WithMarketTrades enables /api/trades/market.
func WithMarketTrades(r marketTradesReader) Option {
	return func(s *Server) {
		s.trades = r
	}
}

// WithDefaultAccount sets the subject used when a selection names none.
func WithDefaultAccount(account string) Option {
	return func(s *Server) {
		s.defaultAccount = account
	}
}

// NewServer creates a console server for the controller and its view feed.
func NewServer(l *zap.Logger, addr string, market marketController, views viewFeed, opts ...Option) *Server {
	s := &Server{
		Addr:      addr,
		l:         l,
		market:    market,
		views:     views,
		storePoll: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the console routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.staticHandler())
	mux.HandleFunc("GET /api/market", s.handleMarket)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/visibility", s.handleVisibility)
	mux.HandleFunc("GET /api/pool", s.handlePool)
	mux.HandleFunc("GET /api/trades/market", s.handleMarketTrades)
	mux.HandleFunc("GET /market/stream", s.handleMarketStream)
	mux.HandleFunc("GET /fills/stream", s.handleFillStream)
	mux.HandleFunc("GET /pool/stream", s.handlePoolStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("console listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with certificates obtained via ACME.
// It also serves HTTP-01 challenges on port 80.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("acme server failed", zap.Error(err))
		}
	}()

	s.l.Info("console listening with auto TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = w.Write([]byte(indexHTML))
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		_, _ = gzw.Write([]byte(indexHTML))
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}
