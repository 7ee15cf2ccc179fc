// Package internal assembles the console from its services.
package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/config"
	"github.com/vadiminshakov/xrpdesk/internal/clients"
	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/events"
	"github.com/vadiminshakov/xrpdesk/internal/services/amm"
	"github.com/vadiminshakov/xrpdesk/internal/services/fills"
	"github.com/vadiminshakov/xrpdesk/internal/services/marketdata"
	fillstore "github.com/vadiminshakov/xrpdesk/internal/storage/fills"
	"github.com/vadiminshakov/xrpdesk/internal/storage/poolsnapshots"
	"github.com/vadiminshakov/xrpdesk/internal/web"
)

// viewBuffer pending view updates per stream subscriber.
const viewBuffer = 32

// Console the market console of one ledger node.
type Console struct {
	Config     config.Config
	Ledger     *clients.LedgerClient
	Fetcher    *marketdata.LedgerFetcher
	Controller *marketdata.Controller
	Pools      *amm.Service
	Views      *events.Broadcaster[marketdata.View]
	FillStore  *fillstore.WALStore
	PoolStore  *poolsnapshots.WALStore

	l *zap.Logger
}

// NewConsole wires the ledger client, journals and controller for cfg.
func NewConsole(cfg config.Config, l *zap.Logger) (*Console, error) {
	ledger := clients.NewLedgerClient(l.Named("ledger"), cfg.NodeURL, clients.WithRequestTimeout(cfg.RequestTimeout))

	reconciler, err := fills.NewReconciler(l.Named("fills"), cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reconciler")
	}

	fillStore, err := fillstore.NewWALStore(cfg.FillsWALDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open fill journal")
	}
	poolStore, err := poolsnapshots.NewWALStore(cfg.PoolsWALDir)
	if err != nil {
		_ = fillStore.Close()
		return nil, errors.Wrap(err, "failed to open pool journal")
	}

	views := events.NewBroadcaster[marketdata.View](viewBuffer)
	fetcher := marketdata.NewLedgerFetcher(l.Named("fetcher"), ledger, reconciler, cfg.BookDepth, cfg.TradeLimit)
	controller := marketdata.NewController(l.Named("market"), fetcher,
		marketdata.Config{
			PollInterval:    cfg.PollInterval,
			ExpiryLookAhead: cfg.ExpiryLookAhead,
			ExpiryBuffer:    cfg.ExpiryBuffer,
		},
		marketdata.WithPublisher(views),
		marketdata.WithJournal(fillStore),
	)

	return &Console{
		Config:     cfg,
		Ledger:     ledger,
		Fetcher:    fetcher,
		Controller: controller,
		Pools:      amm.NewService(l.Named("amm"), ledger, poolStore),
		Views:      views,
		FillStore:  fillStore,
		PoolStore:  poolStore,
		l:          l,
	}, nil
}

// Server returns the web console bound to this console's services.
func (c *Console) Server() *web.Server {
	return web.NewServer(c.l.Named("web"), c.Config.WebAddr, c.Controller, c.Views,
		web.WithFillStore(c.FillStore),
		web.WithPoolStore(c.PoolStore),
		web.WithPoolQuery(c.Pools),
		web.WithMarketTrades(c.Fetcher),
		web.WithDefaultAccount(c.Config.Account),
	)
}

// Serve selects the configured pair, if any, and runs the web console until
// ctx is cancelled.
func (c *Console) Serve(ctx context.Context) error {
	if pair := c.Config.Pair; pair != nil {
		if err := c.Controller.Select(ctx, *pair, c.Config.Account); err != nil {
			return errors.Wrapf(err, "failed to select %s", pair)
		}
	}

	server := c.Server()
	if len(c.Config.TLSDomains) > 0 {
		return server.StartWithAutoTLS(ctx, c.Config.TLSDomains, c.Config.CertCacheDir)
	}
	return server.Start(ctx)
}

// Fills reconciles the account's recent fills for pair.
func (c *Console) Fills(ctx context.Context, account string, pair domain.Pair) ([]domain.Fill, error) {
	if account == "" {
		return nil, errors.New("account is required")
	}
	return c.Fetcher.Trades(ctx, account, pair)
}

// Close stops polling and releases the connection and journals.
func (c *Console) Close() error {
	c.Controller.Close()

	var errs []error
	if err := c.Ledger.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.FillStore.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PoolStore.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("close console: %v", errs)
	}
	return nil
}
