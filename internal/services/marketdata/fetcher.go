package marketdata

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/services/fills"
)

const (
	// scanFactor how many transactions are scanned per requested fill.
	scanFactor = 10
	// maxScan upper bound of account_tx page size accepted by nodes.
	maxScan = 400
)

// Fetcher retrieves the three views kept live by the controller.
type Fetcher interface {
	OrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBook, error)
	AccountOffers(ctx context.Context, account string) ([]domain.AccountOffer, error)
	Trades(ctx context.Context, account string, pair domain.Pair) ([]domain.Fill, error)
}

// LedgerAPI ledger queries used by LedgerFetcher.
type LedgerAPI interface {
	AccountTx(ctx context.Context, account string, limit int) ([]domain.TransactionEnvelope, error)
	BookOffers(ctx context.Context, gets, pays domain.Currency, limit int) ([]domain.Offer, error)
	AccountOffers(ctx context.Context, account string) ([]domain.AccountOffer, error)
}

// LedgerFetcher implements Fetcher over ledger queries and fill reconciliation.
type LedgerFetcher struct {
	l          *zap.Logger
	api        LedgerAPI
	reconciler *fills.Reconciler
	bookDepth  int
	tradeLimit int
}

// NewLedgerFetcher creates a fetcher returning at most bookDepth offers per
// book side and tradeLimit fills.
func NewLedgerFetcher(l *zap.Logger, api LedgerAPI, reconciler *fills.Reconciler, bookDepth, tradeLimit int) *LedgerFetcher {
	return &LedgerFetcher{
		l:          l,
		api:        api,
		reconciler: reconciler,
		bookDepth:  bookDepth,
		tradeLimit: tradeLimit,
	}
}

// OrderBook fetches both sides of the book concurrently.
// Asks are offers selling base for quote, bids buy base with quote.
func (f *LedgerFetcher) OrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBook, error) {
	var book domain.OrderBook

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		asks, err := f.api.BookOffers(gctx, pair.Base, pair.Quote, f.bookDepth)
		if err != nil {
			return errors.Wrap(err, "asks")
		}
		book.Asks = asks
		return nil
	})
	g.Go(func() error {
		bids, err := f.api.BookOffers(gctx, pair.Quote, pair.Base, f.bookDepth)
		if err != nil {
			return errors.Wrap(err, "bids")
		}
		book.Bids = bids
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.OrderBook{}, errors.Wrapf(err, "order book %s", pair)
	}

	return book, nil
}

// AccountOffers fetches the account's resting offers.
func (f *LedgerFetcher) AccountOffers(ctx context.Context, account string) ([]domain.AccountOffer, error) {
	if account == "" {
		return nil, nil
	}
	return f.api.AccountOffers(ctx, account)
}

// Trades fetches recent account history and reconciles the account's fills for pair.
func (f *LedgerFetcher) Trades(ctx context.Context, account string, pair domain.Pair) ([]domain.Fill, error) {
	if account == "" {
		return nil, nil
	}

	txs, err := f.api.AccountTx(ctx, account, f.scanLimit())
	if err != nil {
		return nil, err
	}

	result := f.reconciler.Fills(txs, account, pair, f.tradeLimit)
	f.l.Debug("reconciled fills",
		zap.String("account", account),
		zap.String("pair", pair.String()),
		zap.Int("scanned", len(txs)),
		zap.Int("fills", len(result)))

	return result, nil
}

// MarketTrades reconciles fills of every trader found in the issuer's history.
func (f *LedgerFetcher) MarketTrades(ctx context.Context, issuerAccount string, pair domain.Pair) ([]domain.Fill, error) {
	txs, err := f.api.AccountTx(ctx, issuerAccount, f.scanLimit())
	if err != nil {
		return nil, err
	}
	return f.reconciler.MarketTrades(txs, issuerAccount, pair, f.tradeLimit), nil
}

func (f *LedgerFetcher) scanLimit() int {
	n := f.tradeLimit * scanFactor
	if n <= 0 || n > maxScan {
		return maxScan
	}
	return n
}
