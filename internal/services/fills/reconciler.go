package fills

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

// DefaultCacheSize number of evaluated transactions kept per reconciler.
const DefaultCacheSize = 4096

type cacheKey struct {
	hash    string
	pairKey string
	scope   string
}

type evaluation struct {
	fill domain.Fill
	err  error
}

// Reconciler reconciles fills and remembers per-transaction outcomes, so
// repeated polls over the same history only evaluate new transactions.
type Reconciler struct {
	l     *zap.Logger
	cache *lru.Cache[cacheKey, evaluation]
}

// NewReconciler creates a reconciler with an LRU of the given size.
func NewReconciler(l *zap.Logger, size int) (*Reconciler, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, evaluation](size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reconciliation cache")
	}
	return &Reconciler{l: l, cache: cache}, nil
}

// Fills is ReconcileFills with caching.
func (r *Reconciler) Fills(txs []domain.TransactionEnvelope, subject string, pair domain.Pair, limit int) []domain.Fill {
	return r.run(txs, pair, limit, subjectSelector(subject), "account:"+subject)
}

// MarketTrades is ReconcileMarketTrades with caching.
func (r *Reconciler) MarketTrades(txs []domain.TransactionEnvelope, issuerAccount string, pair domain.Pair, limit int) []domain.Fill {
	return r.run(txs, pair, limit, marketSelector(issuerAccount), "market:"+issuerAccount)
}

// Len returns the number of cached evaluations.
func (r *Reconciler) Len() int {
	return r.cache.Len()
}

func (r *Reconciler) run(txs []domain.TransactionEnvelope, pair domain.Pair, limit int, sel selector, scope string) []domain.Fill {
	pairKey := pair.Key()

	return reconcile(txs, pair, limit, sel, func(env domain.TransactionEnvelope) (domain.Fill, error) {
		hash := env.TxHash()
		key := cacheKey{hash: hash, pairKey: pairKey, scope: scope}
		if hash != "" {
			if cached, ok := r.cache.Get(key); ok {
				return cached.fill, cached.err
			}
		}

		fill, err := evaluate(env, pair, sel)
		if err != nil && errors.Is(err, domain.ErrMalformedMetadata) {
			r.l.Debug("skipping transaction with unusable metadata",
				zap.String("hash", hash), zap.String("pair", pair.String()), zap.Error(err))
		}

		// unvalidated transactions may still change, keep them out of the cache
		if hash != "" && env.Validated {
			r.cache.Add(key, evaluation{fill: fill, err: err})
		}
		return fill, err
	})
}
