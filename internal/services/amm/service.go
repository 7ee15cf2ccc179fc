package amm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

// PoolAPI ledger query answering amm_info.
type PoolAPI interface {
	AMMInfo(ctx context.Context, asset1, asset2 domain.Currency) (*domain.RawPool, error)
}

// PoolJournal stores observed pool states.
type PoolJournal interface {
	Save(obs domain.PoolObservation) (bool, error)
}

// Service queries pools and returns them oriented to the requested pair.
type Service struct {
	l       *zap.Logger
	api     PoolAPI
	journal PoolJournal
	now     func() time.Time
}

// NewService creates a pool service. journal may be nil.
func NewService(l *zap.Logger, api PoolAPI, journal PoolJournal) *Service {
	return &Service{l: l, api: api, journal: journal, now: time.Now}
}

// Pool returns the pool of pair with pair.Base as the base leg.
// A pair without a pool yields a snapshot with Exists == false.
func (s *Service) Pool(ctx context.Context, pair domain.Pair) (domain.PoolSnapshot, error) {
	raw, err := s.api.AMMInfo(ctx, pair.Base, pair.Quote)
	if err != nil {
		return domain.PoolSnapshot{}, errors.Wrapf(err, "pool %s", pair)
	}

	snapshot := NormalizePool(raw, pair.Base)
	if !snapshot.Exists || s.journal == nil {
		return snapshot, nil
	}

	written, err := s.journal.Save(domain.PoolObservation{
		Timestamp: s.now().UTC(),
		Pair:      pair.String(),
		Snapshot:  snapshot,
	})
	if err != nil {
		s.l.Error("failed to journal pool snapshot", zap.String("pair", pair.String()), zap.Error(err))
	} else if written {
		s.l.Debug("pool snapshot journaled",
			zap.String("pair", pair.String()), zap.String("spot", snapshot.SpotPrice))
	}

	return snapshot, nil
}
