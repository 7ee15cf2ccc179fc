// Package poolsnapshots journals normalized AMM pool observations.
package poolsnapshots

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	defaultSnapshotDir   = "./wal/pools"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "pool_snapshot_"
)

// WALStore persists pool observations in a WAL for history and streaming.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex

	// last snapshot written per pair, unchanged pools are not rewritten
	last map[string]domain.PoolSnapshot
}

// NewWALStore initializes a WAL-backed pool store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "pool_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init pool snapshot WAL")
	}

	return &WALStore{wal: wal, last: make(map[string]domain.PoolSnapshot)}, nil
}

// Save writes the observation unless the pool did not change since the last one.
// It reports whether a record was written.
func (s *WALStore) Save(obs domain.PoolObservation) (bool, error) {
	if s == nil || s.wal == nil {
		return false, errors.New("pool snapshot store is not initialized")
	}
	if obs.Pair == "" {
		return false, fmt.Errorf("pool observation pair is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.last[obs.Pair]; ok && sameState(prev, obs.Snapshot) {
		return false, nil
	}

	payload, err := json.Marshal(obs)
	if err != nil {
		return false, errors.Wrap(err, "marshal pool observation")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, snapshotKeyPrefix+obs.Pair, payload); err != nil {
		return false, errors.Wrap(err, "write pool observation")
	}
	s.last[obs.Pair] = obs.Snapshot

	return true, nil
}

// ObservationsAfter returns all observations written after the provided WAL index.
func (s *WALStore) ObservationsAfter(index uint64) ([]domain.PoolObservationRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("pool snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.PoolObservationRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var obs domain.PoolObservation
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, errors.Wrap(err, "decode pool observation")
		}
		records = append(records, domain.PoolObservationRecord{Index: idx, Observation: obs})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("pool snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func sameState(a, b domain.PoolSnapshot) bool {
	return a.Exists == b.Exists &&
		a.BaseAmount == b.BaseAmount &&
		a.QuoteAmount == b.QuoteAmount &&
		a.LPTokenAmount == b.LPTokenAmount &&
		a.TradingFeeUnits == b.TradingFeeUnits &&
		a.BaseFrozen == b.BaseFrozen &&
		a.QuoteFrozen == b.QuoteFrozen
}
