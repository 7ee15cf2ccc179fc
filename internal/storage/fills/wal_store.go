// Package fills journals newly observed fills so streams can replay them.
package fills

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	DefaultDir   = "./wal/fills"
	segmentLimit = 500
	maxSegments  = 20

	fillKeyPrefix = "fill_"
)

// ErrNotInitialized is returned by a nil or closed store.
var ErrNotInitialized = errors.New("fill journal is not initialized")

type journaledFill struct {
	Pair string      `json:"pair"`
	Fill domain.Fill `json:"fill"`
}

// WALStore persists fills in a WAL. A transaction hash is written at most once.
type WALStore struct {
	wal  *gowal.Wal
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewWALStore opens the journal under dir and indexes the hashes already stored.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "fill_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init fill WAL")
	}

	s := &WALStore{wal: wal, seen: make(map[string]struct{})}
	for idx := uint64(1); idx <= wal.CurrentIndex(); idx++ {
		key, _, err := wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, fillKeyPrefix) {
			continue
		}
		s.seen[strings.TrimPrefix(key, fillKeyPrefix)] = struct{}{}
	}

	return s, nil
}

// Append writes fills observed for pair, skipping hashes already journaled.
// It returns how many fills were written.
func (s *WALStore) Append(pair domain.Pair, fills []domain.Fill) (int, error) {
	if s == nil || s.wal == nil {
		return 0, ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, f := range fills {
		if f.TransactionHash == "" {
			continue
		}
		if _, dup := s.seen[f.TransactionHash]; dup {
			continue
		}

		payload, err := json.Marshal(journaledFill{Pair: pair.String(), Fill: f})
		if err != nil {
			return written, errors.Wrap(err, "marshal fill")
		}

		nextIndex := s.wal.CurrentIndex() + 1
		if err := s.wal.Write(nextIndex, fillKeyPrefix+f.TransactionHash, payload); err != nil {
			return written, errors.Wrapf(err, "write fill %s", f.TransactionHash)
		}
		s.seen[f.TransactionHash] = struct{}{}
		written++
	}

	return written, nil
}

// FillsAfter returns all fills written after the provided WAL index.
func (s *WALStore) FillsAfter(index uint64) ([]domain.FillRecord, error) {
	if s == nil || s.wal == nil {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.FillRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, fillKeyPrefix) {
			continue
		}
		var jf journaledFill
		if err := json.Unmarshal(payload, &jf); err != nil {
			return nil, errors.Wrap(err, "decode fill")
		}
		records = append(records, domain.FillRecord{Index: idx, Pair: jf.Pair, Fill: jf.Fill})
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
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
