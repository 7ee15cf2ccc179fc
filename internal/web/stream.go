package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	heartbeatInterval = 20 * time.Second
	// thinKeepLast records at the tail of a first load sent without thinning.
	thinKeepLast = 100
)

type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// openStream sets SSE headers. It fails when w cannot flush.
func openStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &eventStream{w: w, flusher: flusher}, true
}

// send writes one event. id 0 is omitted.
func (e *eventStream) send(id uint64, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id > 0 {
		fmt.Fprintf(e.w, "id: %d\n", id)
	}
	fmt.Fprintf(e.w, "event: %s\n", event)
	fmt.Fprintf(e.w, "data: %s\n\n", payload)
	e.flusher.Flush()
	return nil
}

func (e *eventStream) ping() {
	fmt.Fprintf(e.w, ": ping\n\n")
	e.flusher.Flush()
}

// handleMarketStream sends the current view and then every committed view.
func (s *Server) handleMarketStream(w http.ResponseWriter, r *http.Request) {
	stream, ok := openStream(w)
	if !ok {
		return
	}

	updates := s.views.Subscribe()
	defer s.views.Unsubscribe(updates)

	if err := stream.send(0, "market", s.market.Snapshot()); err != nil {
		s.l.Warn("market stream initial view", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			stream.ping()
		case view, ok := <-updates:
			if !ok {
				return
			}
			if err := stream.send(0, "market", view); err != nil {
				s.l.Warn("market stream send", zap.Error(err))
				return
			}
		}
	}
}

// handleFillStream replays journaled fills after Last-Event-ID and follows
// the journal. An optional pair query restricts the stream to one pair.
func (s *Server) handleFillStream(w http.ResponseWriter, r *http.Request) {
	if s.fills == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "fill journal not available")
		return
	}

	pairFilter := r.URL.Query().Get("pair")
	followJournal(s, w, r, "fill", s.fills.FillsAfter,
		func(rec domain.FillRecord) uint64 { return rec.Index },
		func(rec domain.FillRecord) (any, bool) {
			if pairFilter != "" && rec.Pair != pairFilter {
				return nil, false
			}
			return rec, true
		},
		false,
	)
}

// handlePoolStream replays pool observations and follows the journal. Long
// histories are thinned on the first load.
func (s *Server) handlePoolStream(w http.ResponseWriter, r *http.Request) {
	if s.pools == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "pool journal not available")
		return
	}

	pairFilter := r.URL.Query().Get("pair")
	followJournal(s, w, r, "pool", s.pools.ObservationsAfter,
		func(rec domain.PoolObservationRecord) uint64 { return rec.Index },
		func(rec domain.PoolObservationRecord) (any, bool) {
			if pairFilter != "" && rec.Observation.Pair != pairFilter {
				return nil, false
			}
			return rec.Observation, true
		},
		true,
	)
}

// followJournal streams records read through after, polling for new ones.
// When the first load finds nothing a no_data event is sent.
func followJournal[R any](
	s *Server,
	w http.ResponseWriter,
	r *http.Request,
	event string,
	after func(index uint64) ([]R, error),
	indexOf func(R) uint64,
	payload func(R) (any, bool),
	thin bool,
) {
	stream, ok := openStream(w)
	if !ok {
		return
	}

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	thinFirst := thin && lastIndex == 0
	sent := 0

	sendRecords := func() error {
		records, err := after(lastIndex)
		if err != nil {
			return err
		}
		if thinFirst {
			records = thinRecords(records, thinKeepLast)
			thinFirst = false
		}

		for _, rec := range records {
			idx := indexOf(rec)
			if v, ok := payload(rec); ok {
				if err := stream.send(idx, event, v); err != nil {
					return err
				}
				sent++
			}
			lastIndex = idx
		}
		return nil
	}

	if err := sendRecords(); err != nil {
		s.l.Error("journal stream initial load", zap.String("event", event), zap.Error(err))
		return
	}
	if sent == 0 {
		fmt.Fprintf(w, "event: no_data\ndata: {}\n\n")
		stream.flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(s.storePoll)
	defer poll.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			stream.ping()
		case <-poll.C:
			if err := sendRecords(); err != nil {
				s.l.Warn("journal stream poll", zap.String("event", event), zap.Error(err))
			}
		}
	}
}

// parseLastEventID reads the resume index from the Last-Event-ID header or,
// for manual reconnects, the last_event_id query parameter.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// thinRecords keeps the last keepLast records and exponentially thins older ones.
func thinRecords[R any](records []R, keepLast int) []R {
	if len(records) <= keepLast {
		return records
	}

	older := records[:len(records)-keepLast]
	var thinned []R

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append(thinned, older[i])
		i -= skip
		// double the gap every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	for l, r := 0, len(thinned)-1; l < r; l, r = l+1, r-1 {
		thinned[l], thinned[r] = thinned[r], thinned[l]
	}

	return append(thinned, records[len(records)-keepLast:]...)
}
