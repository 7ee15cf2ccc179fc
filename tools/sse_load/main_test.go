package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCountsEventsByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: market\ndata: {}\n\n: ping\n\nid: 1\nevent: fill\ndata: {}\n\n")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st := newStats()
	require.NoError(t, run(ctx, zap.NewNop(), server.URL, 3, 0, st))

	assert.EqualValues(t, 3, st.connected.Load())
	assert.Equal(t, map[string]int64{"market": 3, "fill": 3}, st.byName())
	assert.EqualValues(t, 3, st.streamErrs.Load(), "server closed every stream early")
}

func TestRunConnectErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	st := newStats()
	require.NoError(t, run(context.Background(), zap.NewNop(), server.URL, 2, 0, st))
	assert.EqualValues(t, 2, st.connectErrs.Load())
	assert.Zero(t, st.total())
}
