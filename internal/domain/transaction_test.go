package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeLayouts(t *testing.T) {
	legacy := `{"tx":{"TransactionType":"OfferCreate","Account":"rA","Fee":"12","date":0,"hash":"H1"},"meta":{"TransactionResult":"tesSUCCESS","AffectedNodes":[]},"validated":true}`
	current := `{"tx_json":{"TransactionType":"OfferCreate","Account":"rA","Fee":"12","date":1},"hash":"H2","close_time_iso":"2024-01-01T00:00:00Z","meta":{"TransactionResult":"tesSUCCESS","AffectedNodes":[]}}`

	var e1, e2 TransactionEnvelope
	require.NoError(t, json.Unmarshal([]byte(legacy), &e1))
	require.NoError(t, json.Unmarshal([]byte(current), &e2))

	assert.Equal(t, "rA", e1.Body().Account)
	assert.Equal(t, "H1", e1.TxHash())
	assert.Equal(t, "", e1.Timestamp())

	assert.Equal(t, "H2", e2.TxHash())
	assert.Equal(t, "2024-01-01T00:00:00Z", e2.Timestamp())
}

func TestEnvelopeTimestampFallsBackToDate(t *testing.T) {
	e := TransactionEnvelope{Tx: &Transaction{Date: 0x2F0A1B00}}
	assert.Equal(t, RippleTime(0x2F0A1B00).Format(time.RFC3339), e.Timestamp())

	assert.Equal(t, "", TransactionEnvelope{}.Timestamp())
	assert.Equal(t, "", TransactionEnvelope{}.TxHash())
}

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name    string
		meta    string
		wantErr bool
	}{
		{name: "valid", meta: `{"TransactionResult":"tesSUCCESS","AffectedNodes":[{"ModifiedNode":{"LedgerEntryType":"AccountRoot"}}]}`},
		{name: "absent", meta: ``, wantErr: true},
		{name: "null", meta: `null`, wantErr: true},
		{name: "binary blob", meta: `"201C00000000F8E5"`, wantErr: true},
		{name: "no result", meta: `{"AffectedNodes":[]}`, wantErr: true},
		{name: "broken", meta: `{"TransactionResult":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := TransactionEnvelope{Meta: json.RawMessage(tt.meta)}.ParseMeta()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedMetadata)
				return
			}
			require.NoError(t, err)
			require.Len(t, meta.AffectedNodes, 1)
			change, created := meta.AffectedNodes[0].Change()
			assert.False(t, created)
			assert.Equal(t, "AccountRoot", change.LedgerEntryType)
		})
	}
}

func TestRippleTime(t *testing.T) {
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), RippleTime(0))
	now := time.Now().Truncate(time.Second)
	assert.True(t, now.Equal(RippleTime(ToRippleTime(now))))
}
