package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	// TxTypeOfferCreate offer creation transaction type.
	TxTypeOfferCreate = "OfferCreate"
	// ResultSuccess canonical success result code.
	ResultSuccess = "tesSUCCESS"

	// rippleEpochOffset seconds between the unix epoch and 2000-01-01T00:00:00Z.
	rippleEpochOffset = 946684800
)

// ErrMalformedMetadata is returned when an envelope carries no usable execution metadata.
var ErrMalformedMetadata = errors.New("malformed transaction metadata")

// TransactionEnvelope one account_tx entry. Both the legacy "tx" and the newer
// "tx_json" body layouts are accepted.
type TransactionEnvelope struct {
	Tx           *Transaction    `json:"tx,omitempty"`
	TxJSON       *Transaction    `json:"tx_json,omitempty"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	Hash         string          `json:"hash,omitempty"`
	CloseTimeISO string          `json:"close_time_iso,omitempty"`
	LedgerIndex  uint32          `json:"ledger_index,omitempty"`
	Validated    bool            `json:"validated"`
}

// Body returns the transaction body, preferring tx_json.
func (e TransactionEnvelope) Body() *Transaction {
	if e.TxJSON != nil {
		return e.TxJSON
	}
	return e.Tx
}

// TxHash returns the envelope hash, falling back to the body hash.
func (e TransactionEnvelope) TxHash() string {
	if e.Hash != "" {
		return e.Hash
	}
	if body := e.Body(); body != nil {
		return body.Hash
	}
	return ""
}

// Timestamp returns the best available close time: close_time_iso, then the raw
// ledger date rendered as RFC3339, else empty.
func (e TransactionEnvelope) Timestamp() string {
	if e.CloseTimeISO != "" {
		return e.CloseTimeISO
	}
	if body := e.Body(); body != nil && body.Date != 0 {
		return RippleTime(body.Date).Format(time.RFC3339)
	}
	return ""
}

// ParseMeta decodes the execution metadata.
func (e TransactionEnvelope) ParseMeta() (*Meta, error) {
	raw := bytes.TrimSpace(e.Meta)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] != '{' {
		return nil, ErrMalformedMetadata
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrap(ErrMalformedMetadata, err.Error())
	}
	if meta.TransactionResult == "" {
		return nil, errors.Wrap(ErrMalformedMetadata, "missing TransactionResult")
	}

	return &meta, nil
}

// Transaction subset of transaction body fields used by the console.
type Transaction struct {
	TransactionType string  `json:"TransactionType"`
	Account         string  `json:"Account"`
	Fee             string  `json:"Fee"`
	Sequence        uint32  `json:"Sequence"`
	TakerGets       *Amount `json:"TakerGets,omitempty"`
	TakerPays       *Amount `json:"TakerPays,omitempty"`
	Expiration      uint32  `json:"Expiration,omitempty"`
	Date            uint32  `json:"date,omitempty"`
	Hash            string  `json:"hash,omitempty"`
}

// Meta execution metadata of a validated transaction.
type Meta struct {
	TransactionIndex  uint32         `json:"TransactionIndex"`
	TransactionResult string         `json:"TransactionResult"`
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
}

// AffectedNode exactly one of the three fields is set.
type AffectedNode struct {
	CreatedNode  *NodeChange `json:"CreatedNode,omitempty"`
	ModifiedNode *NodeChange `json:"ModifiedNode,omitempty"`
	DeletedNode  *NodeChange `json:"DeletedNode,omitempty"`
}

// Change returns the populated change and whether it is a creation.
func (n AffectedNode) Change() (change *NodeChange, created bool) {
	switch {
	case n.CreatedNode != nil:
		return n.CreatedNode, true
	case n.ModifiedNode != nil:
		return n.ModifiedNode, false
	default:
		return n.DeletedNode, false
	}
}

// NodeChange a ledger entry touched by a transaction.
type NodeChange struct {
	LedgerEntryType string         `json:"LedgerEntryType"`
	LedgerIndex     string         `json:"LedgerIndex"`
	FinalFields     map[string]any `json:"FinalFields,omitempty"`
	PreviousFields  map[string]any `json:"PreviousFields,omitempty"`
	NewFields       map[string]any `json:"NewFields,omitempty"`
}

// RippleTime converts ledger epoch seconds to time.
func RippleTime(seconds uint32) time.Time {
	return time.Unix(int64(seconds)+rippleEpochOffset, 0).UTC()
}

// ToRippleTime converts time to ledger epoch seconds.
func ToRippleTime(t time.Time) uint32 {
	s := t.Unix() - rippleEpochOffset
	if s < 0 {
		return 0
	}
	return uint32(s)
}
