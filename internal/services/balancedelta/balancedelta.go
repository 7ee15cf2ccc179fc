// Package balancedelta derives signed per-account balance changes from
// transaction execution metadata.
package balancedelta

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	entryAccountRoot = "AccountRoot"
	entryRippleState = "RippleState"
)

var dropsPerXRP = decimal.NewFromInt(1_000_000)

// Extract returns the balance deltas of every account touched by meta.
// Trust line changes yield two mirrored deltas: the low side gains the
// balance change with the high account as issuer and vice versa.
func Extract(meta *domain.Meta) ([]domain.BalanceDelta, error) {
	if meta == nil {
		return nil, domain.ErrMalformedMetadata
	}

	var deltas []domain.BalanceDelta
	for i, node := range meta.AffectedNodes {
		change, created := node.Change()
		if change == nil {
			continue
		}

		var (
			nodeDeltas []domain.BalanceDelta
			err        error
		)
		switch change.LedgerEntryType {
		case entryAccountRoot:
			nodeDeltas, err = accountRootDelta(change, created)
		case entryRippleState:
			nodeDeltas, err = rippleStateDeltas(change, created)
		default:
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "affected node %d (%s)", i, change.LedgerEntryType)
		}
		deltas = append(deltas, nodeDeltas...)
	}

	return deltas, nil
}

func accountRootDelta(change *domain.NodeChange, created bool) ([]domain.BalanceDelta, error) {
	var (
		account string
		diff    decimal.Decimal
	)

	if created {
		account = stringField(change.NewFields, "Account")
		bal, ok, err := dropsField(change.NewFields, "Balance")
		if err != nil || !ok {
			return nil, err
		}
		diff = bal
	} else {
		account = stringField(change.FinalFields, "Account")
		prev, ok, err := dropsField(change.PreviousFields, "Balance")
		if err != nil || !ok {
			return nil, err
		}
		final, _, err := dropsField(change.FinalFields, "Balance")
		if err != nil {
			return nil, err
		}
		diff = final.Sub(prev)
	}

	if account == "" || diff.IsZero() {
		return nil, nil
	}

	return []domain.BalanceDelta{{
		Account:  account,
		Currency: domain.XRP(),
		Value:    diff.Div(dropsPerXRP),
	}}, nil
}

func rippleStateDeltas(change *domain.NodeChange, created bool) ([]domain.BalanceDelta, error) {
	fields := change.FinalFields
	var diff decimal.Decimal

	if created {
		fields = change.NewFields
		bal, ok, err := valueField(fields, "Balance")
		if err != nil || !ok {
			return nil, err
		}
		diff = bal
	} else {
		prev, ok, err := valueField(change.PreviousFields, "Balance")
		if err != nil || !ok {
			return nil, err
		}
		final, _, err := valueField(fields, "Balance")
		if err != nil {
			return nil, err
		}
		diff = final.Sub(prev)
	}

	if diff.IsZero() {
		return nil, nil
	}

	low := nested(fields, "LowLimit")
	high := nested(fields, "HighLimit")
	code, _ := nested(fields, "Balance")["currency"].(string)
	if code == "" {
		code, _ = low["currency"].(string)
	}
	lowAccount, _ := low["issuer"].(string)
	highAccount, _ := high["issuer"].(string)
	if lowAccount == "" || highAccount == "" {
		return nil, errors.New("trust line limits lack accounts")
	}

	return []domain.BalanceDelta{
		{Account: lowAccount, Currency: domain.NewCurrency(code, highAccount), Value: diff},
		{Account: highAccount, Currency: domain.NewCurrency(code, lowAccount), Value: diff.Neg()},
	}, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func nested(fields map[string]any, key string) map[string]any {
	m, _ := fields[key].(map[string]any)
	return m
}

// dropsField reads a native balance. ok is false when the field is absent.
func dropsField(fields map[string]any, key string) (decimal.Decimal, bool, error) {
	raw, present := fields[key]
	if !present {
		return decimal.Zero, false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return decimal.Zero, false, errors.Errorf("%s is not a drops string", key)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "failed to parse %s", key)
	}
	return v, true, nil
}

// valueField reads an issued balance object. ok is false when the field is absent.
func valueField(fields map[string]any, key string) (decimal.Decimal, bool, error) {
	obj := nested(fields, key)
	if obj == nil {
		return decimal.Zero, false, nil
	}
	s, _ := obj["value"].(string)
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "failed to parse %s value", key)
	}
	return v, true, nil
}
