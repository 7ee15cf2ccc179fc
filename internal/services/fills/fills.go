// Package fills reconstructs executed DEX fills from raw account transaction history.
//
// Offer creation transactions look the same whether the offer crossed the book
// or merely rested on it, so a fill is recognised only by actual balance
// movement in both legs of the pair.
package fills

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/services/balancedelta"
)

var (
	errNotOfferCreate = errors.New("not an offer creation")
	errNotSucceeded   = errors.New("transaction did not succeed")
	errForeignAccount = errors.New("submitted by another account")
	errNotExecuted    = errors.New("offer did not execute")
	errMissingBody    = errors.New("transaction body is absent")
	dropsPerXRP       = decimal.NewFromInt(1_000_000)
)

// selector decides which submitters qualify and which extra accounts are kept out of the totals.
type selector struct {
	accept   func(submitter string) bool
	excluded func(account string) bool
}

func subjectSelector(subject string) selector {
	return selector{
		accept:   func(submitter string) bool { return submitter == subject },
		excluded: func(string) bool { return false },
	}
}

func marketSelector(issuerAccount string) selector {
	return selector{
		accept:   func(string) bool { return true },
		excluded: func(account string) bool { return account == issuerAccount },
	}
}

// ReconcileFills returns the subject's executed fills for pair, at most limit
// of them, in input order. A non-positive limit means no cap.
func ReconcileFills(txs []domain.TransactionEnvelope, subject string, pair domain.Pair, limit int) []domain.Fill {
	return reconcile(txs, pair, limit, subjectSelector(subject), nil)
}

// ReconcileMarketTrades returns fills of any submitter found in the history of
// issuerAccount. The issuer's own balance entries are excluded from the totals.
func ReconcileMarketTrades(txs []domain.TransactionEnvelope, issuerAccount string, pair domain.Pair, limit int) []domain.Fill {
	return reconcile(txs, pair, limit, marketSelector(issuerAccount), nil)
}

func reconcile(
	txs []domain.TransactionEnvelope,
	pair domain.Pair,
	limit int,
	sel selector,
	eval func(domain.TransactionEnvelope) (domain.Fill, error),
) []domain.Fill {
	if eval == nil {
		eval = func(env domain.TransactionEnvelope) (domain.Fill, error) {
			return evaluate(env, pair, sel)
		}
	}

	fills := make([]domain.Fill, 0)
	for _, env := range txs {
		if limit > 0 && len(fills) >= limit {
			break
		}
		fill, err := eval(env)
		if err != nil {
			continue
		}
		fills = append(fills, fill)
	}

	return fills
}

// evaluate turns one envelope into a fill or explains why it is not one.
func evaluate(env domain.TransactionEnvelope, pair domain.Pair, sel selector) (domain.Fill, error) {
	tx := env.Body()
	if tx == nil {
		return domain.Fill{}, errMissingBody
	}
	if tx.TransactionType != domain.TxTypeOfferCreate {
		return domain.Fill{}, errNotOfferCreate
	}

	meta, err := env.ParseMeta()
	if err != nil {
		return domain.Fill{}, err
	}
	if meta.TransactionResult != domain.ResultSuccess {
		return domain.Fill{}, errNotSucceeded
	}
	if !sel.accept(tx.Account) {
		return domain.Fill{}, errForeignAccount
	}

	deltas, err := balancedelta.Extract(meta)
	if err != nil {
		return domain.Fill{}, errors.Wrap(domain.ErrMalformedMetadata, err.Error())
	}

	fee := paidFee(tx.Fee)
	baseTotal, quoteTotal := decimal.Zero, decimal.Zero
	for _, d := range deltas {
		if pair.IsIssuer(d.Account) || sel.excluded(d.Account) {
			continue
		}

		amount := domain.Amount{Currency: d.Currency.Code, Issuer: d.Currency.Issuer}
		switch {
		case domain.Matches(amount, pair.Base):
			if v := legValue(d, pair.Base, tx.Account, fee); v.IsPositive() {
				baseTotal = baseTotal.Add(v)
			}
		case domain.Matches(amount, pair.Quote):
			if v := legValue(d, pair.Quote, tx.Account, fee); v.IsPositive() {
				quoteTotal = quoteTotal.Add(v)
			}
		}
	}

	if !baseTotal.IsPositive() || !quoteTotal.IsPositive() {
		return domain.Fill{}, errNotExecuted
	}

	side := domain.SideSell
	if tx.TakerPays != nil && domain.Matches(*tx.TakerPays, pair.Base) {
		side = domain.SideBuy
	}

	price := decimal.Zero
	if !baseTotal.IsZero() {
		price = quoteTotal.Div(baseTotal)
	}

	return domain.Fill{
		Side:            side,
		Price:           domain.FormatDisplay(price),
		BaseAmount:      domain.FormatDisplay(baseTotal),
		QuoteAmount:     domain.FormatDisplay(quoteTotal),
		Account:         tx.Account,
		Timestamp:       env.Timestamp(),
		TransactionHash: env.TxHash(),
	}, nil
}

// legValue returns the delta with the submitter's fee debit taken back out,
// so the fee is not read as a native trade leg.
func legValue(d domain.BalanceDelta, leg domain.Currency, submitter string, fee decimal.Decimal) decimal.Decimal {
	if leg.IsNative() && d.Account == submitter {
		return d.Value.Add(fee)
	}
	return d.Value
}

func paidFee(drops string) decimal.Decimal {
	if drops == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero
	}
	return v.Div(dropsPerXRP)
}
