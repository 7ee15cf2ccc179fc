// Package indicators summarizes trade history with moving averages and momentum.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// DefaultPeriod smoothing period used for the trade summary.
const DefaultPeriod = 5

// Point one executed trade, oldest first in a series.
type Point struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Buy    bool
}

// Summary aggregated view of a trade series. Indicator fields stay empty
// until the series is long enough for the period.
type Summary struct {
	Count      int    `json:"count"`
	Last       string `json:"last,omitempty"`
	VWAP       string `json:"vwap,omitempty"`
	BuyVolume  string `json:"buyVolume"`
	SellVolume string `json:"sellVolume"`
	EMA        string `json:"ema,omitempty"`
	RSI        string `json:"rsi,omitempty"`
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(prices) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(prices))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(helper.SliceToChan(decimalsToFloat64(prices)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(prices) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(prices))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := rsi.Compute(helper.SliceToChan(decimalsToFloat64(prices)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// Summarize aggregates points using period for EMA and RSI.
func Summarize(points []Point, period int) Summary {
	if period <= 0 {
		period = DefaultPeriod
	}

	s := Summary{Count: len(points), BuyVolume: "0", SellVolume: "0"}
	if len(points) == 0 {
		return s
	}

	prices := make([]decimal.Decimal, len(points))
	notional, volume := decimal.Zero, decimal.Zero
	buys, sells := decimal.Zero, decimal.Zero
	for i, p := range points {
		prices[i] = p.Price
		notional = notional.Add(p.Price.Mul(p.Volume))
		volume = volume.Add(p.Volume)
		if p.Buy {
			buys = buys.Add(p.Volume)
		} else {
			sells = sells.Add(p.Volume)
		}
	}

	s.Last = prices[len(prices)-1].String()
	s.BuyVolume = buys.String()
	s.SellVolume = sells.String()
	if volume.IsPositive() {
		s.VWAP = notional.Div(volume).Round(8).String()
	}

	if ema, err := CalculateEMA(prices, period); err == nil && len(ema) > 0 {
		s.EMA = ema[len(ema)-1].Round(8).String()
	}
	if rsi, err := CalculateRSI(prices, period); err == nil && len(rsi) > 0 {
		s.RSI = rsi[len(rsi)-1].Round(2).String()
	}

	return s
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
// Non-finite values (flat series divide by zero) become zero.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
