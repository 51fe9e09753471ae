// Package pricing computes swap prices. Pure functions, no side effects.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Settings holds the two knobs the estimator reads from configuration.
type Settings struct {
	// MinPercentage is the charge fraction above which a swap is treated
	// as a top-off and charged the flat surcharge instead of by energy.
	MinPercentage float64
	// Surcharge in whole currency units.
	Surcharge int64
}

// Estimate prices one battery swap. Below the threshold the driver pays for
// the missing energy: (capacity - charge) * rate / 1000, rate being per kWh.
// A zero-capacity battery prices to zero rather than dividing by zero.
func Estimate(capacityWh, chargeWh int, ratePerKWh int64, s Settings) int64 {
	if capacityWh <= 0 {
		return 0
	}

	pct := float64(chargeWh) / float64(capacityWh)
	if pct > s.MinPercentage {
		return s.Surcharge
	}

	missing := decimal.NewFromInt(int64(capacityWh - chargeWh))
	price := missing.Mul(decimal.NewFromInt(ratePerKWh)).Div(decimal.NewFromInt(1000))
	if price.IsNegative() {
		return 0
	}
	return price.Round(0).IntPart()
}

// Line is one battery's share of a quote.
type Line struct {
	Serial string
	Amount int64
}

// Quote is the itemized total for a multi-slot booking.
type Quote struct {
	Lines []Line
	Total int64
}

// Describe renders the per-battery breakdown joined with " | ".
func (q Quote) Describe() string {
	parts := make([]string, 0, len(q.Lines))
	for _, l := range q.Lines {
		parts = append(parts, fmt.Sprintf("%s: %d", l.Serial, l.Amount))
	}
	return strings.Join(parts, " | ")
}

// Add appends one priced battery to the quote.
func (q *Quote) Add(serial string, amount int64) {
	q.Lines = append(q.Lines, Line{Serial: serial, Amount: amount})
	q.Total += amount
}
