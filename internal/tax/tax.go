// Package tax computes order totals from jurisdiction rate schedules.
package tax

import (
	"context"
	"math"
	"time"

	"github.com/hsafari99/bell/internal/domain"
)

// Calculator computes the tax breakdown for a set of items under a tax
// context. Implementations must be pure and deterministic: same inputs,
// same breakdown, no side effects.
type Calculator interface {
	Calculate(ctx context.Context, items []domain.LineItem, taxCtx domain.TaxContext) (domain.TaxBreakdown, error)
}

// rateLine is one named component of a jurisdiction's rate
type rateLine struct {
	name string
	rate float64
}

// ratePeriod holds the rate lines effective from a given date until the
// next period supersedes them
type ratePeriod struct {
	from  time.Time
	lines []rateLine
}

// schedule is one jurisdiction's rate history plus its exempt categories
type schedule struct {
	periods []ratePeriod // ascending by effective date
	exempt  map[string]bool
}

// at returns the period in effect on the given date, or nil if the
// schedule had not started yet
func (s schedule) at(asOf time.Time) *ratePeriod {
	var current *ratePeriod
	for i := range s.periods {
		if !s.periods[i].from.After(asOf) {
			current = &s.periods[i]
		}
	}
	return current
}

// ScheduleCalculator resolves rates from an effective-dated schedule per
// jurisdiction. Unknown jurisdictions are taxed at zero rather than
// rejected; the breakdown still carries the subtotal and total.
type ScheduleCalculator struct {
	schedules map[string]schedule
}

// NewScheduleCalculator returns a calculator loaded with the built-in
// jurisdiction schedules.
func NewScheduleCalculator() *ScheduleCalculator {
	return &ScheduleCalculator{schedules: defaultSchedules()}
}

// Calculate prices the items under the context's jurisdiction as of the
// context's date. A zero as-of date means today. Items in a category the
// jurisdiction exempts contribute to the subtotal but not to tax.
func (c *ScheduleCalculator) Calculate(ctx context.Context, items []domain.LineItem, taxCtx domain.TaxContext) (domain.TaxBreakdown, error) {
	sched, known := c.schedules[taxCtx.Jurisdiction]

	subtotal := 0.0
	taxable := 0.0
	for _, item := range items {
		line := item.Subtotal()
		subtotal += line
		if known && sched.exempt[item.Category] {
			continue
		}
		taxable += line
	}
	subtotal = round2(subtotal)
	taxable = round2(taxable)

	breakdown := domain.TaxBreakdown{Subtotal: subtotal}

	if known {
		asOf := taxCtx.AsOfDate
		if asOf.IsZero() {
			asOf = time.Now()
		}
		if period := sched.at(asOf); period != nil {
			for _, rl := range period.lines {
				amount := round2(taxable * rl.rate)
				breakdown.TaxLines = append(breakdown.TaxLines, domain.TaxLine{
					Name:         rl.name,
					Jurisdiction: taxCtx.Jurisdiction,
					Rate:         rl.rate,
					Amount:       amount,
				})
				breakdown.TotalTax += amount
			}
		}
	}

	breakdown.TotalTax = round2(breakdown.TotalTax)
	breakdown.Total = round2(subtotal + breakdown.TotalTax)
	return breakdown, nil
}

// round2 rounds to cents
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// defaultSchedules is the built-in rate history. Rates are effective-dated
// so a cart priced as of an old date gets the rates of that date.
func defaultSchedules() map[string]schedule {
	return map[string]schedule{
		"CA-ON": {
			periods: []ratePeriod{
				{from: ymd(2008, time.January, 1), lines: []rateLine{
					{name: "GST", rate: 0.05},
					{name: "PST", rate: 0.08},
				}},
				// Ontario merged into the HST mid-2010.
				{from: ymd(2010, time.July, 1), lines: []rateLine{
					{name: "HST", rate: 0.13},
				}},
			},
			exempt: map[string]bool{"grocery": true},
		},
		"CA-BC": {
			periods: []ratePeriod{
				{from: ymd(2013, time.April, 1), lines: []rateLine{
					{name: "GST", rate: 0.05},
					{name: "PST", rate: 0.07},
				}},
			},
			exempt: map[string]bool{"grocery": true},
		},
		"US-CA": {
			periods: []ratePeriod{
				{from: ymd(2017, time.January, 1), lines: []rateLine{
					{name: "Sales Tax", rate: 0.0725},
				}},
			},
			exempt: map[string]bool{"grocery": true},
		},
	}
}
