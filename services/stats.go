package services

import (
	"sort"

	"collectibles-market/models"
	"collectibles-market/utils"
)

// minIQRSample is the smallest set for which quartile bounds are meaningful.
const minIQRSample = 4

// Bounds is the sane price domain for a lookup. Prices above Ceiling are
// discarded before any statistics are taken. A zero Ceiling disables it.
type Bounds struct {
	Ceiling float64
}

// StatsEngine reduces matched prices to robust summary statistics.
type StatsEngine struct {
	logger *utils.Logger
}

func NewStatsEngine(logger *utils.Logger) *StatsEngine {
	return &StatsEngine{logger: logger}
}

// Compute drops non-positive and out-of-domain prices, removes IQR outliers
// when at least four prices remain, and summarises the survivors. It reports
// false when nothing survives; that is a valid outcome, not an error.
func (s *StatsEngine) Compute(prices []float64, b Bounds) (models.PriceStatistics, bool) {
	inDomain := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p <= 0 {
			continue
		}
		if b.Ceiling > 0 && p > b.Ceiling {
			continue
		}
		inDomain = append(inDomain, p)
	}

	survivors := inDomain
	if len(inDomain) >= minIQRSample {
		survivors = iqrFilter(inDomain)
	}

	if dropped := len(prices) - len(survivors); dropped > 0 && s.logger != nil {
		s.logger.Debug("[stats] %d of %d prices discarded as out of domain or outliers", dropped, len(prices))
	}

	if len(survivors) == 0 {
		return models.PriceStatistics{}, false
	}

	stats := models.PriceStatistics{
		Low:        survivors[0],
		High:       survivors[0],
		SampleSize: len(survivors),
	}
	var total float64
	for _, p := range survivors {
		total += p
		if p < stats.Low {
			stats.Low = p
		}
		if p > stats.High {
			stats.High = p
		}
	}
	stats.Average = round2(total / float64(len(survivors)))
	stats.Low = round2(stats.Low)
	stats.High = round2(stats.High)
	return stats, true
}

// iqrFilter keeps prices inside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
func iqrFilter(prices []float64) []float64 {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p >= lo && p <= hi {
			out = append(out, p)
		}
	}
	return out
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	i := int(idx)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
