package services

import (
	"fmt"
	"io"
	"strings"

	"collectibles-market/models"
)

// PrintReport renders a pricing result for the terminal.
func PrintReport(w io.Writer, r *models.PricingResult) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  PRICE ESTIMATE: %s\033[0m\n", truncate(describeItem(r.Item), 38))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Lookup\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Purpose        : \033[1m%s\033[0m\n", r.Purpose)
	fmt.Fprintf(w, "  Mode           : \033[1m%s\033[0m\n", r.Mode)
	fmt.Fprintf(w, "  Queries tried  : \033[1m%d\033[0m\n", len(r.VariantsTried))
	fmt.Fprintf(w, "  Matches        : exact %d | similar %d | different %d\n",
		r.Counts.Exact, r.Counts.Similar, r.Counts.Different)
	if r.FromCache {
		fmt.Fprintf(w, "  Served from cache (computed %s)\n", r.ComputedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.NoComparables || r.Stats == nil {
		fmt.Fprintf(w, "  No comparable listings found\n")
	} else {
		s := r.Stats
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", s.Average)
		fmt.Fprintf(w, "  Low / High    : \033[1;32m$%.2f\033[0m / \033[1;32m$%.2f\033[0m\n", s.Low, s.High)
		fmt.Fprintf(w, "  Sample size   : %d\n", s.SampleSize)
		fmt.Fprintf(w, "  Query used    : %s\n", s.UsedQueryLabel)
		if s.FallbackUsed {
			fmt.Fprintf(w, "  \033[33mBroadened query or similar matches were needed\033[0m\n")
		}
	}
	fmt.Fprintln(w)

	if len(r.ByTier) > 0 {
		fmt.Fprintf(w, "\033[1;33m  By Match Tier\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, tier := range []models.MatchTier{models.TierExact, models.TierSimilar, models.TierDifferent} {
			ts, ok := r.ByTier[tier]
			if !ok {
				continue
			}
			bar := strings.Repeat("█", min(ts.SampleSize, 30))
			fmt.Fprintf(w, "  %-10s $%8.2f  %s (%d)\n", tier, ts.Average, bar, ts.SampleSize)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func describeItem(it models.Item) string {
	parts := []string{it.Year, it.Name}
	if it.Number != "" {
		parts = append(parts, "#"+it.Number)
	}
	parts = append(parts, it.Variant, it.GradeLabel())
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
