package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suwandre/spreadscan/internal/models"
)

// printRow emits the fixed-width per-pair line:
//
//	SYMBOL   -1.23%    [0.0152]  +13.44%   24Hr Vol: $1,234,567
//
// Sell impact first, best bid bracketed at the pair's quote precision, buy
// impact, then 24h quote volume.
func (s *Scheduler) printRow(res models.ImpactResult, decimals int, belowThreshold bool) {
	row := formatRow(res, decimals)
	if belowThreshold {
		row += " (below threshold)"
	}
	fmt.Fprintln(s.out, row)
}

func formatRow(res models.ImpactResult, decimals int) string {
	sell := fmt.Sprintf("-%.2f%%", res.SellImpactPct)
	buy := fmt.Sprintf("%+.2f%%", res.BuyImpactPct)
	price := fmt.Sprintf("[%.*f]", decimals, res.BestBid)
	volume := "24Hr Vol: $" + comma(int64(res.USDVolume))

	return fmt.Sprintf("%-7s  %-8s  %s  %-8s  %s", res.Symbol(), sell, price, buy, volume)
}

// comma renders n with thousands separators.
func comma(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	b.WriteString(sign)

	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
