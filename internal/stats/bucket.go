package stats

import (
	"time"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
)

// GroupByHour distributes one day's readings into 24 hour-of-day groups.
// Input order is preserved within each group, so readings must already
// be sorted by time (the store guarantees this).
func GroupByHour(readings []models.Reading) [24][]models.Reading {
	var groups [24][]models.Reading
	for _, r := range readings {
		h := r.CollectedAt.Hour()
		groups[h] = append(groups[h], r)
	}
	return groups
}

// HourlyBalances picks the representative balance for each hour bucket.
// Hour 0 takes the first reading of the hour so that usage since
// midnight can be measured from the prior day's closing balance; every
// other hour takes the last reading, the value the next hour is
// compared against. Empty buckets stay nil, never zero.
func HourlyBalances(groups [24][]models.Reading) [24]*float64 {
	var balances [24]*float64
	for h := 0; h < 24; h++ {
		if len(groups[h]) == 0 {
			continue
		}
		var b float64
		if h == 0 {
			b = groups[h][0].Balance
		} else {
			b = groups[h][len(groups[h])-1].Balance
		}
		balances[h] = &b
	}
	return balances
}

// HourlyUsage computes per-hour consumption for one day. prevBalance is
// the last balance seen before the day started; without it hour 0 has
// no reference and reports zero. Each later hour is anchored on the
// preceding hour's closing balance, so a bucket with no neighbor to
// anchor against also reports zero rather than guessing.
func HourlyUsage(groups [24][]models.Reading, prevBalance *float64) [24]float64 {
	var usage [24]float64
	for h := 0; h < 24; h++ {
		if len(groups[h]) == 0 {
			continue
		}

		var anchor *float64
		if h == 0 {
			anchor = prevBalance
		} else if len(groups[h-1]) > 0 {
			last := groups[h-1][len(groups[h-1])-1].Balance
			anchor = &last
		}
		if anchor == nil {
			continue
		}

		usage[h] = SequenceUsage(balancesOf(groups[h]), anchor)
	}
	return usage
}

// DayKeys returns the contiguous run of calendar-day labels from start
// through end inclusive. Days with no readings still get a label.
func DayKeys(start, end time.Time) []string {
	var keys []string
	for d := civil.DayStart(start); !d.After(civil.DayStart(end)); d = d.AddDate(0, 0, 1) {
		keys = append(keys, d.Format(civil.DateFormat))
	}
	return keys
}

func balancesOf(readings []models.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Balance
	}
	return out
}
