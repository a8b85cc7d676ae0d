package stats

import (
	"math"

	"github.com/jgoulah/meterwatch/pkg/models"
)

// Recharges are sold in round multiples of 10, and the poller usually
// observes them one sample late with some consumption already gone.
// These thresholds separate a genuine top-up from measurement jitter.
const (
	rechargeNoiseFloor = 8.0 // smaller increases are jitter, not credit
	rechargeMinAmount  = 10.0
	rechargeTolerance  = 5.0 // max gap between increase and denomination
)

// ReconstructLedger walks readings in chronological order and emits the
// recharge events hidden in the balance jumps, newest first. Increases
// that fail the denomination heuristic are dropped silently; they are
// noise, not errors. A positive limit truncates the result after
// ordering, so it always keeps the most recent events.
func ReconstructLedger(readings []models.Reading, limit int) []models.RechargeEvent {
	var events []models.RechargeEvent

	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		increase := curr.Balance - prev.Balance
		if increase <= 0 {
			continue
		}

		amount, ok := classifyRecharge(increase)
		if !ok {
			continue
		}

		events = append(events, models.RechargeEvent{
			DeviceID:      curr.DeviceID,
			Time:          curr.CollectedAt,
			Amount:        amount,
			BalanceBefore: round2(prev.Balance),
			BalanceAfter:  round2(curr.Balance),
		})
	}

	// newest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	return events
}

// classifyRecharge maps a balance increase to an estimated top-up
// amount, or reports that the increase does not look like a recharge.
func classifyRecharge(increase float64) (int, bool) {
	if increase < rechargeNoiseFloor {
		return 0, false
	}

	// Ties halfway between denominations round to the even one, so an
	// increase of 45 estimates 40 while 55 estimates 60.
	estimated := math.RoundToEven(increase/10) * 10

	if estimated < rechargeMinAmount || math.Abs(estimated-increase) > rechargeTolerance {
		return 0, false
	}

	return int(estimated), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
