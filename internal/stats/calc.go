// Package stats turns stored balance readings into consumption figures.
// The underlying signal is a decreasing prepaid balance interrupted by
// recharges (upward jumps); every computation here has to absorb those
// jumps into a new baseline instead of reporting negative usage.
package stats

// RunningBalance accumulates recharge-aware consumption across an
// ordered sequence of balance samples. The baseline only ever moves to
// the most recently seen balance, and the total only grows by positive
// drops against that baseline.
type RunningBalance struct {
	last   float64
	seeded bool
	total  float64
}

// NewRunningBalance returns an accumulator with no prior reference;
// the first observed sample seeds the baseline and contributes no usage.
func NewRunningBalance() *RunningBalance {
	return &RunningBalance{}
}

// NewAnchoredRunningBalance returns an accumulator seeded with a known
// prior balance, so the first observed sample already produces usage.
func NewAnchoredRunningBalance(start float64) *RunningBalance {
	return &RunningBalance{last: start, seeded: true}
}

// Observe feeds one balance sample and returns the usage attributed to
// this step. A balance above the baseline is a recharge: the baseline
// jumps to it and the step contributes zero.
func (rb *RunningBalance) Observe(balance float64) float64 {
	if !rb.seeded {
		rb.last = balance
		rb.seeded = true
		return 0
	}

	if balance > rb.last {
		rb.last = balance
		return 0
	}

	usage := rb.last - balance
	rb.last = balance
	rb.total += usage
	return usage
}

// Total returns the usage accumulated so far
func (rb *RunningBalance) Total() float64 {
	return rb.total
}

// Last returns the current baseline balance, if one has been seen
func (rb *RunningBalance) Last() (float64, bool) {
	return rb.last, rb.seeded
}

// SequenceUsage computes total consumption over ordered balance samples.
// A nil anchor means there is no prior reference and the first sample
// only seeds the baseline.
func SequenceUsage(balances []float64, anchor *float64) float64 {
	var rb *RunningBalance
	if anchor != nil {
		rb = NewAnchoredRunningBalance(*anchor)
	} else {
		rb = NewRunningBalance()
	}
	for _, b := range balances {
		rb.Observe(b)
	}
	return rb.Total()
}

// DropTotal sums the positive drops between adjacent samples, ignoring
// increases entirely. This is the coarser anchor-free computation used
// for period-over-period comparisons; it is not guaranteed to reconcile
// with the anchored daily breakdown when a recharge straddles a window
// boundary.
func DropTotal(balances []float64) float64 {
	var total float64
	for i := 1; i < len(balances); i++ {
		if drop := balances[i-1] - balances[i]; drop > 0 {
			total += drop
		}
	}
	return total
}
