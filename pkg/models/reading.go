package models

import "time"

// Reading represents a single observed balance for a prepaid meter
type Reading struct {
	ID          int       `json:"id"`
	DeviceID    string    `json:"device_id"`
	Balance     float64   `json:"balance"`
	CollectedAt time.Time `json:"collected_at"` // civil UTC+8 wall time
}

// RechargeEvent is a top-up inferred from an upward balance jump.
// Events are reconstructed from stored readings on every query and
// never persisted themselves.
type RechargeEvent struct {
	DeviceID      string    `json:"device_id"`
	Time          time.Time `json:"-"`
	Amount        int       `json:"recharge_amount"` // estimated, in whole currency units
	BalanceBefore float64   `json:"balance_before"`
	BalanceAfter  float64   `json:"balance_after"`
}
