package models

// Series is an index-aligned set of labeled datapoints for one period:
// hourly buckets for a single day, or daily buckets for week/month views.
// A nil balance means no reading fell in that bucket, which is not the
// same thing as a balance of zero.
type Series struct {
	Labels   []string   `json:"labels"`
	Balances []*float64 `json:"balances"`
	Usage    []float64  `json:"usage"`
}

// KPI summarizes a device's balance position around a target date.
type KPI struct {
	CurrentBalance        *float64 `json:"current_balance"`
	TargetDateLastBalance *float64 `json:"target_date_last_balance"`
	YesterdayLastBalance  *float64 `json:"yesterday_last_balance"`
	DayBeforeLastBalance  *float64 `json:"day_before_yesterday_last_balance"`
	UsageTarget           float64  `json:"usage_target"`
	UsageYesterday        float64  `json:"usage_yesterday"`
	RechargeToday         *float64 `json:"recharge_today"`
	UsageToday            float64  `json:"usage_today"` // alias of UsageTarget, kept for older clients
}

// PeriodTotals compares usage in the requested window against the
// immediately preceding window of the same length.
type PeriodTotals struct {
	Period        string  `json:"period"`
	CurrentUsage  float64 `json:"current_usage"`
	PreviousUsage float64 `json:"previous_usage"`
}

// DailyReport is the content of the daily notification for one device.
type DailyReport struct {
	DeviceName   string
	Date         string
	Usage        float64
	BalanceStart *float64 // day-before-yesterday's closing balance
	BalanceEnd   *float64 // yesterday's closing balance
}
