package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
)

// Reporting periods understood by the aggregator. Anything else falls
// back to a single day.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ReadingStore is the slice of the database the aggregator needs. The
// store either returns the full requested window or fails; a failure is
// propagated, never treated as an empty window.
type ReadingStore interface {
	QueryRange(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error)
	QuerySince(ctx context.Context, deviceID string, since time.Time) ([]models.Reading, error)
	LatestBefore(ctx context.Context, deviceID string, cutoff time.Time) (*models.Reading, error)
	Latest(ctx context.Context, deviceID string) (*models.Reading, error)
	LastOnDate(ctx context.Context, deviceID string, day time.Time) (*models.Reading, error)
}

// Aggregator computes usage series, KPIs, period comparisons, and the
// recharge ledger from stored readings. It holds no per-request state;
// identical stored data always yields identical results.
type Aggregator struct {
	store ReadingStore
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
	log   *logrus.Entry
}

// Option customizes an Aggregator
type Option func(*Aggregator)

// WithCache memoizes statistics responses for the given freshness window
func WithCache(ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = NewCache(ttl)
		a.ttl = ttl
	}
}

// WithClock overrides the time source (used in tests)
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an aggregator over the given store
func New(store ReadingStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		now:   civil.Now,
		log:   logrus.WithField("component", "stats"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Statistics produces the labeled balance/usage series for a device and
// period. targetDate selects the reference day (YYYY-MM-DD); empty or
// malformed dates silently mean "today". An empty deviceID aggregates
// readings across all devices for the day view and yields empty daily
// buckets otherwise, mirroring how a device-less query behaves at the
// balance level.
func (a *Aggregator) Statistics(ctx context.Context, deviceID, period, targetDate string) (models.Series, error) {
	key := fmt.Sprintf("stats|%s|%s|%s|%d", period, deviceID, targetDate, Epoch(a.now(), a.cacheWindow()))
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			a.log.WithField("key", key).Debug("statistics cache hit")
			return v.(models.Series), nil
		}
	}

	var series models.Series
	var err error
	switch period {
	case PeriodWeek:
		series, err = a.dailySeries(ctx, deviceID, targetDate, 7)
	case PeriodMonth:
		series, err = a.dailySeries(ctx, deviceID, targetDate, 30)
	default:
		series, err = a.hourlySeries(ctx, deviceID, targetDate)
	}
	if err != nil {
		return models.Series{}, err
	}

	if a.cache != nil {
		a.cache.Set(key, series)
	}
	return series, nil
}

// hourlySeries builds 24 hour buckets for one day. Hour 0 is anchored
// on the latest reading strictly before midnight.
func (a *Aggregator) hourlySeries(ctx context.Context, deviceID, targetDate string) (models.Series, error) {
	start := civil.DayStart(civil.ParseDateOr(targetDate, a.now()))
	end := start.AddDate(0, 0, 1)

	rows, err := a.store.QueryRange(ctx, deviceID, start, end)
	if err != nil {
		return models.Series{}, fmt.Errorf("loading day readings: %w", err)
	}

	prev, err := a.store.LatestBefore(ctx, deviceID, start)
	if err != nil {
		return models.Series{}, fmt.Errorf("loading anchor reading: %w", err)
	}
	var prevBalance *float64
	if prev != nil {
		prevBalance = &prev.Balance
	}

	groups := GroupByHour(rows)
	balances := HourlyBalances(groups)
	usage := HourlyUsage(groups, prevBalance)

	series := models.Series{
		Labels:   make([]string, 24),
		Balances: make([]*float64, 24),
		Usage:    make([]float64, 24),
	}
	for h := 0; h < 24; h++ {
		series.Labels[h] = fmt.Sprintf("%02d点", h)
		series.Balances[h] = balances[h]
		series.Usage[h] = usage[h]
	}
	return series, nil
}

// dailySeries builds one bucket per calendar day for the window ending
// at the reference date. Each day's usage is the recharge-aware daily
// total, not a difference of day representatives, so a mid-day recharge
// cannot deflate it.
func (a *Aggregator) dailySeries(ctx context.Context, deviceID, targetDate string, days int) (models.Series, error) {
	base := civil.DayStart(civil.ParseDateOr(targetDate, a.now()))
	start := base.AddDate(0, 0, -(days - 1))
	labels := DayKeys(start, base)

	series := models.Series{
		Labels:   labels,
		Balances: make([]*float64, len(labels)),
		Usage:    make([]float64, len(labels)),
	}

	if deviceID == "" {
		return series, nil
	}

	for i := range labels {
		day := start.AddDate(0, 0, i)

		last, err := a.store.LastOnDate(ctx, deviceID, day)
		if err != nil {
			return models.Series{}, fmt.Errorf("loading closing balance: %w", err)
		}
		if last != nil {
			series.Balances[i] = &last.Balance
		}

		usage, err := a.dailyUsage(ctx, deviceID, day)
		if err != nil {
			return models.Series{}, err
		}
		series.Usage[i] = usage
	}

	return series, nil
}

// dailyUsage is the recharge-aware total for one calendar day, anchored
// on the last balance seen before the day started. A day with no
// readings uses none of its anchor and reports zero.
func (a *Aggregator) dailyUsage(ctx context.Context, deviceID string, day time.Time) (float64, error) {
	start := civil.DayStart(day)
	end := start.AddDate(0, 0, 1)

	rows, err := a.store.QueryRange(ctx, deviceID, start, end)
	if err != nil {
		return 0, fmt.Errorf("loading day readings: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	prev, err := a.store.LatestBefore(ctx, deviceID, start)
	if err != nil {
		return 0, fmt.Errorf("loading anchor reading: %w", err)
	}
	var anchor *float64
	if prev != nil {
		anchor = &prev.Balance
	}

	return SequenceUsage(balancesOf(rows), anchor), nil
}

// KPI assembles the balance snapshot around a target date. The same-day
// recharge estimate is only computed when the target date is today:
// current balance minus yesterday's close, plus what was consumed since,
// floored at zero.
func (a *Aggregator) KPI(ctx context.Context, deviceID, targetDate string) (models.KPI, error) {
	now := a.now()
	base := civil.ParseDateOr(targetDate, now)
	yesterday := base.AddDate(0, 0, -1)
	dayBefore := base.AddDate(0, 0, -2)

	current, err := a.store.Latest(ctx, deviceID)
	if err != nil {
		return models.KPI{}, fmt.Errorf("loading latest reading: %w", err)
	}

	baseLast, err := a.lastBalanceOn(ctx, deviceID, base)
	if err != nil {
		return models.KPI{}, err
	}
	yLast, err := a.lastBalanceOn(ctx, deviceID, yesterday)
	if err != nil {
		return models.KPI{}, err
	}
	dbLast, err := a.lastBalanceOn(ctx, deviceID, dayBefore)
	if err != nil {
		return models.KPI{}, err
	}

	usageTarget, err := a.dailyUsage(ctx, deviceID, base)
	if err != nil {
		return models.KPI{}, err
	}
	usageYesterday, err := a.dailyUsage(ctx, deviceID, yesterday)
	if err != nil {
		return models.KPI{}, err
	}

	kpi := models.KPI{
		TargetDateLastBalance: baseLast,
		YesterdayLastBalance:  yLast,
		DayBeforeLastBalance:  dbLast,
		UsageTarget:           usageTarget,
		UsageYesterday:        usageYesterday,
		UsageToday:            usageTarget,
	}
	if current != nil {
		kpi.CurrentBalance = &current.Balance
	}

	if targetDate == "" || targetDate == now.Format(civil.DateFormat) {
		if kpi.CurrentBalance != nil && yLast != nil {
			recharge := *kpi.CurrentBalance - *yLast + usageTarget
			if recharge < 0 {
				recharge = 0
			}
			kpi.RechargeToday = &recharge
		}
	}

	return kpi, nil
}

// PeriodTotals compares drop-only usage in the current window against
// the preceding window of equal length. This deliberately stays the
// coarser anchor-free computation; it is specified and tested
// independently of the daily breakdown.
func (a *Aggregator) PeriodTotals(ctx context.Context, deviceID, period string) (models.PeriodTotals, error) {
	now := a.now()

	var days int
	switch period {
	case PeriodWeek:
		days = 7
	case PeriodMonth:
		days = 30
	default:
		period = PeriodDay
		days = 1
	}

	startCur := civil.DayStart(now.AddDate(0, 0, -(days - 1)))
	endCur := now
	startPrev := startCur.AddDate(0, 0, -days)
	endPrev := startCur

	current, err := a.dropTotal(ctx, deviceID, startCur, endCur)
	if err != nil {
		return models.PeriodTotals{}, err
	}
	previous, err := a.dropTotal(ctx, deviceID, startPrev, endPrev)
	if err != nil {
		return models.PeriodTotals{}, err
	}

	return models.PeriodTotals{
		Period:        period,
		CurrentUsage:  current,
		PreviousUsage: previous,
	}, nil
}

// RechargeHistory reconstructs the recharge ledger over the last
// queryDays days, newest first, truncated to limit after ordering.
// limit <= 0 means no truncation.
func (a *Aggregator) RechargeHistory(ctx context.Context, deviceID string, queryDays, limit int) ([]models.RechargeEvent, error) {
	if queryDays <= 0 {
		queryDays = 30
	}
	since := civil.DayStart(a.now().AddDate(0, 0, -queryDays))

	rows, err := a.store.QuerySince(ctx, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}

	return ReconstructLedger(rows, limit), nil
}

// DailyReport summarizes yesterday for the daily notification
func (a *Aggregator) DailyReport(ctx context.Context, deviceID, deviceName string) (models.DailyReport, error) {
	yesterday := civil.DayStart(a.now().AddDate(0, 0, -1))
	dayBefore := yesterday.AddDate(0, 0, -1)

	usage, err := a.dailyUsage(ctx, deviceID, yesterday)
	if err != nil {
		return models.DailyReport{}, err
	}
	end, err := a.lastBalanceOn(ctx, deviceID, yesterday)
	if err != nil {
		return models.DailyReport{}, err
	}
	start, err := a.lastBalanceOn(ctx, deviceID, dayBefore)
	if err != nil {
		return models.DailyReport{}, err
	}

	return models.DailyReport{
		DeviceName:   deviceName,
		Date:         yesterday.Format(civil.DateFormat),
		Usage:        round2(usage),
		BalanceStart: roundPtr(start),
		BalanceEnd:   roundPtr(end),
	}, nil
}

func (a *Aggregator) dropTotal(ctx context.Context, deviceID string, start, end time.Time) (float64, error) {
	rows, err := a.store.QueryRange(ctx, deviceID, start, end)
	if err != nil {
		return 0, fmt.Errorf("loading window readings: %w", err)
	}
	return DropTotal(balancesOf(rows)), nil
}

func (a *Aggregator) lastBalanceOn(ctx context.Context, deviceID string, day time.Time) (*float64, error) {
	r, err := a.store.LastOnDate(ctx, deviceID, day)
	if err != nil {
		return nil, fmt.Errorf("loading closing balance: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	return &r.Balance, nil
}

func (a *Aggregator) cacheWindow() time.Duration {
	if a.ttl > 0 {
		return a.ttl
	}
	return 5 * time.Minute
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
