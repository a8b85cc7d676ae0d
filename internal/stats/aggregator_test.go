package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
)

var errStore = errors.New("store unavailable")

// memStore is an in-memory ReadingStore holding chronological readings
type memStore struct {
	readings []models.Reading
	fail     bool
}

func (m *memStore) QueryRange(_ context.Context, deviceID string, start, end time.Time) ([]models.Reading, error) {
	if m.fail {
		return nil, errStore
	}
	var out []models.Reading
	for _, r := range m.readings {
		if deviceID != "" && r.DeviceID != deviceID {
			continue
		}
		if !r.CollectedAt.Before(start) && r.CollectedAt.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) QuerySince(_ context.Context, deviceID string, since time.Time) ([]models.Reading, error) {
	if m.fail {
		return nil, errStore
	}
	var out []models.Reading
	for _, r := range m.readings {
		if r.DeviceID == deviceID && !r.CollectedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) LatestBefore(_ context.Context, deviceID string, cutoff time.Time) (*models.Reading, error) {
	if m.fail {
		return nil, errStore
	}
	var found *models.Reading
	for i := range m.readings {
		r := m.readings[i]
		if deviceID != "" && r.DeviceID != deviceID {
			continue
		}
		if r.CollectedAt.Before(cutoff) {
			found = &m.readings[i]
		}
	}
	return found, nil
}

func (m *memStore) Latest(_ context.Context, deviceID string) (*models.Reading, error) {
	if m.fail {
		return nil, errStore
	}
	var found *models.Reading
	for i := range m.readings {
		if m.readings[i].DeviceID == deviceID {
			found = &m.readings[i]
		}
	}
	return found, nil
}

func (m *memStore) LastOnDate(_ context.Context, deviceID string, day time.Time) (*models.Reading, error) {
	if m.fail {
		return nil, errStore
	}
	start := civil.DayStart(day)
	end := start.AddDate(0, 0, 1)
	var found *models.Reading
	for i := range m.readings {
		r := m.readings[i]
		if r.DeviceID != deviceID {
			continue
		}
		if !r.CollectedAt.Before(start) && r.CollectedAt.Before(end) {
			found = &m.readings[i]
		}
	}
	return found, nil
}

func tsd(day, hour, min int) time.Time {
	return time.Date(2026, 8, day, hour, min, 0, 0, civil.Location)
}

// testNow is the fixed clock for aggregator tests: 2026-08-30 12:00
func testNow() time.Time {
	return tsd(30, 12, 0)
}

func newTestAggregator(store ReadingStore) *Aggregator {
	return New(store, WithClock(testNow))
}

func TestStatisticsDayScenarioWithAnchor(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(29, 23, 40), 100), // anchor before midnight
		reading("D1", tsd(30, 0, 10), 100),
		reading("D1", tsd(30, 0, 50), 95),
		reading("D1", tsd(30, 1, 30), 140),
		reading("D1", tsd(30, 2, 10), 130),
	}}
	agg := newTestAggregator(store)

	series, err := agg.Statistics(context.Background(), "D1", PeriodDay, "2026-08-30")
	require.NoError(t, err)

	require.Len(t, series.Labels, 24)
	require.Len(t, series.Balances, 24)
	require.Len(t, series.Usage, 24)

	assert.Equal(t, "00点", series.Labels[0])
	assert.Equal(t, "23点", series.Labels[23])

	// Hour 0 shows the first reading; later hours show the last
	require.NotNil(t, series.Balances[0])
	assert.InDelta(t, 100, *series.Balances[0], 1e-9)
	require.NotNil(t, series.Balances[2])
	assert.InDelta(t, 130, *series.Balances[2], 1e-9)
	assert.Nil(t, series.Balances[3])

	assert.InDelta(t, 5, series.Usage[0], 1e-9)  // anchored at 100
	assert.InDelta(t, 0, series.Usage[1], 1e-9)  // recharge absorbed
	assert.InDelta(t, 10, series.Usage[2], 1e-9) // 140 -> 130
}

func TestStatisticsDayScenarioWithoutAnchor(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(30, 0, 10), 100),
		reading("D1", tsd(30, 0, 50), 95),
		reading("D1", tsd(30, 1, 30), 140),
		reading("D1", tsd(30, 2, 10), 130),
	}}
	agg := newTestAggregator(store)

	series, err := agg.Statistics(context.Background(), "D1", PeriodDay, "2026-08-30")
	require.NoError(t, err)

	// No reading exists before the day, so hour 0 only seeds the baseline
	assert.InDelta(t, 0, series.Usage[0], 1e-9)
	assert.InDelta(t, 0, series.Usage[1], 1e-9)
	assert.InDelta(t, 10, series.Usage[2], 1e-9)
}

func TestStatisticsBucketCounts(t *testing.T) {
	agg := newTestAggregator(&memStore{})

	for period, want := range map[string]int{
		PeriodDay:   24,
		PeriodWeek:  7,
		PeriodMonth: 30,
	} {
		series, err := agg.Statistics(context.Background(), "D1", period, "")
		require.NoError(t, err)
		assert.Len(t, series.Labels, want, period)
		assert.Len(t, series.Balances, want, period)
		assert.Len(t, series.Usage, want, period)

		// Empty store: every balance absent, every usage zero
		for i := range series.Labels {
			assert.Nil(t, series.Balances[i])
			assert.Zero(t, series.Usage[i])
		}
	}
}

func TestStatisticsWeekRechargeAwareDailyTotals(t *testing.T) {
	// Day 29 has a mid-day recharge; differencing its closing balances
	// against day 28 would claim usage 50-70 = -20
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(28, 23, 0), 50),
		reading("D1", tsd(29, 10, 0), 40),
		reading("D1", tsd(29, 12, 0), 90),
		reading("D1", tsd(29, 20, 0), 70),
	}}
	agg := newTestAggregator(store)

	series, err := agg.Statistics(context.Background(), "D1", PeriodWeek, "")
	require.NoError(t, err)
	require.Len(t, series.Labels, 7)

	assert.Equal(t, "2026-08-24", series.Labels[0])
	assert.Equal(t, "2026-08-30", series.Labels[6])

	// Day 29 is index 5: usage = (50->40) + (90->70) = 30
	assert.InDelta(t, 30, series.Usage[5], 1e-9)
	require.NotNil(t, series.Balances[5])
	assert.InDelta(t, 70, *series.Balances[5], 1e-9)

	// Day 28 closed at 50 with no anchor before it
	require.NotNil(t, series.Balances[4])
	assert.InDelta(t, 50, *series.Balances[4], 1e-9)
	assert.InDelta(t, 0, series.Usage[4], 1e-9)
}

func TestStatisticsIdempotent(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(30, 0, 10), 100),
		reading("D1", tsd(30, 5, 0), 90),
	}}
	agg := New(store, WithClock(testNow), WithCache(time.Minute))

	first, err := agg.Statistics(context.Background(), "D1", PeriodDay, "2026-08-30")
	require.NoError(t, err)
	second, err := agg.Statistics(context.Background(), "D1", PeriodDay, "2026-08-30")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStatisticsMalformedDateFallsBackToToday(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(30, 8, 0), 60),
	}}
	agg := newTestAggregator(store)

	fromGarbage, err := agg.Statistics(context.Background(), "D1", PeriodDay, "not-a-date")
	require.NoError(t, err)
	fromEmpty, err := agg.Statistics(context.Background(), "D1", PeriodDay, "")
	require.NoError(t, err)

	assert.Equal(t, fromEmpty, fromGarbage)
	require.NotNil(t, fromGarbage.Balances[8])
	assert.InDelta(t, 60, *fromGarbage.Balances[8], 1e-9)
}

func TestStatisticsStoreFailurePropagates(t *testing.T) {
	agg := newTestAggregator(&memStore{fail: true})

	_, err := agg.Statistics(context.Background(), "D1", PeriodDay, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
}

func TestKPIRechargeEstimate(t *testing.T) {
	// current=40, yesterday's close=10, today's usage=5 -> recharge 35
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(29, 20, 0), 10),
		reading("D1", tsd(30, 8, 0), 45), // jump over yesterday's close
		reading("D1", tsd(30, 10, 0), 40),
	}}
	agg := newTestAggregator(store)

	kpi, err := agg.KPI(context.Background(), "D1", "")
	require.NoError(t, err)

	require.NotNil(t, kpi.CurrentBalance)
	assert.InDelta(t, 40, *kpi.CurrentBalance, 1e-9)
	require.NotNil(t, kpi.YesterdayLastBalance)
	assert.InDelta(t, 10, *kpi.YesterdayLastBalance, 1e-9)
	assert.InDelta(t, 5, kpi.UsageTarget, 1e-9)
	assert.InDelta(t, kpi.UsageTarget, kpi.UsageToday, 1e-9)

	require.NotNil(t, kpi.RechargeToday)
	assert.InDelta(t, 35, *kpi.RechargeToday, 1e-9)
}

func TestKPIPastDateSkipsRechargeEstimate(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(28, 20, 0), 80),
		reading("D1", tsd(29, 20, 0), 70),
		reading("D1", tsd(30, 10, 0), 60),
	}}
	agg := newTestAggregator(store)

	kpi, err := agg.KPI(context.Background(), "D1", "2026-08-29")
	require.NoError(t, err)

	assert.Nil(t, kpi.RechargeToday)
	require.NotNil(t, kpi.TargetDateLastBalance)
	assert.InDelta(t, 70, *kpi.TargetDateLastBalance, 1e-9)
	require.NotNil(t, kpi.YesterdayLastBalance)
	assert.InDelta(t, 80, *kpi.YesterdayLastBalance, 1e-9)
	assert.Nil(t, kpi.DayBeforeLastBalance)
	assert.InDelta(t, 10, kpi.UsageTarget, 1e-9) // 80 -> 70
}

func TestKPINoData(t *testing.T) {
	agg := newTestAggregator(&memStore{})

	kpi, err := agg.KPI(context.Background(), "D1", "")
	require.NoError(t, err)

	assert.Nil(t, kpi.CurrentBalance)
	assert.Nil(t, kpi.YesterdayLastBalance)
	assert.Nil(t, kpi.RechargeToday)
	assert.Zero(t, kpi.UsageTarget)
}

func TestPeriodTotalsDay(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(29, 10, 0), 100),
		reading("D1", tsd(29, 22, 0), 90),
		reading("D1", tsd(30, 1, 0), 80),
		reading("D1", tsd(30, 11, 0), 70),
	}}
	agg := newTestAggregator(store)

	totals, err := agg.PeriodTotals(context.Background(), "D1", PeriodDay)
	require.NoError(t, err)

	assert.Equal(t, PeriodDay, totals.Period)
	assert.InDelta(t, 10, totals.CurrentUsage, 1e-9)
	assert.InDelta(t, 10, totals.PreviousUsage, 1e-9)
}

func TestPeriodTotalsUnknownPeriodIsDay(t *testing.T) {
	agg := newTestAggregator(&memStore{})

	totals, err := agg.PeriodTotals(context.Background(), "D1", "fortnight")
	require.NoError(t, err)
	assert.Equal(t, PeriodDay, totals.Period)
}

func TestPeriodTotalsAndDailyBreakdownDiverge(t *testing.T) {
	// The drop-only total ignores the anchored drop into the first
	// sample of the window; the daily breakdown counts it. The two are
	// independently specified and intentionally not reconciled.
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(29, 23, 0), 60),
		reading("D1", tsd(30, 1, 0), 50),
		reading("D1", tsd(30, 2, 0), 100),
		reading("D1", tsd(30, 3, 0), 95),
	}}
	agg := newTestAggregator(store)

	totals, err := agg.PeriodTotals(context.Background(), "D1", PeriodDay)
	require.NoError(t, err)
	assert.InDelta(t, 5, totals.CurrentUsage, 1e-9)

	daily, err := agg.dailyUsage(context.Background(), "D1", tsd(30, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 15, daily, 1e-9)
}

func TestRechargeHistory(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(28, 10, 0), 20),
		reading("D1", tsd(28, 12, 0), 70), // +50
		reading("D1", tsd(30, 9, 0), 55),
		reading("D1", tsd(30, 10, 0), 105), // +50
	}}
	agg := newTestAggregator(store)

	events, err := agg.RechargeHistory(context.Background(), "D1", 30, 50)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, tsd(30, 10, 0), events[0].Time)
	assert.Equal(t, tsd(28, 12, 0), events[1].Time)

	// A window that starts after the older event excludes it
	events, err = agg.RechargeHistory(context.Background(), "D1", 1, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, tsd(30, 10, 0), events[0].Time)
}

func TestDailyReport(t *testing.T) {
	store := &memStore{readings: []models.Reading{
		reading("D1", tsd(28, 22, 0), 90),
		reading("D1", tsd(29, 8, 0), 85),
		reading("D1", tsd(29, 21, 0), 75),
	}}
	agg := newTestAggregator(store)

	report, err := agg.DailyReport(context.Background(), "D1", "Dorm Meter")
	require.NoError(t, err)

	assert.Equal(t, "Dorm Meter", report.DeviceName)
	assert.Equal(t, "2026-08-29", report.Date)
	assert.InDelta(t, 15, report.Usage, 1e-9) // 90 -> 85 -> 75
	require.NotNil(t, report.BalanceStart)
	assert.InDelta(t, 90, *report.BalanceStart, 1e-9)
	require.NotNil(t, report.BalanceEnd)
	assert.InDelta(t, 75, *report.BalanceEnd, 1e-9)
}
