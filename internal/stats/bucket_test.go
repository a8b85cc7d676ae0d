package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
)

func reading(device string, t time.Time, balance float64) models.Reading {
	return models.Reading{DeviceID: device, Balance: balance, CollectedAt: t}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 30, hour, min, 0, 0, civil.Location)
}

func TestGroupByHourPreservesOrder(t *testing.T) {
	groups := GroupByHour([]models.Reading{
		reading("D1", at(0, 10), 100),
		reading("D1", at(0, 50), 95),
		reading("D1", at(1, 30), 140),
		reading("D1", at(2, 10), 130),
	})

	require.Len(t, groups[0], 2)
	assert.InDelta(t, 100, groups[0][0].Balance, 1e-9)
	assert.InDelta(t, 95, groups[0][1].Balance, 1e-9)
	require.Len(t, groups[1], 1)
	require.Len(t, groups[2], 1)
	assert.Empty(t, groups[3])
}

func TestHourlyBalancesFirstVsLast(t *testing.T) {
	groups := GroupByHour([]models.Reading{
		reading("D1", at(0, 10), 100),
		reading("D1", at(0, 50), 95),
		reading("D1", at(9, 5), 80),
		reading("D1", at(9, 55), 78),
	})
	balances := HourlyBalances(groups)

	// Hour 0 keeps the first reading, every other hour the last
	require.NotNil(t, balances[0])
	assert.InDelta(t, 100, *balances[0], 1e-9)
	require.NotNil(t, balances[9])
	assert.InDelta(t, 78, *balances[9], 1e-9)

	// Empty buckets stay nil rather than zero
	assert.Nil(t, balances[1])
	assert.Nil(t, balances[23])
}

func TestHourlyUsageCrossMidnightAnchor(t *testing.T) {
	groups := GroupByHour([]models.Reading{
		reading("D1", at(0, 10), 100),
		reading("D1", at(0, 50), 95),
	})

	// With an anchor from the prior day, hour 0 usage starts there
	usage := HourlyUsage(groups, anchor(100))
	assert.InDelta(t, 5, usage[0], 1e-9)

	// Without an anchor the first sample only seeds the baseline
	usage = HourlyUsage(groups, nil)
	assert.InDelta(t, 0, usage[0], 1e-9)
}

func TestHourlyUsageRechargeScenario(t *testing.T) {
	// 00:10->100, 00:50->95, 01:30->140 (recharge), 02:10->130
	groups := GroupByHour([]models.Reading{
		reading("D1", at(0, 10), 100),
		reading("D1", at(0, 50), 95),
		reading("D1", at(1, 30), 140),
		reading("D1", at(2, 10), 130),
	})

	usage := HourlyUsage(groups, nil)

	assert.InDelta(t, 0, usage[0], 1e-9)  // no anchor
	assert.InDelta(t, 0, usage[1], 1e-9)  // recharge absorbed
	assert.InDelta(t, 10, usage[2], 1e-9) // 140 -> 130
}

func TestHourlyUsageGapBreaksAnchoring(t *testing.T) {
	// Hour 5 has readings but hour 4 has none, so hour 5 has no anchor
	groups := GroupByHour([]models.Reading{
		reading("D1", at(3, 0), 90),
		reading("D1", at(5, 0), 85),
		reading("D1", at(5, 30), 83),
	})

	usage := HourlyUsage(groups, anchor(95))
	assert.InDelta(t, 0, usage[5], 1e-9)
	assert.InDelta(t, 0, usage[4], 1e-9)
}

func TestDayKeysContinuous(t *testing.T) {
	start := time.Date(2026, 2, 26, 13, 0, 0, 0, civil.Location)
	end := time.Date(2026, 3, 2, 1, 0, 0, 0, civil.Location)

	keys := DayKeys(start, end)
	assert.Equal(t, []string{
		"2026-02-26", "2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02",
	}, keys)
}
