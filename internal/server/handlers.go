package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
)

// Defaults for the recharge history query
const (
	defaultQueryDays    = 30
	defaultHistoryLimit = 50
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleData returns the labeled balance/usage series for a period.
// device_id is optional here: without it the day view aggregates
// readings across all devices, exactly at the balance level.
func (s *Server) handleData(c *gin.Context) {
	period := c.DefaultQuery("period", "day")
	deviceID := c.Query("device_id")
	targetDate := c.Query("date")

	series, err := s.agg.Statistics(c.Request.Context(), deviceID, period, targetDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

func (s *Server) handleKPI(c *gin.Context) {
	deviceID := s.deviceOrDefault(c)
	targetDate := c.Query("date")

	if deviceID == "" {
		// No device at all still answers with the full (empty) shape
		c.JSON(http.StatusOK, models.KPI{})
		return
	}

	kpi, err := s.agg.KPI(c.Request.Context(), deviceID, targetDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, kpi)
}

func (s *Server) handlePeriodKPI(c *gin.Context) {
	deviceID := s.deviceOrDefault(c)
	period := c.DefaultQuery("period", "day")

	totals, err := s.agg.PeriodTotals(c.Request.Context(), deviceID, period)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, totals)
}

type rechargeRecord struct {
	RechargeTime   string  `json:"recharge_time"`
	RechargeDate   string  `json:"recharge_date"`
	RechargeAmount int     `json:"recharge_amount"`
	BalanceBefore  float64 `json:"balance_before"`
	BalanceAfter   float64 `json:"balance_after"`
	DeviceID       string  `json:"device_id"`
}

func (s *Server) handleRechargeHistory(c *gin.Context) {
	deviceID := s.deviceOrDefault(c)
	days := intQuery(c, "days", defaultQueryDays)
	limit := intQuery(c, "limit", defaultHistoryLimit)

	if deviceID == "" {
		c.JSON(http.StatusOK, gin.H{"recharges": []rechargeRecord{}, "message": "no devices configured"})
		return
	}

	events, err := s.agg.RechargeHistory(c.Request.Context(), deviceID, days, limit)
	if err != nil {
		s.fail(c, err)
		return
	}

	records := make([]rechargeRecord, 0, len(events))
	for _, e := range events {
		records = append(records, rechargeRecord{
			RechargeTime:   e.Time.Format(civil.DateTimeFormat),
			RechargeDate:   e.Time.Format(civil.DateFormat),
			RechargeAmount: e.Amount,
			BalanceBefore:  e.BalanceBefore,
			BalanceAfter:   e.BalanceAfter,
			DeviceID:       e.DeviceID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"recharges":   records,
		"total_count": len(records),
		"query_days":  days,
		"device_id":   deviceID,
	})
}

func (s *Server) handleFetch(c *gin.Context) {
	deviceID := s.deviceOrDefault(c)
	if deviceID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "fetch failed: no devices configured"})
		return
	}

	reading, err := s.fetch(c.Request.Context(), deviceID)
	if err != nil {
		s.log.WithField("device", deviceID).WithError(err).Warn("fetch failed")
		c.JSON(http.StatusOK, gin.H{"message": "fetch failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "fetch succeeded",
		"reading": reading,
	})
}

func (s *Server) handleTestNotification(c *gin.Context) {
	deviceID := s.deviceOrDefault(c)

	device := s.cfg.DeviceByID(deviceID)
	if device == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "device not found"})
		return
	}
	if device.ServerChanKey == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "no send key configured"})
		return
	}

	if err := s.reporter.SendReport(c.Request.Context(), *device); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error(), "device_name": device.DisplayName()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "sent", "device_name": device.DisplayName()})
}

// fail reports a store-level failure for this request. No-data never
// lands here; it is encoded into the normal response shapes.
func (s *Server) fail(c *gin.Context, err error) {
	s.log.WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
