package notifier

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/meterwatch/internal/config"
	"github.com/jgoulah/meterwatch/internal/stats"
)

// Reporter pushes the daily per-device usage reports
type Reporter struct {
	agg     *stats.Aggregator
	push    *ServerChan
	devices []config.Device
	log     *logrus.Entry
}

// NewReporter creates a reporter for the configured devices
func NewReporter(agg *stats.Aggregator, push *ServerChan, devices []config.Device) *Reporter {
	return &Reporter{
		agg:     agg,
		push:    push,
		devices: devices,
		log:     logrus.WithField("component", "reporter"),
	}
}

// SendDailyReports pushes yesterday's report for every device that has
// a SendKey configured. One device failing does not stop the others.
func (r *Reporter) SendDailyReports(ctx context.Context) {
	for _, device := range r.devices {
		if device.ServerChanKey == "" {
			r.log.WithField("device", device.ID).Info("no send key configured, skipping")
			continue
		}

		if err := r.SendReport(ctx, device); err != nil {
			r.log.WithField("device", device.ID).WithError(err).Error("daily report failed")
			continue
		}
		r.log.WithField("device", device.ID).Info("daily report sent")
	}
}

// SendReport builds and pushes yesterday's report for one device
func (r *Reporter) SendReport(ctx context.Context, device config.Device) error {
	report, err := r.agg.DailyReport(ctx, device.ID, device.DisplayName())
	if err != nil {
		return err
	}

	return r.push.Send(ctx, device.ServerChanKey, ReportTitle(report), ReportBody(report))
}
