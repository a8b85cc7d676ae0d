package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jgoulah/meterwatch/internal/notifier"
	"github.com/jgoulah/meterwatch/internal/scheduler"
	"github.com/jgoulah/meterwatch/internal/scraper"
	"github.com/jgoulah/meterwatch/internal/server"
	"github.com/jgoulah/meterwatch/internal/stats"
	"github.com/jgoulah/meterwatch/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poller, daily reports, and the JSON API",
	Long: `Starts the long-running service: scrapes every configured device on an
interval, pushes a daily usage report, and serves the statistics API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sc := scraper.NewMeterScraper(cfg.MeterBaseURL)
	agg := stats.New(db, stats.WithCache(cfg.GetCacheTTL()))
	reporter := notifier.NewReporter(agg, notifier.NewServerChan(cfg.ServerChanURL), cfg.Devices)

	// MQTT is optional; without it readings just stay local
	var mqttPub *notifier.MQTTPublisher
	if cfg.MQTT.Enabled {
		mqttPub, err = notifier.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("creating MQTT publisher: %w", err)
		}
		defer mqttPub.Close()
	}

	log := logrus.WithField("component", "serve")

	fetchDevice := func(ctx context.Context, deviceID string) (*models.Reading, error) {
		reading, err := fetchAndStore(ctx, db, sc, deviceID)
		if err != nil {
			return nil, err
		}
		if mqttPub != nil {
			if err := mqttPub.PublishReading(*reading); err != nil {
				log.WithField("device", deviceID).WithError(err).Warn("mqtt publish failed")
			}
		}
		return reading, nil
	}

	fetchAll := func(ctx context.Context) {
		for _, device := range cfg.Devices {
			if _, err := fetchDevice(ctx, device.ID); err != nil {
				log.WithField("device", device.ID).WithError(err).Warn("scrape failed")
				continue
			}
			log.WithField("device", device.ID).Debug("scrape stored")
		}
	}

	sched := scheduler.New(cfg.GetFetchInterval(), cfg.GetReportHour(), scheduler.Jobs{
		FetchAll:    fetchAll,
		SendReports: reporter.SendDailyReports,
	})

	srv := server.New(cfg, agg, reporter, fetchDevice)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)

	log.WithFields(logrus.Fields{
		"devices":  len(cfg.Devices),
		"interval": cfg.GetFetchInterval(),
		"addr":     cfg.GetListenAddr(),
	}).Info("meterwatch started")

	return srv.Run(ctx)
}
