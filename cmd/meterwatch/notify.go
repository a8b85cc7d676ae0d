package main

import (
	"fmt"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/internal/notifier"
	"github.com/jgoulah/meterwatch/internal/stats"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [device-id]",
	Short: "Send the daily usage report now",
	Long: `Builds yesterday's usage report and pushes it immediately. Without a
device id the report is sent for every configured device that has a
send key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Notify started at %s ===\n", civil.Now().Format("2006-01-02 15:04:05"))

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

	agg := stats.New(db)
	reporter := notifier.NewReporter(agg, notifier.NewServerChan(cfg.ServerChanURL), cfg.Devices)

	if len(args) == 0 {
		reporter.SendDailyReports(cmd.Context())
		return nil
	}

	device := cfg.DeviceByID(args[0])
	if device == nil {
		return fmt.Errorf("device %s not found in %s", args[0], getConfigPath())
	}

	if err := reporter.SendReport(cmd.Context(), *device); err != nil {
		return fmt.Errorf("sending report for %s: %w", device.ID, err)
	}

	fmt.Printf("✓ report sent for %s\n", device.DisplayName())
	return nil
}
