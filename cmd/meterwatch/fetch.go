package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/internal/scraper"
	"github.com/spf13/cobra"
)

var fetchAllDevices bool

var fetchCmd = &cobra.Command{
	Use:   "fetch [device-id]",
	Short: "Fetch the current balance from the meter",
	Long: `Scrapes the prepaid meter page for the given device and stores the
reading in the local SQLite database. Without a device id the first
configured device is used; --all fetches every configured device.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchAllDevices, "all", false, "Fetch every configured device")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Fetch started at %s ===\n", civil.Now().Format("2006-01-02 15:04:05"))

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

	var devices []string
	if fetchAllDevices {
		for _, d := range cfg.Devices {
			devices = append(devices, d.ID)
		}
		if len(devices) == 0 {
			return fmt.Errorf("no devices configured in %s", getConfigPath())
		}
	} else {
		device, err := resolveDevice(cfg, args)
		if err != nil {
			return err
		}
		devices = append(devices, device)
	}

	for _, device := range devices {
		reading, err := fetchAndStore(cmd.Context(), db, sc, device)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", device, err)
			continue
		}
		fmt.Printf("✓ %s: balance %.2f at %s\n",
			device, reading.Balance, reading.CollectedAt.Format(time.TimeOnly))
	}

	return nil
}
