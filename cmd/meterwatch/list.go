package main

import (
	"fmt"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/spf13/cobra"
)

var listDays int

var listCmd = &cobra.Command{
	Use:   "list [device-id]",
	Short: "List stored balance readings",
	Long:  `Displays stored balance readings from the database, most recent window first.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listDays, "days", 7, "Number of days to show")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()

	// Determine which devices to show
	var devices []string
	if len(args) > 0 || cfg.FirstDevice() != nil {
		device, err := resolveDevice(cfg, args)
		if err != nil {
			return err
		}
		devices = append(devices, device)
	} else {
		devices, err = db.Devices(ctx)
		if err != nil {
			return fmt.Errorf("listing devices: %w", err)
		}
	}

	now := civil.Now()
	start := civil.DayStart(now.AddDate(0, 0, -(listDays - 1)))

	for _, device := range devices {
		readings, err := db.QueryRange(ctx, device, start, now)
		if err != nil {
			return fmt.Errorf("listing readings for %s: %w", device, err)
		}

		if len(readings) == 0 {
			fmt.Printf("No readings found for %s\n", device)
			continue
		}

		fmt.Printf("\n%s Balance Readings:\n", device)
		fmt.Println("----------------------------------------")
		fmt.Printf("%-20s  %10s\n", "Collected At", "Balance")
		fmt.Println("----------------------------------------")

		for _, r := range readings {
			fmt.Printf("%-20s  %10.2f\n", r.CollectedAt.Format(civil.DateTimeFormat), r.Balance)
		}

		fmt.Println("----------------------------------------")
		fmt.Printf("%d readings over %d days\n", len(readings), listDays)
	}

	return nil
}
