package main

import (
	"fmt"

	"github.com/jgoulah/meterwatch/internal/stats"
	"github.com/spf13/cobra"
)

var (
	statsPeriod string
	statsDate   string
)

var statsCmd = &cobra.Command{
	Use:   "stats [device-id]",
	Short: "Show usage statistics for a period",
	Long: `Computes the recharge-aware usage breakdown for a day, week, or month
and prints it as a table alongside the closing balances.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsPeriod, "period", "day", "Period to report (day, week, or month)")
	statsCmd.Flags().StringVar(&statsDate, "date", "", "Reference date (YYYY-MM-DD, default: today)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	device, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	agg := stats.New(db)
	series, err := agg.Statistics(cmd.Context(), device, statsPeriod, statsDate)
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}

	fmt.Printf("\n%s usage for %s:\n", statsPeriod, device)
	fmt.Println("----------------------------------------")
	fmt.Printf("%-12s  %10s  %10s\n", "Bucket", "Balance", "Usage")
	fmt.Println("----------------------------------------")

	var total float64
	for i, label := range series.Labels {
		balance := "-"
		if series.Balances[i] != nil {
			balance = fmt.Sprintf("%.2f", *series.Balances[i])
		}
		fmt.Printf("%-12s  %10s  %10.2f\n", label, balance, series.Usage[i])
		total += series.Usage[i]
	}

	fmt.Println("----------------------------------------")
	fmt.Printf("Total: %.2f kWh\n", total)

	return nil
}
