package main

import (
	"fmt"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/internal/stats"
	"github.com/spf13/cobra"
)

var (
	rechargeDays  int
	rechargeLimit int
)

var rechargesCmd = &cobra.Command{
	Use:   "recharges [device-id]",
	Short: "Show reconstructed recharge history",
	Long: `Reconstructs top-up events from upward balance jumps in the stored
readings. Small increases are treated as measurement noise and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecharges,
}

func init() {
	rechargesCmd.Flags().IntVar(&rechargeDays, "days", 30, "Number of days to scan")
	rechargesCmd.Flags().IntVar(&rechargeLimit, "limit", 50, "Maximum events to show (0 = no limit)")
	rootCmd.AddCommand(rechargesCmd)
}

func runRecharges(cmd *cobra.Command, args []string) error {
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
	events, err := agg.RechargeHistory(cmd.Context(), device, rechargeDays, rechargeLimit)
	if err != nil {
		return fmt.Errorf("reconstructing recharges: %w", err)
	}

	if len(events) == 0 {
		fmt.Printf("No recharges found for %s in the last %d days\n", device, rechargeDays)
		return nil
	}

	fmt.Printf("\nRecharges for %s (last %d days):\n", device, rechargeDays)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-20s  %8s  %10s  %10s\n", "Time", "Amount", "Before", "After")
	fmt.Println("------------------------------------------------------------")

	for _, e := range events {
		fmt.Printf("%-20s  %8d  %10.2f  %10.2f\n",
			e.Time.Format(civil.DateTimeFormat), e.Amount, e.BalanceBefore, e.BalanceAfter)
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%d recharge(s)\n", len(events))

	return nil
}
