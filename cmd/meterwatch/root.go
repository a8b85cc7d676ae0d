package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/meterwatch/internal/config"
	"github.com/jgoulah/meterwatch/internal/database"
	"github.com/jgoulah/meterwatch/internal/scraper"
	"github.com/jgoulah/meterwatch/pkg/models"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "meterwatch",
	Short: "Track prepaid electricity balance and consumption",
	Long: `Meterwatch polls a prepaid electricity meter for its remaining balance,
stores timestamped readings in a local SQLite database, and reconstructs
actual consumption and recharge history from the balance curve.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// fetchAndStore scrapes one device and persists the reading
func fetchAndStore(ctx context.Context, db *database.DB, sc *scraper.MeterScraper, deviceID string) (*models.Reading, error) {
	data, err := sc.Fetch(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("fetching device %s: %w", deviceID, err)
	}

	reading := &models.Reading{
		DeviceID:    deviceID,
		Balance:     data.Remain,
		CollectedAt: data.CollectedAt,
	}
	if err := db.InsertReading(ctx, reading); err != nil {
		return nil, err
	}

	return reading, nil
}

// resolveDevice picks the device from an optional positional arg,
// falling back to the first configured device
func resolveDevice(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if d := cfg.FirstDevice(); d != nil {
		return d.ID, nil
	}
	return "", fmt.Errorf("no device specified and none configured in %s", getConfigPath())
}
