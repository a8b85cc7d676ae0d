package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jgoulah/meterwatch/internal/scraper"
	"github.com/spf13/cobra"
)

var captureOutput string

var captureCmd = &cobra.Command{
	Use:   "capture [device-id]",
	Short: "Render the meter page in a headless browser",
	Long: `Loads the meter balance page in headless Chrome, saves the rendered
HTML, and reports what the parser extracts from it. Useful when the
plain HTTP scraper stops finding the balance fields.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureOutput, "output", "meter_page.html", "File to write the rendered HTML to")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	device, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}

	baseURL := cfg.MeterBaseURL
	if baseURL == "" {
		baseURL = scraper.DefaultBaseURL
	}
	url := fmt.Sprintf("%s?mid=%s", baseURL, device)

	fmt.Printf("Rendering %s...\n", url)
	pageHTML, err := scraper.RenderPage(cmd.Context(), url, 60*time.Second)
	if err != nil {
		return fmt.Errorf("capturing page: %w", err)
	}

	if err := os.WriteFile(captureOutput, []byte(pageHTML), 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	fmt.Printf("✓ Saved rendered HTML to %s (%d bytes)\n", captureOutput, len(pageHTML))

	// Show what the parser makes of the rendered page
	meterID, remain := scraper.ParseMeterPage(pageHTML)
	if meterID == "" {
		fmt.Println("✗ Parser could not find the meter number")
	} else {
		fmt.Printf("✓ Meter number: %s\n", meterID)
	}
	if remain == nil {
		fmt.Println("✗ Parser could not find the remaining balance")
	} else {
		fmt.Printf("✓ Remaining balance: %.2f\n", *remain)
	}

	return nil
}
