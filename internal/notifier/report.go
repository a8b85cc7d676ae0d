package notifier

import (
	"fmt"
	"strings"

	"github.com/jgoulah/meterwatch/pkg/models"
)

// usageTone classifies yesterday's consumption for the report headline
func usageTone(usage float64) string {
	switch {
	case usage > 10:
		return "heavy usage"
	case usage > 5:
		return "normal usage"
	case usage > 0:
		return "light usage"
	default:
		return "almost no usage"
	}
}

// ReportTitle builds the push title for a daily report
func ReportTitle(report models.DailyReport) string {
	return fmt.Sprintf("Yesterday's usage: %.2f kWh", report.Usage)
}

// ReportBody renders the daily report as Server-chan markdown
func ReportBody(report models.DailyReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Usage Report\n")
	fmt.Fprintf(&b, "**Device:** %s  \n", report.DeviceName)
	fmt.Fprintf(&b, "**Date:** %s  \n", report.Date)
	fmt.Fprintf(&b, "**Usage:** %.2f kWh (%s)  \n", report.Usage, usageTone(report.Usage))
	fmt.Fprintf(&b, "**Opening balance:** %s  \n", balanceOrNoData(report.BalanceStart))
	fmt.Fprintf(&b, "**Closing balance:** %s  \n", balanceOrNoData(report.BalanceEnd))
	fmt.Fprintf(&b, "\n---\n*sent automatically by meterwatch*\n")

	return b.String()
}

func balanceOrNoData(v *float64) string {
	if v == nil {
		return "no data"
	}
	return fmt.Sprintf("%.2f kWh", *v)
}
