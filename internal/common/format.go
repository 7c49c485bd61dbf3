package common

import (
	"fmt"
	"strings"
	"time"

	"savings-intents-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// FormatAmount renders a balance with two decimals and a leading sign for
// non-zero differences when signed is set
func FormatAmount(amount decimal.Decimal, signed bool) string {
	if signed && amount.IsPositive() {
		return "+" + amount.StringFixed(2)
	}
	return amount.StringFixed(2)
}

// PrintReconciliationReport writes a reconciliation report to stdout
func PrintReconciliationReport(report *models.ReconciliationReport, width int) {
	title := "Balance Reconciliation"
	if report.DryRun {
		title += " (dry run)"
	}
	PrintHeader(title, width)

	if len(report.Rows) == 0 {
		fmt.Println("All cached balances match their completed intents")
	}
	for i, row := range report.Rows {
		isLast := i == len(report.Rows)-1
		fmt.Printf("%s%s %s (%s)\n", BoxPrefix(isLast), row.AccountNumber, row.AccountType, row.Owner)
		fmt.Printf("%s  cached %s -> ledger %s  diff %s  completed intents %d\n",
			BoxDetailPrefix(isLast),
			FormatAmount(row.OldBalance, false),
			FormatAmount(row.NewBalance, false),
			FormatAmount(row.Difference, true),
			row.CompletedIntentCount)
	}

	status := "complete"
	if !report.Complete {
		status = "interrupted"
		if report.Interruption != "" {
			status += " (" + report.Interruption + ")"
		}
	}
	verb := "corrected"
	if report.DryRun {
		verb = "out of balance"
	}
	PrintFooter(fmt.Sprintf("%d accounts checked, %d %s, run %s in %s",
		report.TotalAccounts, report.UpdatedAccounts, verb, status,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)), width)
}
