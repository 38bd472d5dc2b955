package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zulandar/planyard/internal/models"
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// orDash renders empty strings as "-" in tables.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAmount renders a money column, "-" when unset.
func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}

func formatDate(t time.Time) string {
	return models.FormatDate(t)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// yesNo renders a boolean flag column.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
