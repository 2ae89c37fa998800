package main

import (
	"strings"
	"time"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}

func formatWindow(start, end time.Time) string {
	if start.IsZero() && end.IsZero() {
		return "-"
	}
	if start.Equal(end) {
		return formatTime(start)
	}
	if start.Local().Format("2006-01-02") == end.Local().Format("2006-01-02") {
		return formatTime(start) + " - " + end.Local().Format("15:04")
	}
	return formatTime(start) + " - " + formatTime(end)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
