// Package engine implements the generation, assignment and reassignment
// rules over the storage layer. All batch entry points collect per-item
// failures into their result instead of aborting.
package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ldi/sgr/pkg/models"
)

// Options are the engine tunables. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// DueBufferDays is subtracted from the official due date to get the
	// internal one.
	DueBufferDays int
	// DefaultDueDay applies when an obligation has no calendar rule: the
	// task falls due that day of the month after the period.
	DefaultDueDay int
	// RiskWindowDays is how long a presented task may wait for its payment
	// receipt before being flagged.
	RiskWindowDays int
}

func DefaultOptions() Options {
	return Options{
		DueBufferDays:  3,
		DefaultDueDay:  17,
		RiskWindowDays: 3,
	}
}

// ParsePeriod validates a YYYY-MM fiscal period and splits it.
func ParsePeriod(period string) (year, month int, err error) {
	if len(period) != 7 || period[4] != '-' {
		return 0, 0, fmt.Errorf("invalid period %q: want YYYY-MM", period)
	}
	// Atoi alone would let signed input like "2025-+1" through.
	for i, c := range []byte(period) {
		if i != 4 && (c < '0' || c > '9') {
			return 0, 0, fmt.Errorf("invalid period %q: want YYYY-MM", period)
		}
	}
	year, err = strconv.Atoi(period[:4])
	if err != nil || year < 1 {
		return 0, 0, fmt.Errorf("invalid period %q: bad year", period)
	}
	month, err = strconv.Atoi(period[5:])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid period %q: month must be 01-12", period)
	}
	return year, month, nil
}

// dueDates computes the official and internal due dates for an obligation in
// a period. A monthly rule (or none) falls due in the month after the
// period; an annual rule falls due in its own month of the period year. Days
// past the end of the month clamp to the last day.
func dueDates(year, month int, rule *models.CalendarRule, opts Options) (official, internal string) {
	dueYear, dueMonth := year, month+1
	if dueMonth > 12 {
		dueYear, dueMonth = dueYear+1, 1
	}
	day := opts.DefaultDueDay

	if rule != nil {
		day = rule.DueDay
		if rule.DueMonth != nil {
			dueYear, dueMonth = year, *rule.DueMonth
		}
	}

	if last := daysIn(dueYear, dueMonth); day > last {
		day = last
	}

	due := time.Date(dueYear, time.Month(dueMonth), day, 0, 0, 0, 0, time.UTC)
	return due.Format("2006-01-02"),
		due.AddDate(0, 0, -opts.DueBufferDays).Format("2006-01-02")
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
