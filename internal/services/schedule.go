package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDay       = errors.New("invalid day of week")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidStartTime = errors.New("invalid start time")
	ErrSlotInPast       = errors.New("slot is in the past")
)

var weekDays = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

var periods = map[string]struct{}{
	"Morning":   {},
	"Afternoon": {},
	"Evening":   {},
	"Night":     {},
}

// parseDayOfWeek validates a client-supplied day name and returns its
// canonical form alongside the weekday. Matching is case-insensitive but the
// stored form is always capitalized.
func parseDayOfWeek(day string) (string, time.Weekday, error) {
	trimmed := strings.TrimSpace(day)
	if trimmed == "" {
		return "", 0, ErrInvalidDay
	}
	canonical := strings.ToUpper(trimmed[:1]) + strings.ToLower(trimmed[1:])
	weekday, ok := weekDays[canonical]
	if !ok {
		return "", 0, ErrInvalidDay
	}
	return canonical, weekday, nil
}

func parsePeriod(period string) (string, error) {
	trimmed := strings.TrimSpace(period)
	if trimmed == "" {
		return "", ErrInvalidPeriod
	}
	canonical := strings.ToUpper(trimmed[:1]) + strings.ToLower(trimmed[1:])
	if _, ok := periods[canonical]; !ok {
		return "", ErrInvalidPeriod
	}
	return canonical, nil
}

// parseStartTime accepts a strict "HH:MM" value on the hour (sessions are
// one-hour slots) and returns the canonical string plus the hour.
func parseStartTime(value string) (string, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return "", 0, ErrInvalidStartTime
	}
	if parsed.Minute() != 0 {
		return "", 0, ErrInvalidStartTime
	}
	return fmt.Sprintf("%02d:00", parsed.Hour()), parsed.Hour(), nil
}

// nextOccurrence resolves a recurring (weekday, hour) slot to its next
// concrete instant, 0-6 days ahead of now in the operating timezone, and
// returns it in UTC. When the slot falls on the current day it must be
// strictly in the future.
func nextOccurrence(now time.Time, loc *time.Location, weekday time.Weekday, hour int) (time.Time, error) {
	local := now.In(loc)
	daysAhead := (int(weekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(
		local.Year(), local.Month(), local.Day()+daysAhead,
		hour, 0, 0, 0, loc,
	)
	if daysAhead == 0 && !candidate.After(local) {
		return time.Time{}, ErrSlotInPast
	}
	return candidate.UTC(), nil
}

// occurrenceWindow is the [start, end) range of the calendar day the slot's
// next occurrence falls on, in UTC. Free-slot listings subtract accepted
// sessions inside this window.
func occurrenceWindow(now time.Time, loc *time.Location, weekday time.Weekday) (time.Time, time.Time) {
	local := now.In(loc)
	daysAhead := (int(weekday) - int(local.Weekday()) + 7) % 7
	dayStart := time.Date(local.Year(), local.Month(), local.Day()+daysAhead, 0, 0, 0, 0, loc)
	return dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC()
}
