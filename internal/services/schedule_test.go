package services

import (
	"errors"
	"testing"
	"time"
)

func TestParseDayOfWeek(t *testing.T) {
	day, weekday, err := parseDayOfWeek("monday")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if day != "Monday" || weekday != time.Monday {
		t.Fatalf("expected canonical Monday, got %q (%v)", day, weekday)
	}

	if _, _, err := parseDayOfWeek("Funday"); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, _, err := parseDayOfWeek(""); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay for empty day, got %v", err)
	}
}

func TestParseStartTime(t *testing.T) {
	start, hour, err := parseStartTime("09:00")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if start != "09:00" || hour != 9 {
		t.Fatalf("expected 09:00/9, got %q/%d", start, hour)
	}

	if _, _, err := parseStartTime("09:30"); !errors.Is(err, ErrInvalidStartTime) {
		t.Fatalf("expected ErrInvalidStartTime for half hour, got %v", err)
	}
	if _, _, err := parseStartTime("25:00"); !errors.Is(err, ErrInvalidStartTime) {
		t.Fatalf("expected ErrInvalidStartTime for bad hour, got %v", err)
	}
	if _, _, err := parseStartTime("nine"); !errors.Is(err, ErrInvalidStartTime) {
		t.Fatalf("expected ErrInvalidStartTime for garbage, got %v", err)
	}
}

func TestNextOccurrenceResolvesForward(t *testing.T) {
	// A Wednesday at noon UTC.
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)

	// Friday 09:00 is two days out.
	at, err := nextOccurrence(now, time.UTC, time.Friday, 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}

	// Wednesday 09:00 already passed today, so it must not roll over; the
	// request fails instead.
	if _, err := nextOccurrence(now, time.UTC, time.Wednesday, 9); !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("expected ErrSlotInPast, got %v", err)
	}

	// Wednesday 15:00 is still ahead today.
	at, err = nextOccurrence(now, time.UTC, time.Wednesday, 15)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want = time.Date(2026, 9, 2, 15, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}

	// Tuesday wraps to next week: six days ahead, never more.
	at, err = nextOccurrence(now, time.UTC, time.Tuesday, 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want = time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}
}

func TestNextOccurrenceUsesOperatingTimezone(t *testing.T) {
	kathmandu, err := time.LoadLocation("Asia/Kathmandu")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	// 02:00 UTC on Wednesday is 07:45 the same day in Kathmandu, so a
	// Wednesday 09:00 slot there is still bookable.
	now := time.Date(2026, 9, 2, 2, 0, 0, 0, time.UTC)
	at, err := nextOccurrence(now, kathmandu, time.Wednesday, 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := time.Date(2026, 9, 2, 9, 0, 0, 0, kathmandu).UTC()
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}
	if at.Location() != time.UTC {
		t.Fatalf("expected UTC instant, got %v", at.Location())
	}
}

func TestOccurrenceWindowCoversWholeDay(t *testing.T) {
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	start, end := occurrenceWindow(now, time.UTC, time.Friday)

	if !start.Equal(time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %v", start)
	}
	if !end.Equal(time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end %v", end)
	}
}
