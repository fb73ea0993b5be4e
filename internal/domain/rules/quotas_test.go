package rules

import (
	"testing"
	"time"
)

func TestDayKeyUsesUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 23:30 in New York on Feb 8 is already Feb 9 in UTC.
	local := time.Date(2026, 2, 8, 23, 30, 0, 0, loc)
	got := DayKey(local)
	want := "2026-02-09"
	if got != want {
		t.Fatalf("unexpected day key: got %s want %s", got, want)
	}
}

func TestNextResetAtIsNextUTCMidnight(t *testing.T) {
	now := time.Date(2026, 2, 8, 21, 30, 0, 0, time.UTC)
	got := NextResetAt(now)
	want := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected reset_at: got %s want %s", got.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestNextResetAtRollsOverMonthEnd(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	got := NextResetAt(now)
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected reset_at: got %s want %s", got.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}
