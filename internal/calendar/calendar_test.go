package calendar

import (
	"testing"
	"time"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2025, 2, 28},
		{1900, 2, 28},
		{2000, 2, 29},
		{2025, 4, 30},
		{2025, 12, 31},
		{2025, 0, 0},
		{2025, 13, 0},
	}

	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestIsPastDayUsesCalendarDays(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2025, 3, 15, 0, 30, 0, 0, loc)

	if IsPastDay(time.Date(2025, 3, 15, 23, 59, 0, 0, loc), now) {
		t.Error("today must not be past")
	}
	if !IsPastDay(time.Date(2025, 3, 14, 23, 59, 0, 0, loc), now) {
		t.Error("yesterday must be past")
	}
	if IsPastDay(time.Date(2025, 3, 16, 0, 0, 0, 0, loc), now) {
		t.Error("tomorrow must not be past")
	}
}

func TestDefaultDay(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name                  string
		year, month, selected int
		want                  int
	}{
		{"current month advances past days", 2025, 3, 1, 15},
		{"current month keeps future selection", 2025, 3, 20, 20},
		{"future month keeps selection", 2025, 4, 10, 10},
		{"future month clamps invalid selection", 2025, 4, 31, 1},
		{"whole month in past", 2025, 2, 10, 1},
		{"invalid month", 2025, 13, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultDay(tt.year, tt.month, tt.selected, now); got != tt.want {
				t.Errorf("DefaultDay = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectable(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	if Selectable(2025, 3, 14, now) {
		t.Error("past day must not be selectable")
	}
	if !Selectable(2025, 3, 15, now) {
		t.Error("today must be selectable")
	}
	if Selectable(2025, 4, 31, now) {
		t.Error("April 31 must not be selectable")
	}
}
