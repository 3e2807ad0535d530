package render

import (
	"strings"
	"testing"

	"github.com/fdg312/menu-batches/internal/batches"
)

func sampleCalendar() batches.Calendar {
	return batches.GroupItemsByDay(2026, 1, []batches.ItemInput{
		{Day: 14, MealType: batches.MealLunch, Description: "Pelmeni", Calories: 550, Protein: 25},
		{Day: 14, MealType: batches.MealBreakfast, Description: "Eggs", Calories: 320},
		{Day: 40, MealType: batches.MealDinner, Description: "Invalid day"},
	})
}

func TestCalendarPlain(t *testing.T) {
	out := Calendar(sampleCalendar(), PlainStyles())

	for _, want := range []string{
		"Wed 14 Jan",
		"Breakfast Eggs",
		"Snack     " + batches.NoMealPlanned,
		"Lunch     Pelmeni  550 kcal P25 C0 F0",
		"Dinner    " + batches.NoMealPlanned,
		"total 870 kcal  P 25  C 0  F 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Invalid day") {
		t.Error("items outside the month must not be rendered")
	}
	// breakfast before snack before lunch
	if strings.Index(out, "Eggs") > strings.Index(out, "Pelmeni") {
		t.Error("meals out of canonical order")
	}
}

func TestCalendarEmpty(t *testing.T) {
	cal := batches.GroupItemsByDay(2026, 2, nil)
	if out := Calendar(cal, PlainStyles()); out != "nothing planned" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestHeader(t *testing.T) {
	reason := "too salty"
	b := batches.BatchDTO{ID: 3, ConsumerID: 42, Status: batches.StatusRejected, RejectionReason: &reason}
	out := Header(b, sampleCalendar(), PlainStyles())

	for _, want := range []string{"Batch #3", "January 2026", "REJECTED", "1 days planned, 2 meals, 870 kcal", "Rejected: too salty"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestDiff(t *testing.T) {
	before := sampleCalendar()
	after := batches.GroupItemsByDay(2026, 1, []batches.ItemInput{
		{Day: 14, MealType: batches.MealBreakfast, Description: "Eggs", Calories: 320},
		{Day: 14, MealType: batches.MealLunch, Description: "Borscht", Calories: 400},
		{Day: 15, MealType: batches.MealSnack, Description: "Kefir", Calories: 120},
	})

	out, changed := Diff(before, after, PlainStyles())
	if !changed {
		t.Fatal("expected a change")
	}
	want := []string{
		"  14 BREAKFAST Eggs  320 kcal P0 C0 F0",
		"- 14 LUNCH     Pelmeni  550 kcal P25 C0 F0",
		"+ 14 LUNCH     Borscht  400 kcal P0 C0 F0",
		"+ 15 SNACK     Kefir  120 kcal P0 C0 F0",
	}
	got := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got:\n%s", len(want), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiffUnchanged(t *testing.T) {
	if out, changed := Diff(sampleCalendar(), sampleCalendar(), PlainStyles()); changed || out != "" {
		t.Fatalf("expected no diff, got %q", out)
	}
}

func TestDiffFromEmpty(t *testing.T) {
	empty := batches.GroupItemsByDay(2026, 1, nil)
	out, changed := Diff(empty, sampleCalendar(), PlainStyles())
	if !changed || strings.Count(out, "+ ") != 2 || strings.Contains(out, "- ") {
		t.Fatalf("expected two additions, got:\n%s", out)
	}
}

func TestStatusBadge(t *testing.T) {
	if got := StatusBadge(batches.StatusApproved, PlainStyles()); got != "APPROVED" {
		t.Errorf("got %q", got)
	}
	if got := StatusBadge(batches.StatusApproved, DefaultStyles()); !strings.Contains(got, "APPROVED") {
		t.Errorf("got %q", got)
	}
}
