// Package render turns batch calendars into terminal text.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fdg312/menu-batches/internal/batches"
)

type Styles struct {
	Title   lipgloss.Style
	Day     lipgloss.Style
	Meal    lipgloss.Style
	Empty   lipgloss.Style
	Total   lipgloss.Style
	Box     lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
	Status  map[batches.Status]lipgloss.Style
}

func DefaultStyles() Styles {
	badge := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		Day:     lipgloss.NewStyle().Bold(true),
		Meal:    lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("#AAAAAA")),
		Empty:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#666666")),
		Total:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1),
		Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		Removed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		Status: map[batches.Status]lipgloss.Style{
			batches.StatusDraft:     badge("#AAAAAA"),
			batches.StatusSubmitted: badge("#5B8DEF"),
			batches.StatusPending:   badge("#D29922"),
			batches.StatusPreparing: badge("#D29922"),
			batches.StatusReady:     badge("#3FB950"),
			batches.StatusApproved:  badge("#3FB950"),
			batches.StatusRejected:  badge("#FF6B6B"),
			batches.StatusCancelled: badge("#888888"),
		},
	}
}

// PlainStyles renders without colors or borders (pipes, tests).
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Day: plain, Meal: plain.Width(10), Empty: plain,
		Total: plain, Box: plain, Added: plain, Removed: plain,
	}
}

// StatusBadge renders a batch status.
func StatusBadge(s batches.Status, st Styles) string {
	style, ok := st.Status[s]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return style.Render(string(s))
}

// Header is the one-line batch summary.
func Header(b batches.BatchDTO, cal batches.Calendar, st Styles) string {
	month := time.Date(cal.Year, time.Month(cal.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	line := fmt.Sprintf("Batch #%d  consumer %d  %s  ", b.ID, b.ConsumerID, month) + StatusBadge(b.Status, st)
	summary := fmt.Sprintf("%d days planned, %d meals, %s kcal", cal.Summary.DaysWithItems, cal.Summary.TotalItems, amount(cal.Summary.TotalCalories))

	parts := []string{st.Title.Render(line), st.Total.Render(summary)}
	if b.DietaryNotes != nil {
		parts = append(parts, "Notes: "+*b.DietaryNotes)
	}
	if b.RejectionReason != nil {
		parts = append(parts, st.Removed.Render("Rejected: "+*b.RejectionReason))
	}
	if b.DeliveryNotes != nil {
		parts = append(parts, "Delivery: "+*b.DeliveryNotes)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Calendar renders every planned day with all four slots and its totals.
func Calendar(cal batches.Calendar, st Styles) string {
	if len(cal.Days) == 0 {
		return st.Empty.Render("nothing planned")
	}
	blocks := make([]string, 0, len(cal.Days))
	for _, d := range cal.Days {
		blocks = append(blocks, st.Box.Render(dayBlock(cal, d, st)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func dayBlock(cal batches.Calendar, d batches.DayGroup, st Styles) string {
	date := time.Date(cal.Year, time.Month(cal.Month), d.Day, 0, 0, 0, 0, time.UTC)
	lines := []string{st.Day.Render(date.Format("Mon 02 Jan"))}
	for _, slot := range d.Slots() {
		label := st.Meal.Render(slot.MealType.Label())
		if slot.Item == nil {
			lines = append(lines, label+st.Empty.Render(batches.NoMealPlanned))
			continue
		}
		lines = append(lines, label+slot.Item.Description+"  "+st.Total.Render(macros(*slot.Item)))
	}
	t := d.Totals
	lines = append(lines, st.Total.Render(fmt.Sprintf("total %s kcal  P %s  C %s  F %s",
		amount(t.Calories), amount(t.Protein), amount(t.Carbs), amount(t.Fats))))
	return strings.Join(lines, "\n")
}

// Lines is a stable one-line-per-meal listing, the unit of Diff.
func Lines(cal batches.Calendar) []string {
	var out []string
	for _, d := range cal.Days {
		for _, it := range d.Items {
			out = append(out, fmt.Sprintf("%02d %-9s %s  %s", d.Day, it.MealType, it.Description, macros(it)))
		}
	}
	return out
}

// Diff compares two calendars meal by meal. changed is false when both
// list the same meals.
func Diff(before, after batches.Calendar, st Styles) (text string, changed bool) {
	a := strings.Join(Lines(before), "\n")
	b := strings.Join(Lines(after), "\n")
	if a == b {
		return "", false
	}
	if a != "" {
		a += "\n"
	}
	if b != "" {
		b += "\n"
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out.WriteString(st.Added.Render("+ "+line) + "\n")
			case diffmatchpatch.DiffDelete:
				out.WriteString(st.Removed.Render("- "+line) + "\n")
			default:
				out.WriteString("  " + line + "\n")
			}
		}
	}
	return out.String(), true
}

func macros(it batches.ItemInput) string {
	return fmt.Sprintf("%s kcal P%s C%s F%s", amount(it.Calories), amount(it.Protein), amount(it.Carbs), amount(it.Fats))
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
