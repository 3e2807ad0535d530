package batches

import (
	"sort"

	"github.com/fdg312/menu-batches/internal/calendar"
)

// NoMealPlanned is shown for an empty slot.
const NoMealPlanned = "no meal planned"

// SlotKey is the natural key of an item inside a batch.
type SlotKey struct {
	Day      int
	MealType MealType
}

// Less orders by day, then canonical meal order.
func (k SlotKey) Less(o SlotKey) bool {
	if k.Day != o.Day {
		return k.Day < o.Day
	}
	return k.MealType.Rank() < o.MealType.Rank()
}

type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

func (m *Macros) add(in ItemInput) {
	m.Calories += in.Calories
	m.Protein += in.Protein
	m.Carbs += in.Carbs
	m.Fats += in.Fats
}

type DayGroup struct {
	Day    int         `json:"day"`
	Items  []ItemInput `json:"items"`
	Totals Macros      `json:"totals"`
}

// Slot is a view of one meal type on a day; Item is nil when nothing is planned.
type Slot struct {
	MealType MealType
	Item     *ItemInput
}

func (s Slot) Text() string {
	if s.Item == nil {
		return NoMealPlanned
	}
	return s.Item.Description
}

// Slots returns all four meal types of the day in canonical order.
func (d DayGroup) Slots() []Slot {
	slots := make([]Slot, len(MealOrder))
	for i, mt := range MealOrder {
		slots[i] = Slot{MealType: mt}
		for j := range d.Items {
			if d.Items[j].MealType == mt {
				slots[i].Item = &d.Items[j]
				break
			}
		}
	}
	return slots
}

type Summary struct {
	DaysWithItems int     `json:"days_with_items"`
	TotalItems    int     `json:"total_items"`
	TotalCalories float64 `json:"total_calories"`
}

// Calendar is the rendered view of a batch.
type Calendar struct {
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	DaysInMonth int        `json:"days_in_month"`
	Days        []DayGroup `json:"days"`
	Summary     Summary    `json:"summary"`
}

// Day returns the group for day, if it has items.
func (c Calendar) Day(day int) (DayGroup, bool) {
	for _, d := range c.Days {
		if d.Day == day {
			return d, true
		}
	}
	return DayGroup{}, false
}

// GroupItemsByDay builds the calendar view. Items whose day does not exist
// in the month are dropped. Only days with items are returned, ascending.
// The input slice is not modified.
func GroupItemsByDay(year, month int, items []ItemInput) Calendar {
	days := calendar.DaysInMonth(year, month)
	cal := Calendar{Year: year, Month: month, DaysInMonth: days, Days: []DayGroup{}}

	byDay := make(map[int][]ItemInput)
	for _, it := range items {
		if it.Day < 1 || it.Day > days {
			continue
		}
		byDay[it.Day] = append(byDay[it.Day], it)
	}

	for day, dayItems := range byDay {
		sort.SliceStable(dayItems, func(i, j int) bool {
			return dayItems[i].MealType.Rank() < dayItems[j].MealType.Rank()
		})
		group := DayGroup{Day: day, Items: dayItems}
		for _, it := range dayItems {
			group.Totals.add(it)
		}
		cal.Days = append(cal.Days, group)
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Day < cal.Days[j].Day })

	// summed after sorting so repeated calls give bit-identical totals
	for _, d := range cal.Days {
		cal.Summary.TotalItems += len(d.Items)
		cal.Summary.TotalCalories += d.Totals.Calories
	}
	cal.Summary.DaysWithItems = len(cal.Days)

	return cal
}

// SortItems orders items by day, then canonical meal order.
func SortItems(items []ItemInput) {
	sort.SliceStable(items, func(i, j int) bool {
		a := SlotKey{items[i].Day, items[i].MealType}
		b := SlotKey{items[j].Day, items[j].MealType}
		return a.Less(b)
	})
}
