// Package planfile reads month plans written in YAML and applies them to an
// editor session, the same way a producer would fill the day grid by hand.
//
//	consumer_id: 42
//	year: 2026
//	month: 11
//	dietary_notes: no peanuts
//	days:
//	  - day: 3
//	    breakfast: {description: Oatmeal, calories: 320}
//	    dinner: {description: Baked cod, protein: 35}
//	  - day: 4
//	    clear: true
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/calendar"
	"github.com/fdg312/menu-batches/internal/editor"
)

var ErrEmptyPlan = errors.New("plan has no days")

// Meal is one slot. An empty description removes the slot.
type Meal struct {
	Description string  `yaml:"description"`
	Calories    float64 `yaml:"calories,omitempty"`
	Protein     float64 `yaml:"protein,omitempty"`
	Carbs       float64 `yaml:"carbs,omitempty"`
	Fats        float64 `yaml:"fats,omitempty"`
}

// Day lists the meals to set. Meals left out keep their stored value unless
// Clear is set.
type Day struct {
	Day       int   `yaml:"day"`
	Clear     bool  `yaml:"clear,omitempty"`
	Breakfast *Meal `yaml:"breakfast,omitempty"`
	Snack     *Meal `yaml:"snack,omitempty"`
	Lunch     *Meal `yaml:"lunch,omitempty"`
	Dinner    *Meal `yaml:"dinner,omitempty"`
}

func (d Day) meals() map[batches.MealType]*Meal {
	return map[batches.MealType]*Meal{
		batches.MealBreakfast: d.Breakfast,
		batches.MealSnack:     d.Snack,
		batches.MealLunch:     d.Lunch,
		batches.MealDinner:    d.Dinner,
	}
}

type Plan struct {
	BatchID      int64   `yaml:"batch_id,omitempty"`
	ConsumerID   int64   `yaml:"consumer_id"`
	Year         int     `yaml:"year"`
	Month        int     `yaml:"month"`
	DietaryNotes *string `yaml:"dietary_notes,omitempty"`
	Days         []Day   `yaml:"days"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Decode parses a plan. Unknown keys are rejected so typos do not get lost.
func Decode(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPlan
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the header and day numbers. Meal content is checked by the
// editor when the plan is applied.
func (p *Plan) Validate() error {
	if p.BatchID == 0 && p.ConsumerID <= 0 {
		return fmt.Errorf("consumer_id is required")
	}
	if !calendar.ValidMonth(p.Month) || p.Year < 1 {
		return fmt.Errorf("invalid year/month %d-%d", p.Year, p.Month)
	}
	if len(p.Days) == 0 {
		return ErrEmptyPlan
	}

	seen := make(map[int]bool, len(p.Days))
	for _, d := range p.Days {
		if !calendar.ValidDay(p.Year, p.Month, d.Day) {
			return fmt.Errorf("day %d does not exist in %04d-%02d", d.Day, p.Year, p.Month)
		}
		if seen[d.Day] {
			return fmt.Errorf("day %d is listed twice", d.Day)
		}
		seen[d.Day] = true
	}
	return nil
}

// Apply writes the plan into the session day by day. It stops at the first
// day the editor refuses; days before it stay applied.
func (p *Plan) Apply(ed *editor.Editor) error {
	if ed.Year() != p.Year || ed.Month() != p.Month {
		if err := ed.SetMonth(p.Year, p.Month); err != nil {
			return err
		}
	}
	if p.DietaryNotes != nil {
		ed.SetDietaryNotes(*p.DietaryNotes)
	}

	for _, d := range p.Days {
		if err := ed.SelectDay(d.Day); err != nil {
			return err
		}
		if d.Clear {
			if err := ed.ClearDay(d.Day); err != nil {
				return err
			}
		}
		meals := d.meals()
		for _, mt := range batches.MealOrder {
			m := meals[mt]
			if m == nil {
				continue
			}
			if err := ed.SetForm(mt, m.form()); err != nil {
				return err
			}
		}
		if err := ed.CommitDay(); err != nil {
			return fmt.Errorf("day %d: %w", d.Day, err)
		}
	}
	return nil
}

func (m Meal) form() editor.SlotForm {
	return editor.SlotForm{
		Description: m.Description,
		Calories:    amount(m.Calories),
		Protein:     amount(m.Protein),
		Carbs:       amount(m.Carbs),
		Fats:        amount(m.Fats),
	}
}

func amount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FromBatch builds a plan that reproduces a stored batch.
func FromBatch(b batches.BatchDTO, items []batches.ItemInput) *Plan {
	p := &Plan{
		BatchID:      b.ID,
		ConsumerID:   b.ConsumerID,
		Year:         b.Year,
		Month:        b.Month,
		DietaryNotes: b.DietaryNotes,
	}

	cal := batches.GroupItemsByDay(b.Year, b.Month, items)
	for _, dg := range cal.Days {
		d := Day{Day: dg.Day}
		for _, it := range dg.Items {
			m := &Meal{
				Description: strings.TrimSpace(it.Description),
				Calories:    it.Calories,
				Protein:     it.Protein,
				Carbs:       it.Carbs,
				Fats:        it.Fats,
			}
			switch it.MealType {
			case batches.MealBreakfast:
				d.Breakfast = m
			case batches.MealSnack:
				d.Snack = m
			case batches.MealLunch:
				d.Lunch = m
			case batches.MealDinner:
				d.Dinner = m
			}
		}
		p.Days = append(p.Days, d)
	}
	return p
}

// Marshal renders the plan as YAML with two-space indentation.
func (p *Plan) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
