// Package editor holds the producer-side editing session for one batch:
// a sparse (day, meal type) grid, the four form buffers of the selected day
// and the save/submit workflow against a Store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/calendar"
)

var (
	ErrNothingToSave    = errors.New("add at least one meal before saving")
	ErrDayNotSelectable = errors.New("day is not selectable")
	ErrMonthLocked      = errors.New("year and month of a saved batch cannot change")
	ErrNoBatch          = errors.New("batch has not been saved yet")
)

// Store is the part of the remote batch store the editor talks to.
type Store interface {
	CreateBatch(ctx context.Context, req *batches.BatchRequest) (*batches.BatchDTO, error)
	UpdateBatch(ctx context.Context, batchID int64, req *batches.BatchRequest) (*batches.BatchDTO, error)
	SubmitBatch(ctx context.Context, batchID int64) error
	FetchBatchItems(ctx context.Context, batchID int64) (*batches.BatchDetails, error)
	FetchRejectionReason(ctx context.Context, batchID int64) (*batches.RejectionReasonResponse, error)
}

// Field names one input of a slot form.
type Field string

const (
	FieldDescription Field = "description"
	FieldCalories    Field = "calories"
	FieldProtein     Field = "protein"
	FieldCarbs       Field = "carbs"
	FieldFats        Field = "fats"
)

// SlotForm is the raw text typed for one meal of the selected day.
type SlotForm struct {
	Description string
	Calories    string
	Protein     string
	Carbs       string
	Fats        string
}

func (f SlotForm) empty() bool {
	return strings.TrimSpace(f.Description) == ""
}

// ValidationError carries one message per failing meal type.
type ValidationError struct {
	Day    int
	Fields map[batches.MealType]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, mt := range e.MealTypes() {
		parts = append(parts, fmt.Sprintf("%s: %s", mt, e.Fields[mt]))
	}
	return fmt.Sprintf("day %d: %s", e.Day, strings.Join(parts, "; "))
}

// MealTypes returns the failing meal types in canonical order.
func (e *ValidationError) MealTypes() []batches.MealType {
	out := make([]batches.MealType, 0, len(e.Fields))
	for _, mt := range batches.MealOrder {
		if _, ok := e.Fields[mt]; ok {
			out = append(out, mt)
		}
	}
	return out
}

// Editor is an editing session. It is owned by a single caller and is not
// safe for concurrent use.
type Editor struct {
	store Store
	now   func() time.Time

	consumerID   int64
	year         int
	month        int
	dietaryNotes string

	batchID         int64
	status          batches.Status
	rejectionReason *string

	items    map[batches.SlotKey]batches.ItemInput
	selected int
	forms    map[batches.MealType]*SlotForm
	errs     map[batches.MealType]string
}

// New starts an empty session for a consumer's month. now may be nil.
func New(store Store, consumerID int64, year, month int, now func() time.Time) *Editor {
	if now == nil {
		now = time.Now
	}
	e := &Editor{
		store:      store,
		now:        now,
		consumerID: consumerID,
		year:       year,
		month:      month,
		items:      make(map[batches.SlotKey]batches.ItemInput),
		forms:      make(map[batches.MealType]*SlotForm, len(batches.MealOrder)),
		errs:       make(map[batches.MealType]string),
	}
	e.selected = calendar.DefaultDay(year, month, 1, now())
	e.loadForms()
	return e
}

// Open loads an existing batch for re-editing.
func Open(ctx context.Context, store Store, batchID int64, now func() time.Time) (*Editor, error) {
	details, err := store.FetchBatchItems(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch items: %w", err)
	}
	reason, err := store.FetchRejectionReason(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rejection reason: %w", err)
	}

	b := details.Batch
	e := New(store, b.ConsumerID, b.Year, b.Month, now)
	e.batchID = b.ID
	e.status = b.Status
	if b.DietaryNotes != nil {
		e.dietaryNotes = *b.DietaryNotes
	}
	e.rejectionReason = reason.Reason

	for _, it := range details.Items {
		in := it.ItemInput
		e.items[batches.SlotKey{Day: in.Day, MealType: in.MealType}] = in
	}
	e.loadForms()
	return e, nil
}

func (e *Editor) ConsumerID() int64 { return e.consumerID }
func (e *Editor) Year() int { return e.year }
func (e *Editor) Month() int { return e.month }
func (e *Editor) SelectedDay() int { return e.selected }
func (e *Editor) BatchID() int64 { return e.batchID }
func (e *Editor) Status() batches.Status { return e.status }
func (e *Editor) RejectionReason() *string { return e.rejectionReason }
func (e *Editor) DietaryNotes() string { return e.dietaryNotes }
func (e *Editor) SetDietaryNotes(notes string) { e.dietaryNotes = notes }
func (e *Editor) Len() int { return len(e.items) }
func (e *Editor) Form(mt batches.MealType) SlotForm { return *e.form(mt) }

// SetMonth moves an unsaved session to another month. Items on days the new
// month does not have are dropped.
func (e *Editor) SetMonth(year, month int) error {
	if e.batchID != 0 && (year != e.year || month != e.month) {
		return ErrMonthLocked
	}
	dim := calendar.DaysInMonth(year, month)
	if dim == 0 {
		return fmt.Errorf("invalid month %d-%d", year, month)
	}
	for k := range e.items {
		if k.Day > dim {
			delete(e.items, k)
		}
	}
	e.year, e.month = year, month
	e.selected = calendar.DefaultDay(year, month, e.selected, e.now())
	e.loadForms()
	return nil
}

// SelectDay switches the active day and reloads the four forms from the grid.
// Uncommitted form input of the previous day is discarded.
func (e *Editor) SelectDay(day int) error {
	if !calendar.Selectable(e.year, e.month, day, e.now()) {
		return fmt.Errorf("%w: %d", ErrDayNotSelectable, day)
	}
	e.selected = day
	e.loadForms()
	return nil
}

// UpdateField sets one input of a meal form and clears that meal's error.
func (e *Editor) UpdateField(mt batches.MealType, field Field, value string) error {
	if !mt.Valid() {
		return fmt.Errorf("unknown meal type %q", mt)
	}
	f := e.form(mt)
	switch field {
	case FieldDescription:
		f.Description = value
	case FieldCalories:
		f.Calories = value
	case FieldProtein:
		f.Protein = value
	case FieldCarbs:
		f.Carbs = value
	case FieldFats:
		f.Fats = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	delete(e.errs, mt)
	return nil
}

// SetForm replaces the whole form of one meal.
func (e *Editor) SetForm(mt batches.MealType, f SlotForm) error {
	if !mt.Valid() {
		return fmt.Errorf("unknown meal type %q", mt)
	}
	*e.form(mt) = f
	delete(e.errs, mt)
	return nil
}

// ApplySlot validates one meal of the selected day and writes it into the
// grid, or removes the slot when the description is empty.
func (e *Editor) ApplySlot(mt batches.MealType) error {
	if !mt.Valid() {
		return fmt.Errorf("unknown meal type %q", mt)
	}
	in, remove, err := parseSlot(e.selected, mt, *e.form(mt))
	if err != nil {
		e.errs[mt] = err.Error()
		return &ValidationError{Day: e.selected, Fields: map[batches.MealType]string{mt: err.Error()}}
	}
	delete(e.errs, mt)
	e.put(mt, in, remove)
	return nil
}

// CommitDay applies all four meals of the selected day together. If any of
// them is invalid nothing is written.
func (e *Editor) CommitDay() error {
	type pending struct {
		in     batches.ItemInput
		remove bool
	}
	next := make(map[batches.MealType]pending, len(batches.MealOrder))
	failed := make(map[batches.MealType]string)

	for _, mt := range batches.MealOrder {
		in, remove, err := parseSlot(e.selected, mt, *e.form(mt))
		if err != nil {
			failed[mt] = err.Error()
			continue
		}
		next[mt] = pending{in: in, remove: remove}
	}

	e.errs = failed
	if len(failed) > 0 {
		fields := make(map[batches.MealType]string, len(failed))
		for mt, msg := range failed {
			fields[mt] = msg
		}
		return &ValidationError{Day: e.selected, Fields: fields}
	}

	for _, mt := range batches.MealOrder {
		p := next[mt]
		e.put(mt, p.in, p.remove)
	}
	return nil
}

// ClearDay removes every meal of a day without validation. Past days are
// kept as they are.
func (e *Editor) ClearDay(day int) error {
	if !calendar.Selectable(e.year, e.month, day, e.now()) {
		return fmt.Errorf("%w: %d", ErrDayNotSelectable, day)
	}
	for _, mt := range batches.MealOrder {
		delete(e.items, batches.SlotKey{Day: day, MealType: mt})
	}
	if day == e.selected {
		e.loadForms()
	}
	return nil
}

// HasData reports whether the day holds at least one meal.
func (e *Editor) HasData(day int) bool {
	for _, mt := range batches.MealOrder {
		if _, ok := e.items[batches.SlotKey{Day: day, MealType: mt}]; ok {
			return true
		}
	}
	return false
}

// Errors returns the current per-meal messages.
func (e *Editor) Errors() map[batches.MealType]string {
	out := make(map[batches.MealType]string, len(e.errs))
	for k, v := range e.errs {
		out[k] = v
	}
	return out
}

// Items returns the grid content sorted by day and canonical meal order.
func (e *Editor) Items() []batches.ItemInput {
	items := make([]batches.ItemInput, 0, len(e.items))
	for _, in := range e.items {
		items = append(items, in)
	}
	batches.SortItems(items)
	return items
}

// Calendar groups the current grid the same way stored batches are rendered.
func (e *Editor) Calendar() batches.Calendar {
	return batches.GroupItemsByDay(e.year, e.month, e.Items())
}

// BuildRequest serializes the whole grid, not only the selected day.
func (e *Editor) BuildRequest() *batches.BatchRequest {
	req := &batches.BatchRequest{
		ConsumerID: e.consumerID,
		Year:       e.year,
		Month:      e.month,
		Items:      e.Items(),
	}
	if notes := strings.TrimSpace(e.dietaryNotes); notes != "" {
		req.DietaryNotes = &notes
	}
	return req
}

// Save commits the selected day and sends the full grid: create for a new
// session, replace-all update otherwise. On store failure the grid is kept
// as is so the call can be retried.
func (e *Editor) Save(ctx context.Context) (*batches.BatchDTO, error) {
	if e.batchID != 0 && e.status != "" && !batches.Editable(e.status) {
		return nil, &batches.TransitionError{From: e.status, Event: batches.EventEdit}
	}
	if err := e.CommitDay(); err != nil {
		return nil, err
	}
	if len(e.items) == 0 {
		return nil, ErrNothingToSave
	}

	req := e.BuildRequest()

	var (
		batch *batches.BatchDTO
		err   error
	)
	if e.batchID == 0 {
		batch, err = e.store.CreateBatch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to create batch: %w", err)
		}
	} else {
		batch, err = e.store.UpdateBatch(ctx, e.batchID, req)
		if err != nil {
			return nil, fmt.Errorf("failed to update batch: %w", err)
		}
	}

	e.batchID = batch.ID
	e.status = batch.Status
	return batch, nil
}

// Submit saves and then asks the store to move the batch to SUBMITTED.
func (e *Editor) Submit(ctx context.Context) (*batches.BatchDTO, error) {
	batch, err := e.Save(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.store.SubmitBatch(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("failed to submit batch: %w", err)
	}
	e.status = batches.StatusSubmitted
	e.rejectionReason = nil
	batch.Status = batches.StatusSubmitted
	batch.RejectionReason = nil
	return batch, nil
}

func (e *Editor) put(mt batches.MealType, in batches.ItemInput, remove bool) {
	key := batches.SlotKey{Day: e.selected, MealType: mt}
	if remove {
		delete(e.items, key)
		return
	}
	e.items[key] = in
}

func (e *Editor) form(mt batches.MealType) *SlotForm {
	f, ok := e.forms[mt]
	if !ok {
		f = &SlotForm{}
		e.forms[mt] = f
	}
	return f
}

// loadForms fills the buffers of the selected day from the grid.
func (e *Editor) loadForms() {
	for _, mt := range batches.MealOrder {
		in, ok := e.items[batches.SlotKey{Day: e.selected, MealType: mt}]
		if !ok {
			e.forms[mt] = &SlotForm{}
			continue
		}
		e.forms[mt] = &SlotForm{
			Description: in.Description,
			Calories:    formatNumber(in.Calories),
			Protein:     formatNumber(in.Protein),
			Carbs:       formatNumber(in.Carbs),
			Fats:        formatNumber(in.Fats),
		}
	}
	e.errs = make(map[batches.MealType]string)
}

// parseSlot turns a form into an item. remove is true for an empty description.
func parseSlot(day int, mt batches.MealType, f SlotForm) (batches.ItemInput, bool, error) {
	if f.empty() {
		return batches.ItemInput{}, true, nil
	}
	desc := strings.TrimSpace(f.Description)
	if err := batches.ValidateDescription(desc); err != nil {
		return batches.ItemInput{}, false, err
	}

	in := batches.ItemInput{Day: day, MealType: mt, Description: desc}
	for _, n := range []struct {
		raw string
		dst *float64
	}{
		{f.Calories, &in.Calories},
		{f.Protein, &in.Protein},
		{f.Carbs, &in.Carbs},
		{f.Fats, &in.Fats},
	} {
		v, err := parseNumber(n.raw)
		if err != nil {
			return batches.ItemInput{}, false, err
		}
		*n.dst = v
	}
	return in, false, nil
}

// parseNumber: empty input counts as 0.
func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, batches.ErrNegativeNumber
	}
	if v < 0 {
		return 0, batches.ErrNegativeNumber
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
