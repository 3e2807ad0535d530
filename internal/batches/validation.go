package batches

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fdg312/menu-batches/internal/calendar"
)

const (
	DescriptionMinLen     = 5
	DescriptionMaxLen     = 1000
	DeliveryNotesMaxLen   = 500
	DietaryNotesMaxLen    = 1000
	RejectionReasonMaxLen = 1000
)

// User-facing validation messages.
var (
	ErrDescriptionTooShort = errors.New("Description must be at least 5 characters")
	ErrDescriptionTooLong  = errors.New("Description must be 1000 characters or fewer")
	ErrNegativeNumber      = errors.New("Numeric fields must be 0 or greater")
)

// ValidateDescription checks the trimmed length in characters, not bytes.
func ValidateDescription(s string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < DescriptionMinLen {
		return ErrDescriptionTooShort
	}
	if n > DescriptionMaxLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateMacros rejects negative or non-finite values.
func ValidateMacros(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrNegativeNumber
		}
	}
	return nil
}

// ValidateContent checks description and macros of a single item.
func ValidateContent(in ItemInput) error {
	if err := ValidateDescription(in.Description); err != nil {
		return err
	}
	return ValidateMacros(in.Calories, in.Protein, in.Carbs, in.Fats)
}

// Validate checks the whole request against its own year and month.
func (r *BatchRequest) Validate() error {
	if r.ConsumerID <= 0 {
		return fmt.Errorf("consumer_id is required")
	}
	if r.Year < 2000 || r.Year > 2100 {
		return fmt.Errorf("year must be between 2000 and 2100")
	}
	if !calendar.ValidMonth(r.Month) {
		return fmt.Errorf("month must be 1-12")
	}
	if r.DietaryNotes != nil && utf8.RuneCountInString(*r.DietaryNotes) > DietaryNotesMaxLen {
		return fmt.Errorf("dietary_notes must be %d characters or fewer", DietaryNotesMaxLen)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("items is required and must not be empty")
	}

	days := calendar.DaysInMonth(r.Year, r.Month)
	seen := make(map[SlotKey]bool, len(r.Items))
	for i, item := range r.Items {
		if item.Day < 1 || item.Day > days {
			return fmt.Errorf("item[%d]: day must be 1-%d", i, days)
		}
		if !item.MealType.Valid() {
			return fmt.Errorf("item[%d]: invalid meal_type", i)
		}
		key := SlotKey{Day: item.Day, MealType: item.MealType}
		if seen[key] {
			return fmt.Errorf("duplicate (day, meal_type): %d:%s", item.Day, item.MealType)
		}
		seen[key] = true
		if err := ValidateContent(item); err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
	}
	return nil
}

// Normalize trims descriptions in place.
func (r *BatchRequest) Normalize() {
	for i := range r.Items {
		r.Items[i].Description = strings.TrimSpace(r.Items[i].Description)
	}
	if r.DietaryNotes != nil {
		notes := strings.TrimSpace(*r.DietaryNotes)
		if notes == "" {
			r.DietaryNotes = nil
		} else {
			r.DietaryNotes = &notes
		}
	}
}

// ValidateDeliveryNotes enforces the optional notes limit.
func ValidateDeliveryNotes(notes *string, max int) error {
	if notes == nil {
		return nil
	}
	if max <= 0 {
		max = DeliveryNotesMaxLen
	}
	if utf8.RuneCountInString(*notes) > max {
		return fmt.Errorf("delivery notes must be %d characters or fewer", max)
	}
	return nil
}

// ValidateRejectionReason requires a non-blank reason.
func ValidateRejectionReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("rejection reason is required")
	}
	if utf8.RuneCountInString(reason) > RejectionReasonMaxLen {
		return fmt.Errorf("rejection reason must be %d characters or fewer", RejectionReasonMaxLen)
	}
	return nil
}
