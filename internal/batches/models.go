package batches

import (
	"fmt"
	"strings"
	"time"
)

// MealType is one of the four daily slots.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
	MealSnack     MealType = "SNACK"
)

// MealOrder is the canonical slot order used for editing, serialization and rendering.
var MealOrder = []MealType{MealBreakfast, MealSnack, MealLunch, MealDinner}

func (m MealType) Valid() bool {
	return m.Rank() >= 0
}

// Rank returns the position of m in MealOrder, -1 if unknown.
func (m MealType) Rank() int {
	for i, mt := range MealOrder {
		if mt == m {
			return i
		}
	}
	return -1
}

func (m MealType) Label() string {
	switch m {
	case MealBreakfast:
		return "Breakfast"
	case MealSnack:
		return "Snack"
	case MealLunch:
		return "Lunch"
	case MealDinner:
		return "Dinner"
	}
	return string(m)
}

// ParseMealType accepts any letter case ("breakfast", "Breakfast").
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToUpper(strings.TrimSpace(s)))
	if !mt.Valid() {
		return "", fmt.Errorf("unknown meal type %q", s)
	}
	return mt, nil
}

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusPending, StatusPreparing,
	StatusReady, StatusApproved, StatusRejected, StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ItemInput is one planned meal as sent by the editor.
type ItemInput struct {
	Day         int      `json:"day" yaml:"day"`
	MealType    MealType `json:"meal_type" yaml:"meal_type"`
	Description string   `json:"description" yaml:"description"`
	Calories    float64  `json:"calories" yaml:"calories"`
	Protein     float64  `json:"protein" yaml:"protein"`
	Carbs       float64  `json:"carbs" yaml:"carbs"`
	Fats        float64  `json:"fats" yaml:"fats"`
}

// Item is a stored menu item.
type Item struct {
	ID      int64 `json:"id"`
	BatchID int64 `json:"batch_id"`
	ItemInput
}

// Inputs strips storage identity from items.
func Inputs(items []Item) []ItemInput {
	out := make([]ItemInput, len(items))
	for i, it := range items {
		out[i] = it.ItemInput
	}
	return out
}

// BatchRequest is the full-replacement payload for create and update.
type BatchRequest struct {
	ConsumerID   int64       `json:"consumer_id"`
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	DietaryNotes *string     `json:"dietary_notes,omitempty"`
	Items        []ItemInput `json:"items"`
}

type BatchDTO struct {
	ID              int64     `json:"id"`
	MenuID          int64     `json:"menu_id"`
	ConsumerID      int64     `json:"consumer_id"`
	ProducerID      string    `json:"producer_id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	DietaryNotes    *string   `json:"dietary_notes,omitempty"`
	Status          Status    `json:"status"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	DeliveryNotes   *string   `json:"delivery_notes,omitempty"`
	ItemCount       int       `json:"item_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type BatchDetails struct {
	Batch BatchDTO `json:"batch"`
	Items []Item   `json:"items"`
}

type RejectionReasonResponse struct {
	BatchID int64   `json:"batch_id"`
	Status  Status  `json:"status"`
	Reason  *string `json:"reason"`
}

type ApproveRequest struct {
	BatchID       int64   `json:"batch_id"`
	DeliveryNotes *string `json:"delivery_notes,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type EventRequest struct {
	Event Event `json:"event"`
}

type MenuBatchDTO struct {
	BatchID int64  `json:"batch_id"`
	Status  Status `json:"status"`
	Items   []Item `json:"items"`
}

type MonthlyMenuDTO struct {
	ID           int64          `json:"id"`
	ConsumerID   int64          `json:"consumer_id"`
	Year         int            `json:"year"`
	Month        int            `json:"month"`
	DietaryNotes *string        `json:"dietary_notes,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Batches      []MenuBatchDTO `json:"batches"`
}

type GetMonthlyMenuResponse struct {
	Menu *MonthlyMenuDTO `json:"menu"`
}

type ListBatchesResponse struct {
	Batches []BatchDTO `json:"batches"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

type MyBatchesResponse struct {
	Batches []BatchDetails `json:"batches"`
}

// StatsResponse holds the producer dashboard counters.
type StatsResponse struct {
	Total    int            `json:"total"`
	Draft    int            `json:"draft"`
	Pending  int            `json:"pending"`
	Active   int            `json:"active"`
	Rejected int            `json:"rejected"`
	ByStatus map[Status]int `json:"by_status"`
}

type DeleteContentResponse struct {
	Deleted int `json:"deleted"`
}

type ExportResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
