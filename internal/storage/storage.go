package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBatchNotFound is returned when a batch id does not exist.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrStatusConflict is returned when the stored status differs from the expected one.
	ErrStatusConflict = errors.New("batch status changed")
	// ErrDuplicateItem is returned when two items share (day, meal_type).
	ErrDuplicateItem = errors.New("duplicate menu item")
	// ErrNoItems is returned by a transition that requires at least one item.
	ErrNoItems = errors.New("batch has no items")
)

// MonthlyMenu — контейнер батчей потребителя за месяц
type MonthlyMenu struct {
	ID           int64
	ConsumerID   int64
	Year         int
	Month        int
	DietaryNotes *string
	CreatedAt    time.Time
}

type MenuBatch struct {
	ID              int64
	MenuID          int64
	ConsumerID      int64
	ProducerID      string
	Year            int
	Month           int
	DietaryNotes    *string
	Status          string
	RejectionReason *string
	DeliveryNotes   *string
	ItemCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type MenuItem struct {
	ID          int64
	BatchID     int64
	Day         int
	MealType    string
	Description string
	Calories    float64
	Protein     float64
	Carbs       float64
	Fats        float64
	CreatedAt   time.Time
}

type MenuItemUpsert struct {
	Day         int
	MealType    string
	Description string
	Calories    float64
	Protein     float64
	Carbs       float64
	Fats        float64
}

type BatchCreate struct {
	ConsumerID   int64
	ProducerID   string
	Year         int
	Month        int
	DietaryNotes *string
	Status       string
}

// StatusFields are written together with a status change.
type StatusFields struct {
	RejectionReason      *string
	DeliveryNotes        *string
	ClearRejectionReason bool
	// RequireItems makes the transition fail with ErrNoItems on an empty batch.
	RequireItems bool
}

type BatchFilter struct {
	ProducerID string // empty = any
	ConsumerID int64  // 0 = any
	Status     string // empty = any
	Limit      int
	Offset     int
}

// BatchesStorage manages monthly menus, batches and items.
// Every mutation of an existing batch is compare-and-set on its status:
// when the stored status is not `from`, ErrStatusConflict is returned and nothing changes.
type BatchesStorage interface {
	// CreateBatch creates the batch and, if missing, the monthly menu it belongs to.
	CreateBatch(ctx context.Context, b BatchCreate, items []MenuItemUpsert) (MenuBatch, []MenuItem, error)

	GetBatch(ctx context.Context, batchID int64) (MenuBatch, bool, error)

	// ListItems returns items ordered by day and canonical meal order.
	ListItems(ctx context.Context, batchID int64) ([]MenuItem, error)

	// ReplaceItems swaps all items of the batch in one step.
	ReplaceItems(ctx context.Context, batchID int64, from, to string, dietaryNotes *string, items []MenuItemUpsert) (MenuBatch, []MenuItem, error)

	TransitionStatus(ctx context.Context, batchID int64, from, to string, fields StatusFields) (MenuBatch, error)

	// DeleteItems removes items of one day and/or one meal type; nil filters match all.
	DeleteItems(ctx context.Context, batchID int64, from, to string, day *int, mealType *string) (int, error)

	GetMonthlyMenu(ctx context.Context, consumerID int64, year, month int) (MonthlyMenu, []MenuBatch, bool, error)

	ListBatches(ctx context.Context, filter BatchFilter) ([]MenuBatch, int, error)

	// CountByStatus counts batches per status; empty producerID counts all.
	CountByStatus(ctx context.Context, producerID string) (map[string]int, error)
}

// Storage aggregates all storage concerns of the service.
type Storage interface {
	BatchesStorage
	Close() error
}

// MealRank orders meal types canonically: BREAKFAST, SNACK, LUNCH, DINNER.
func MealRank(mealType string) int {
	switch mealType {
	case "BREAKFAST":
		return 0
	case "SNACK":
		return 1
	case "LUNCH":
		return 2
	case "DINNER":
		return 3
	}
	return 4
}
