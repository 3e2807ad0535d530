package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/fdg312/menu-batches/internal/storage"
)

func newBatch(t *testing.T, m *MemoryStorage, consumerID int64) storage.MenuBatch {
	t.Helper()
	b, _, err := m.CreateBatch(context.Background(), storage.BatchCreate{
		ConsumerID: consumerID,
		ProducerID: "producer-1",
		Year:       2025,
		Month:      3,
		Status:     "DRAFT",
	}, []storage.MenuItemUpsert{
		{Day: 2, MealType: "DINNER", Description: "Soup and bread"},
		{Day: 1, MealType: "LUNCH", Description: "Chicken salad", Calories: 450},
		{Day: 1, MealType: "BREAKFAST", Description: "Oatmeal with berries", Calories: 320},
	})
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	return b
}

func TestCreateBatchReusesMonthlyMenu(t *testing.T) {
	m := New()
	first := newBatch(t, m, 7)
	second := newBatch(t, m, 7)
	other := newBatch(t, m, 8)

	if first.MenuID != second.MenuID {
		t.Errorf("expected same menu for same consumer/month, got %d and %d", first.MenuID, second.MenuID)
	}
	if other.MenuID == first.MenuID {
		t.Errorf("expected different menu for another consumer")
	}

	menu, batches, found, err := m.GetMonthlyMenu(context.Background(), 7, 2025, 3)
	if err != nil || !found {
		t.Fatalf("expected monthly menu, found=%t err=%v", found, err)
	}
	if menu.ConsumerID != 7 || len(batches) != 2 {
		t.Errorf("unexpected menu %+v with %d batches", menu, len(batches))
	}
}

func TestListItemsCanonicalOrder(t *testing.T) {
	m := New()
	b := newBatch(t, m, 1)

	items, err := m.ListItems(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}

	want := []string{"1:BREAKFAST", "1:LUNCH", "2:DINNER"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, it := range items {
		got := string(rune('0'+it.Day)) + ":" + it.MealType
		if got != want[i] {
			t.Errorf("item[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestReplaceItemsCompareAndSet(t *testing.T) {
	m := New()
	ctx := context.Background()
	b := newBatch(t, m, 1)

	items := []storage.MenuItemUpsert{{Day: 5, MealType: "SNACK", Description: "Greek yogurt"}}
	if _, _, err := m.ReplaceItems(ctx, b.ID, "SUBMITTED", "DRAFT", nil, items); !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	updated, created, err := m.ReplaceItems(ctx, b.ID, "DRAFT", "DRAFT", nil, items)
	if err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}
	if updated.ItemCount != 1 || len(created) != 1 {
		t.Errorf("expected 1 item after replace, got count=%d created=%d", updated.ItemCount, len(created))
	}

	dup := append(items, storage.MenuItemUpsert{Day: 5, MealType: "SNACK", Description: "Apple slices"})
	if _, _, err := m.ReplaceItems(ctx, b.ID, "DRAFT", "DRAFT", nil, dup); !errors.Is(err, storage.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
}

func TestTransitionStatusFields(t *testing.T) {
	m := New()
	ctx := context.Background()
	b := newBatch(t, m, 1)

	if _, err := m.TransitionStatus(ctx, b.ID, "DRAFT", "SUBMITTED", storage.StatusFields{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	reason := "Too much sugar"
	got, err := m.TransitionStatus(ctx, b.ID, "SUBMITTED", "REJECTED", storage.StatusFields{RejectionReason: &reason})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if got.RejectionReason == nil || *got.RejectionReason != reason {
		t.Fatalf("expected rejection reason to be stored")
	}

	got, err = m.TransitionStatus(ctx, b.ID, "REJECTED", "SUBMITTED", storage.StatusFields{ClearRejectionReason: true})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if got.RejectionReason != nil {
		t.Errorf("expected rejection reason cleared")
	}

	if _, err := m.TransitionStatus(ctx, 999, "DRAFT", "SUBMITTED", storage.StatusFields{}); !errors.Is(err, storage.ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestTransitionStatusRequireItems(t *testing.T) {
	m := New()
	ctx := context.Background()
	b := newBatch(t, m, 1)

	if _, err := m.DeleteItems(ctx, b.ID, "DRAFT", "DRAFT", nil, nil); err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}
	_, err := m.TransitionStatus(ctx, b.ID, "DRAFT", "SUBMITTED", storage.StatusFields{RequireItems: true})
	if !errors.Is(err, storage.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	got, _, _ := m.GetBatch(ctx, b.ID)
	if got.Status != "DRAFT" {
		t.Errorf("status must stay DRAFT, got %s", got.Status)
	}
}

func TestDeleteItemsFilters(t *testing.T) {
	m := New()
	ctx := context.Background()
	b := newBatch(t, m, 1)

	day := 1
	n, err := m.DeleteItems(ctx, b.ID, "DRAFT", "DRAFT", &day, nil)
	if err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	meal := "DINNER"
	n, _ = m.DeleteItems(ctx, b.ID, "DRAFT", "DRAFT", nil, &meal)
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	got, _, _ := m.GetBatch(ctx, b.ID)
	if got.ItemCount != 0 {
		t.Errorf("expected empty batch, got %d items", got.ItemCount)
	}
}

func TestListBatchesPaginationAndCounts(t *testing.T) {
	m := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		newBatch(t, m, int64(i+1))
	}
	b := newBatch(t, m, 1)
	if _, err := m.TransitionStatus(ctx, b.ID, "DRAFT", "SUBMITTED", storage.StatusFields{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	page, total, err := m.ListBatches(ctx, storage.BatchFilter{Limit: 4, Offset: 4})
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if total != 6 || len(page) != 2 {
		t.Errorf("expected total 6 page 2, got total=%d page=%d", total, len(page))
	}

	filtered, total, _ := m.ListBatches(ctx, storage.BatchFilter{ConsumerID: 1, Status: "SUBMITTED"})
	if total != 1 || filtered[0].ID != b.ID {
		t.Errorf("expected only submitted batch for consumer 1, got %+v", filtered)
	}

	counts, _ := m.CountByStatus(ctx, "producer-1")
	if counts["DRAFT"] != 5 || counts["SUBMITTED"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}
