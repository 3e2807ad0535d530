package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fdg312/menu-batches/internal/batches"
)

type fakeStore struct {
	details  *batches.BatchDetails
	approved []*batches.ApproveRequest
	rejected []string
	err      error
}

func (f *fakeStore) FetchBatchItems(ctx context.Context, batchID int64) (*batches.BatchDetails, error) {
	return f.details, nil
}

func (f *fakeStore) ApproveBatch(ctx context.Context, req *batches.ApproveRequest) error {
	if f.err != nil {
		return f.err
	}
	f.approved = append(f.approved, req)
	return nil
}

func (f *fakeStore) RejectBatch(ctx context.Context, batchID int64, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.rejected = append(f.rejected, reason)
	return nil
}

func storeWith(status batches.Status, items ...batches.ItemInput) *fakeStore {
	d := &batches.BatchDetails{
		Batch: batches.BatchDTO{ID: 11, ConsumerID: 4, Year: 2026, Month: 1, Status: status},
	}
	for i, in := range items {
		d.Items = append(d.Items, batches.Item{ID: int64(i + 1), BatchID: 11, ItemInput: in})
	}
	return &fakeStore{details: d}
}

func TestApproveAndRejectOnlyWhenApprovable(t *testing.T) {
	all := []batches.Status{
		batches.StatusDraft, batches.StatusSubmitted, batches.StatusPending, batches.StatusPreparing,
		batches.StatusReady, batches.StatusApproved, batches.StatusRejected, batches.StatusCancelled,
	}
	for _, status := range all {
		t.Run(string(status), func(t *testing.T) {
			store := storeWith(status)
			r, err := Load(context.Background(), store, 11)
			if err != nil {
				t.Fatal(err)
			}

			approveErr := r.Approve(context.Background(), "")
			rejectErr := r.Reject(context.Background(), "not for me")

			if batches.CanApprove(status) {
				if approveErr != nil {
					t.Fatalf("Approve: %v", approveErr)
				}
				if len(store.approved) != 1 {
					t.Fatalf("expected approve request")
				}
				// after approval the cached status is APPROVED, reject is refused
				if !errors.Is(rejectErr, ErrNotApprovable) {
					t.Fatalf("expected ErrNotApprovable after approval, got %v", rejectErr)
				}
				return
			}
			if !errors.Is(approveErr, ErrNotApprovable) || !errors.Is(rejectErr, ErrNotApprovable) {
				t.Fatalf("expected ErrNotApprovable, got %v / %v", approveErr, rejectErr)
			}
			if len(store.approved)+len(store.rejected) != 0 {
				t.Fatal("no request may be sent")
			}
			if r.Status() != status {
				t.Errorf("status changed to %s", r.Status())
			}
		})
	}
}

func TestRejectedBatchCannotBeApproved(t *testing.T) {
	store := storeWith(batches.StatusRejected)
	r := FromDetails(store, store.details)

	if r.CanApprove() {
		t.Fatal("REJECTED must not be approvable")
	}
	if err := r.Approve(context.Background(), "leave at the door"); !errors.Is(err, ErrNotApprovable) {
		t.Fatalf("expected ErrNotApprovable, got %v", err)
	}
	if len(store.approved) != 0 || r.Status() != batches.StatusRejected {
		t.Fatal("approve must be a no-op")
	}
}

func TestRejectRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\n\t"} {
		store := storeWith(batches.StatusSubmitted)
		r := FromDetails(store, store.details)

		err := r.Reject(context.Background(), reason)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "reason" {
			t.Fatalf("reason %q: expected reason ValidationError, got %v", reason, err)
		}
		if len(store.rejected) != 0 {
			t.Fatalf("reason %q: request must not be sent", reason)
		}
	}
}

func TestRejectStoresTrimmedReason(t *testing.T) {
	store := storeWith(batches.StatusReady)
	r := FromDetails(store, store.details)

	if err := r.Reject(context.Background(), "  too spicy  "); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if store.rejected[0] != "too spicy" {
		t.Errorf("expected trimmed reason, got %q", store.rejected[0])
	}
	if r.Status() != batches.StatusRejected || *r.Batch().RejectionReason != "too spicy" {
		t.Errorf("unexpected state %+v", r.Batch())
	}
}

func TestApproveDeliveryNotesLimit(t *testing.T) {
	store := storeWith(batches.StatusPending)
	r := FromDetails(store, store.details)

	err := r.Approve(context.Background(), strings.Repeat("a", 501))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "delivery_notes" {
		t.Fatalf("expected delivery_notes ValidationError, got %v", err)
	}
	if len(store.approved) != 0 {
		t.Fatal("request must not be sent")
	}

	if err := r.Approve(context.Background(), strings.Repeat("б", 500)); err != nil {
		t.Fatalf("500 characters must pass: %v", err)
	}
	if store.approved[0].DeliveryNotes == nil || store.approved[0].BatchID != 11 {
		t.Errorf("unexpected request %+v", store.approved[0])
	}
}

func TestStaleStatusIsRecoverable(t *testing.T) {
	stale := errors.New("409 invalid_transition")
	store := storeWith(batches.StatusSubmitted)
	store.err = stale
	r := FromDetails(store, store.details)

	if err := r.Approve(context.Background(), ""); !errors.Is(err, stale) {
		t.Fatalf("expected store error, got %v", err)
	}
	if r.Status() != batches.StatusSubmitted {
		t.Errorf("cached status must not change on failure, got %s", r.Status())
	}

	store.err = nil
	store.details.Batch.Status = batches.StatusApproved
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.CanApprove() {
		t.Error("expected refreshed status to disable actions")
	}
}

func TestCalendarDropsOutOfMonthDays(t *testing.T) {
	store := storeWith(batches.StatusSubmitted,
		batches.ItemInput{Day: 1, MealType: batches.MealLunch, Description: "Pasta primavera", Calories: 550},
		batches.ItemInput{Day: 2, MealType: batches.MealBreakfast, Description: "Omelette", Calories: 320},
		batches.ItemInput{Day: 40, MealType: batches.MealDinner, Description: "Ghost dinner", Calories: 999},
	)
	r := FromDetails(store, store.details)

	cal := r.Calendar()
	if len(cal.Days) != 2 || cal.Days[0].Day != 1 || cal.Days[1].Day != 2 {
		t.Fatalf("expected days 1 and 2, got %+v", cal.Days)
	}
	if cal.Summary.TotalItems != 2 || cal.Summary.TotalCalories != 870 {
		t.Errorf("unexpected summary %+v", cal.Summary)
	}
}
