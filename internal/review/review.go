// Package review is the consumer side of a submitted batch: it renders the
// batch as a calendar and sends approve or reject decisions.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fdg312/menu-batches/internal/batches"
)

// ErrNotApprovable is returned without any store call when the cached
// status is outside SUBMITTED, READY and PENDING.
var ErrNotApprovable = errors.New("batch is not awaiting approval")

// Store is the part of the remote batch store used by a reviewer.
type Store interface {
	FetchBatchItems(ctx context.Context, batchID int64) (*batches.BatchDetails, error)
	ApproveBatch(ctx context.Context, req *batches.ApproveRequest) error
	RejectBatch(ctx context.Context, batchID int64, reason string) error
}

// ValidationError is a field-scoped input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Review holds one batch as last seen by the consumer.
type Review struct {
	store            Store
	batch            batches.BatchDTO
	items            []batches.ItemInput
	deliveryNotesMax int
}

// Load fetches the batch and its items.
func Load(ctx context.Context, store Store, batchID int64) (*Review, error) {
	details, err := store.FetchBatchItems(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch: %w", err)
	}
	return FromDetails(store, details), nil
}

// FromDetails wraps already fetched details.
func FromDetails(store Store, details *batches.BatchDetails) *Review {
	return &Review{
		store:            store,
		batch:            details.Batch,
		items:            batches.Inputs(details.Items),
		deliveryNotesMax: batches.DeliveryNotesMaxLen,
	}
}

func (r *Review) Batch() batches.BatchDTO { return r.batch }

func (r *Review) Status() batches.Status { return r.batch.Status }

// CanApprove is advisory: the store re-checks the status.
func (r *Review) CanApprove() bool {
	return batches.CanApprove(r.batch.Status)
}

// Calendar groups the items for display; out-of-month days are dropped.
func (r *Review) Calendar() batches.Calendar {
	return batches.GroupItemsByDay(r.batch.Year, r.batch.Month, r.items)
}

// Approve sends the approval. Empty notes are sent as absent.
func (r *Review) Approve(ctx context.Context, deliveryNotes string) error {
	if !r.CanApprove() {
		return ErrNotApprovable
	}
	var notes *string
	if trimmed := strings.TrimSpace(deliveryNotes); trimmed != "" {
		notes = &trimmed
	}
	if err := batches.ValidateDeliveryNotes(notes, r.deliveryNotesMax); err != nil {
		return &ValidationError{Field: "delivery_notes", Message: err.Error()}
	}

	req := &batches.ApproveRequest{BatchID: r.batch.ID, DeliveryNotes: notes}
	if err := r.store.ApproveBatch(ctx, req); err != nil {
		return fmt.Errorf("failed to approve batch: %w", err)
	}
	r.batch.Status = batches.StatusApproved
	r.batch.DeliveryNotes = notes
	return nil
}

// Reject sends the rejection with a mandatory reason.
func (r *Review) Reject(ctx context.Context, reason string) error {
	if !r.CanApprove() {
		return ErrNotApprovable
	}
	if err := batches.ValidateRejectionReason(reason); err != nil {
		return &ValidationError{Field: "reason", Message: err.Error()}
	}
	reason = strings.TrimSpace(reason)

	if err := r.store.RejectBatch(ctx, r.batch.ID, reason); err != nil {
		return fmt.Errorf("failed to reject batch: %w", err)
	}
	r.batch.Status = batches.StatusRejected
	r.batch.RejectionReason = &reason
	return nil
}

// Refresh reloads the batch, e.g. after the store reported a stale status.
func (r *Review) Refresh(ctx context.Context) error {
	details, err := r.store.FetchBatchItems(ctx, r.batch.ID)
	if err != nil {
		return fmt.Errorf("failed to refresh batch: %w", err)
	}
	r.batch = details.Batch
	r.items = batches.Inputs(details.Items)
	return nil
}
