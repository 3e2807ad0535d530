package batches

import (
	"errors"
	"fmt"
)

// Event drives a batch from one status to another.
type Event string

const (
	EventEdit    Event = "edit"
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"

	// fulfillment side, operator only
	EventQueue   Event = "queue"
	EventPrepare Event = "prepare"
	EventReady   Event = "ready"
	EventCancel  Event = "cancel"
)

var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError reports an event that is not allowed from the current status.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s batch in status %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

type transitionKey struct {
	from  Status
	event Event
}

var transitions = map[transitionKey]Status{
	{StatusDraft, EventEdit}:    StatusDraft,
	{StatusRejected, EventEdit}: StatusDraft,

	{StatusDraft, EventSubmit}:    StatusSubmitted,
	{StatusRejected, EventSubmit}: StatusSubmitted,

	{StatusSubmitted, EventApprove}: StatusApproved,
	{StatusPending, EventApprove}:   StatusApproved,
	{StatusReady, EventApprove}:     StatusApproved,

	{StatusSubmitted, EventReject}: StatusRejected,
	{StatusPending, EventReject}:   StatusRejected,
	{StatusReady, EventReject}:     StatusRejected,

	{StatusSubmitted, EventQueue}: StatusPending,
	{StatusPending, EventPrepare}: StatusPreparing,
	{StatusPreparing, EventReady}: StatusReady,

	{StatusDraft, EventCancel}:     StatusCancelled,
	{StatusSubmitted, EventCancel}: StatusCancelled,
	{StatusPending, EventCancel}:   StatusCancelled,
	{StatusPreparing, EventCancel}: StatusCancelled,
	{StatusReady, EventCancel}:     StatusCancelled,
	{StatusRejected, EventCancel}:  StatusCancelled,
}

// Apply returns the status reached by event from, or a *TransitionError.
func Apply(from Status, event Event) (Status, error) {
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, &TransitionError{From: from, Event: event}
	}
	return to, nil
}

// Allowed reports whether event is legal from status.
func Allowed(from Status, event Event) bool {
	_, ok := transitions[transitionKey{from, event}]
	return ok
}

// CanApprove is the consumer-side guard for approve and reject.
func CanApprove(s Status) bool {
	return s == StatusSubmitted || s == StatusReady || s == StatusPending
}

// Editable reports whether the producer may change items.
func Editable(s Status) bool {
	return Allowed(s, EventEdit)
}

func Terminal(s Status) bool {
	return s == StatusApproved || s == StatusCancelled
}

// OperatorEvent reports whether e belongs to the fulfillment side.
func OperatorEvent(e Event) bool {
	switch e {
	case EventQueue, EventPrepare, EventReady, EventCancel:
		return true
	}
	return false
}
