package batches

import (
	"errors"
	"testing"
)

func TestApplyTable(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
		want  Status
	}{
		{StatusDraft, EventEdit, StatusDraft},
		{StatusRejected, EventEdit, StatusDraft},
		{StatusDraft, EventSubmit, StatusSubmitted},
		{StatusRejected, EventSubmit, StatusSubmitted},
		{StatusSubmitted, EventApprove, StatusApproved},
		{StatusPending, EventApprove, StatusApproved},
		{StatusReady, EventApprove, StatusApproved},
		{StatusSubmitted, EventReject, StatusRejected},
		{StatusReady, EventReject, StatusRejected},
		{StatusSubmitted, EventQueue, StatusPending},
		{StatusPending, EventPrepare, StatusPreparing},
		{StatusPreparing, EventReady, StatusReady},
		{StatusPreparing, EventCancel, StatusCancelled},
	}

	for _, tt := range tests {
		got, err := Apply(tt.from, tt.event)
		if err != nil {
			t.Errorf("Apply(%s, %s) unexpected error: %v", tt.from, tt.event, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Apply(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
		}
	}
}

func TestApplyRejectsIllegalEvents(t *testing.T) {
	tests := []struct {
		from  Status
		event Event
	}{
		{StatusDraft, EventApprove},
		{StatusDraft, EventReject},
		{StatusPreparing, EventApprove},
		{StatusApproved, EventEdit},
		{StatusApproved, EventCancel},
		{StatusCancelled, EventSubmit},
		{StatusSubmitted, EventSubmit},
		{StatusSubmitted, EventEdit},
		{StatusRejected, EventApprove},
	}

	for _, tt := range tests {
		got, err := Apply(tt.from, tt.event)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Apply(%s, %s) expected ErrInvalidTransition, got %v", tt.from, tt.event, err)
		}
		var trErr *TransitionError
		if !errors.As(err, &trErr) || trErr.From != tt.from || trErr.Event != tt.event {
			t.Errorf("expected TransitionError for %s/%s, got %v", tt.from, tt.event, err)
		}
		if got != tt.from {
			t.Errorf("status must stay %s, got %s", tt.from, got)
		}
	}
}

func TestCanApprove(t *testing.T) {
	allowed := map[Status]bool{StatusSubmitted: true, StatusReady: true, StatusPending: true}
	for _, st := range AllStatuses {
		if CanApprove(st) != allowed[st] {
			t.Errorf("CanApprove(%s) = %t, want %t", st, CanApprove(st), allowed[st])
		}
		// the guard and the table agree
		if CanApprove(st) != Allowed(st, EventApprove) || CanApprove(st) != Allowed(st, EventReject) {
			t.Errorf("CanApprove(%s) disagrees with transition table", st)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	events := []Event{EventEdit, EventSubmit, EventApprove, EventReject, EventQueue, EventPrepare, EventReady, EventCancel}
	for _, st := range AllStatuses {
		if !Terminal(st) {
			continue
		}
		for _, ev := range events {
			if Allowed(st, ev) {
				t.Errorf("terminal status %s allows %s", st, ev)
			}
		}
	}
}

func TestEditable(t *testing.T) {
	for _, st := range AllStatuses {
		want := st == StatusDraft || st == StatusRejected
		if Editable(st) != want {
			t.Errorf("Editable(%s) = %t, want %t", st, Editable(st), want)
		}
	}
}
