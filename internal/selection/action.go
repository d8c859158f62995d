package selection

import (
	"errors"
	"time"
)

// Kind names a bulk action.
type Kind string

const (
	KindExport  Kind = "export"
	KindArchive Kind = "archive"
	KindDelete  Kind = "delete"
)

// ParseKind validates a bulk action name.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(raw); k {
	case KindExport, KindArchive, KindDelete:
		return k, true
	}
	return "", false
}

// NeedsConfirmation reports whether the action waits for an explicit
// confirmation before it is sent. Export goes straight to in-flight.
func (k Kind) NeedsConfirmation() bool {
	return k != KindExport
}

// Phase is the lifecycle position of one bulk action.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConfirming Phase = "confirming"
	PhaseInFlight   Phase = "in_flight"
)

// Outcome records how the previous run of an action ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

var (
	// ErrBusy is returned when an action is started while confirming or in flight.
	ErrBusy = errors.New("action already in progress")
	// ErrNotConfirming is returned by Confirm and Cancel outside the confirming phase.
	ErrNotConfirming = errors.New("action is not awaiting confirmation")
	// ErrNotInFlight is returned by Complete when nothing was sent.
	ErrNotInFlight = errors.New("action is not in flight")
)

// Machine is the state of one bulk action:
//
//	idle -> confirming -> (cancelled -> idle) | (confirmed -> in_flight -> idle)
//
// Pending holds the ids captured when the action was requested; they are the
// ids the user confirmed and the ones sent to the backend.
type Machine struct {
	Phase       Phase     `json:"phase"`
	Pending     []int64   `json:"pending,omitempty"`
	LastOutcome Outcome   `json:"last_outcome,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Since       time.Time `json:"since,omitempty"`
}

func (m Machine) phase() Phase {
	if m.Phase == "" {
		return PhaseIdle
	}
	return m.Phase
}

// Busy reports whether the action is confirming or in flight.
func (m Machine) Busy() bool {
	return m.phase() != PhaseIdle
}

// Request starts the action for ids.
func (m Machine) Request(kind Kind, ids []int64, now time.Time) (Machine, error) {
	if m.Busy() {
		return m, ErrBusy
	}
	next := Machine{Pending: append([]int64(nil), ids...), Since: now}
	if kind.NeedsConfirmation() {
		next.Phase = PhaseConfirming
	} else {
		next.Phase = PhaseInFlight
	}
	return next, nil
}

// Confirm moves a confirming action in flight.
func (m Machine) Confirm(now time.Time) (Machine, error) {
	if m.phase() != PhaseConfirming {
		return m, ErrNotConfirming
	}
	m.Phase = PhaseInFlight
	m.Since = now
	return m, nil
}

// Cancel abandons a confirming action.
func (m Machine) Cancel() (Machine, error) {
	if m.phase() != PhaseConfirming {
		return m, ErrNotConfirming
	}
	return Machine{Phase: PhaseIdle, LastOutcome: OutcomeCancelled}, nil
}

// Complete returns an in-flight action to idle with the request outcome.
func (m Machine) Complete(err error) (Machine, error) {
	if m.phase() != PhaseInFlight {
		return m, ErrNotInFlight
	}
	next := Machine{Phase: PhaseIdle, LastOutcome: OutcomeSuccess}
	if err != nil {
		next.LastOutcome = OutcomeFailure
		next.LastError = err.Error()
	}
	return next, nil
}

// Expired reports whether the action has been busy longer than limit, which
// happens when the process handling it died before completing.
func (m Machine) Expired(now time.Time, limit time.Duration) bool {
	return m.Busy() && limit > 0 && !m.Since.IsZero() && now.Sub(m.Since) > limit
}

// Actions holds one Machine per kind.
type Actions map[Kind]Machine

// Get returns the machine for kind; absent kinds are idle.
func (a Actions) Get(kind Kind) Machine {
	if m, ok := a[kind]; ok {
		return m
	}
	return Machine{Phase: PhaseIdle}
}

// With returns a copy of a with kind set to m.
func (a Actions) With(kind Kind, m Machine) Actions {
	out := make(Actions, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out[kind] = m
	return out
}
