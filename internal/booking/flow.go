package booking

import (
	"context"
	"sync"

	"stayfinder/internal/backend"
	"stayfinder/pkg/domain"
)

// State tracks one booking interaction on a listing detail view.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating_input"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Flow drives a single booking interaction through
// Idle -> ValidatingInput -> Submitting -> {Succeeded | Failed}.
// Failed permits resubmission with corrected input; Succeeded is
// terminal for the interaction.
type Flow struct {
	svc *Service

	mu      sync.Mutex
	state   State
	booking domain.Booking
	lastErr error
}

func NewFlow(svc *Service) *Flow {
	return &Flow{svc: svc, state: StateIdle}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the created booking once the flow has succeeded.
func (f *Flow) Result() (domain.Booking, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.booking, f.state == StateSucceeded
}

// Err returns the failure from the last attempt, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Submit runs one attempt. A failed attempt leaves the flow open for
// another Submit; once succeeded, further attempts are rejected.
func (f *Flow) Submit(ctx context.Context, roomID, checkIn, checkOut string) (domain.Booking, error) {
	f.mu.Lock()
	switch f.state {
	case StateSucceeded:
		f.mu.Unlock()
		return domain.Booking{}, &backend.ValidationError{Message: "this stay is already booked"}
	case StateValidating, StateSubmitting:
		f.mu.Unlock()
		return domain.Booking{}, &backend.ValidationError{Message: "a booking attempt is already in progress"}
	}
	f.state = StateValidating
	f.mu.Unlock()

	stay, token, err := f.svc.validate(roomID, checkIn, checkOut)
	if err != nil {
		f.fail(err)
		return domain.Booking{}, err
	}

	f.setState(StateSubmitting)
	booking, err := f.svc.submit(ctx, token, stay)
	if err != nil {
		f.fail(err)
		return domain.Booking{}, err
	}

	f.mu.Lock()
	f.state = StateSucceeded
	f.booking = booking
	f.lastErr = nil
	f.mu.Unlock()
	return booking, nil
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.state = StateFailed
	f.lastErr = err
	f.mu.Unlock()
}
