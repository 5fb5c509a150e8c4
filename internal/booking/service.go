// Package booking implements the booking flow: derived stay pricing,
// local validation before any network call, submission, and history.
package booking

import (
	"context"
	"math"
	"time"

	"stayfinder/internal/backend"
	"stayfinder/internal/querycache"
	"stayfinder/internal/session"
	"stayfinder/pkg/domain"
)

// DateLayout is the calendar-date wire format for check-in/check-out.
const DateLayout = "2006-01-02"

// StayNights returns the number of whole nights between two dates:
// zero when checkOut is not after checkIn, otherwise the day
// difference rounded up.
func StayNights(checkIn, checkOut time.Time) int {
	diff := checkOut.Sub(checkIn)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// Total is the stay price for nights at the given nightly rate.
func Total(nights int, nightlyPrice float64) float64 {
	return float64(nights) * nightlyPrice
}

// Stay is a validated booking request.
type Stay struct {
	RoomID   string
	CheckIn  time.Time
	CheckOut time.Time
	Nights   int
}

type Service struct {
	api      *backend.Client
	cache    *querycache.Cache
	sessions *session.Service
}

func New(api *backend.Client, cache *querycache.Cache, sessions *session.Service) *Service {
	return &Service{api: api, cache: cache, sessions: sessions}
}

// validate enforces the local preconditions, each with its own
// user-facing message, and resolves the session token. No network
// calls happen here.
func (s *Service) validate(roomID, checkIn, checkOut string) (Stay, string, error) {
	if checkIn == "" || checkOut == "" {
		return Stay{}, "", &backend.ValidationError{Message: "check-in and check-out dates are required"}
	}
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return Stay{}, "", &backend.ValidationError{Message: "check-in and check-out must be valid dates"}
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return Stay{}, "", &backend.ValidationError{Message: "check-in and check-out must be valid dates"}
	}
	nights := StayNights(in, out)
	if nights <= 0 {
		return Stay{}, "", &backend.ValidationError{Message: "check-out must be after check-in"}
	}
	token, ok := s.sessions.BearerToken()
	if !ok {
		return Stay{}, "", &backend.ValidationError{Message: "please log in before booking the room"}
	}
	return Stay{RoomID: roomID, CheckIn: in, CheckOut: out, Nights: nights}, token, nil
}

// submit posts a validated stay and invalidates the cached history.
func (s *Service) submit(ctx context.Context, token string, stay Stay) (domain.Booking, error) {
	booking, err := s.api.CreateBooking(ctx, token, stay.RoomID,
		stay.CheckIn.Format(DateLayout), stay.CheckOut.Format(DateLayout))
	if err != nil {
		return domain.Booking{}, err
	}
	if err := s.cache.Invalidate(ctx, querycache.KeyMyBookings); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

// Submit validates locally and, only when every precondition holds,
// posts the booking. No payment redirect happens here; payment is the
// backend's concern.
func (s *Service) Submit(ctx context.Context, roomID, checkIn, checkOut string) (domain.Booking, error) {
	stay, token, err := s.validate(roomID, checkIn, checkOut)
	if err != nil {
		return domain.Booking{}, err
	}
	return s.submit(ctx, token, stay)
}

// CountByStatus tallies bookings per payment status for the history
// view's status badges.
func CountByStatus(items []domain.Booking) map[domain.PaymentStatus]int {
	counts := make(map[domain.PaymentStatus]int, 3)
	for _, b := range items {
		counts[b.PaymentStatus]++
	}
	return counts
}

// History returns the caller's bookings, cached, each carrying the
// denormalized room summary for display.
func (s *Service) History(ctx context.Context) ([]domain.Booking, error) {
	token, _ := s.sessions.BearerToken()
	return querycache.Lookup(ctx, s.cache, querycache.KeyMyBookings,
		func(ctx context.Context) ([]domain.Booking, error) {
			return s.api.Bookings(ctx, token)
		})
}
