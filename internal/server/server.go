package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"stayfinder/internal/backend"
	"stayfinder/internal/booking"
	"stayfinder/internal/listings"
	"stayfinder/internal/ratelimit"
	"stayfinder/internal/session"
	"stayfinder/internal/util"
	"stayfinder/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Sessions *session.Service
	Listings *listings.Service
	Bookings *booking.Service

	// Rate limiting is active only when RedisAddr is set.
	RedisAddr                 string
	RedisPassword             string
	LoginRateLimitPerMinute   int
	SignupRateLimitPerMinute  int
	BookingRateLimitPerMinute int
}

// Server exposes the projected views as JSON endpoints.
type Server struct {
	sessions *session.Service
	listings *listings.Service
	bookings *booking.Service
	mux      *http.ServeMux

	loginLimiter   *ratelimit.FixedWindowLimiter
	signupLimiter  *ratelimit.FixedWindowLimiter
	bookingLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	s := &Server{
		sessions: cfg.Sessions,
		listings: cfg.Listings,
		bookings: cfg.Bookings,
		mux:      http.NewServeMux(),
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		signupLimit := cfg.SignupRateLimitPerMinute
		if signupLimit <= 0 {
			signupLimit = 5
		}
		bookingLimit := cfg.BookingRateLimitPerMinute
		if bookingLimit <= 0 {
			bookingLimit = 10
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "stayfinder:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.loginLimiter, err = newLimiter("login", loginLimit); err != nil {
			return nil, err
		}
		if s.signupLimiter, err = newLimiter("signup", signupLimit); err != nil {
			return nil, err
		}
		if s.bookingLimiter, err = newLimiter("booking", bookingLimit); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	s.mux.HandleFunc("/api/listings", s.handleListings)
	s.mux.HandleFunc("/api/listings/", s.handleListingByID)

	s.mux.HandleFunc("/api/bookings", s.handleBookings)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSession reports the current session, null when logged out.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.sessions.Current(r.Context())
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: &user})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.sessions.Signup(r.Context(), req.Email, req.Phone, req.Username, req.Password)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{User: &user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.sessions.Logout(r.Context()); err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/login"})
}

// handleListings serves the home view (GET, grouped by city after the
// optional ?q= filter) and the host flow (POST).
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all, err := s.listings.All(r.Context())
		if err != nil {
			writeDataError(w, err)
			return
		}
		filtered := listings.Filter(all, r.URL.Query().Get("q"))
		groups := listings.GroupByCity(filtered)
		writeJSON(w, http.StatusOK, map[string]any{
			"cities": groups,
			"count":  len(filtered),
		})
	case http.MethodPost:
		var listing domain.Listing
		if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&listing); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.listings.Create(r.Context(), listing)
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// handleListingByID serves the detail view. When checkIn/checkOut are
// supplied, the response carries the derived price quote.
func (s *Server) handleListingByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/listings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	listing, err := s.listings.ByID(r.Context(), id)
	if err != nil {
		writeDataError(w, err)
		return
	}
	resp := listingDetailResponse{Listing: listing}
	checkIn := r.URL.Query().Get("checkIn")
	checkOut := r.URL.Query().Get("checkOut")
	if checkIn != "" && checkOut != "" {
		in, errIn := time.Parse(booking.DateLayout, checkIn)
		out, errOut := time.Parse(booking.DateLayout, checkOut)
		if errIn != nil || errOut != nil {
			writeError(w, http.StatusBadRequest, "check-in and check-out must be valid dates")
			return
		}
		nights := booking.StayNights(in, out)
		if nights > 0 {
			resp.Quote = &stayQuote{
				Nights: nights,
				Total:  booking.Total(nights, listing.Price),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBookings serves booking history (GET) and submission (POST).
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.bookings.History(r.Context())
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":    items,
			"count":    len(items),
			"byStatus": booking.CountByStatus(items),
		})
	case http.MethodPost:
		if !s.allowRate(w, r, s.bookingLimiter, "too many booking attempts") {
			return
		}
		var req bookingRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		// One POST is one booking interaction; the flow walks it
		// through validating, submitting and the terminal states.
		flow := booking.NewFlow(s.bookings)
		created, err := flow.Submit(r.Context(), req.RoomID, req.CheckIn, req.CheckOut)
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type bookingRequest struct {
	RoomID   string `json:"roomId"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// sessionResponse carries null for user when logged out.
type sessionResponse struct {
	User *domain.User `json:"user"`
}

type stayQuote struct {
	Nights int     `json:"nights"`
	Total  float64 `json:"total"`
}

type listingDetailResponse struct {
	Listing domain.Listing `json:"listing"`
	Quote   *stayQuote     `json:"quote,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusClientClosedRequest is the nginx convention for a client that
// went away before the response was ready.
const statusClientClosedRequest = 499

// writeDataError is the single error-presentation channel: every data
// layer failure funnels through the taxonomy here.
func writeDataError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		// The caller aborted; nothing useful can be delivered.
		writeError(w, statusClientClosedRequest, "request canceled")
		return
	}
	var validationErr *backend.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	var netErr *backend.NetworkError
	if errors.As(err, &netErr) {
		writeError(w, http.StatusBadGateway, "booking backend unavailable")
		return
	}
	var decodeErr *backend.DecodeError
	if errors.As(err, &decodeErr) {
		writeError(w, http.StatusBadGateway, "unexpected backend response")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
