package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"stayfinder/pkg/domain"
)

// Client calls the booking backend over HTTP. It attaches the bearer
// token when one is supplied and performs no retries or caching of its
// own; the query cache sits on top.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a backend client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Me returns the account bound to the token via the who-am-I endpoint.
func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/getme", token, nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		return domain.User{}, "", err
	}
	return resp.User, resp.Token, nil
}

func (c *Client) Register(ctx context.Context, email, phone, username, password string) (domain.User, string, error) {
	payload := map[string]string{
		"email":    email,
		"phone":    phone,
		"username": username,
		"password": password,
	}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", payload, &resp); err != nil {
		return domain.User{}, "", err
	}
	return resp.User, resp.Token, nil
}

// Listings fetches the full listing collection. The token may be empty;
// the header is simply omitted then.
func (c *Client) Listings(ctx context.Context, token string) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := c.doJSON(ctx, http.MethodGet, "/listings", token, nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// Listing fetches a single listing. The detail endpoint is public.
func (c *Client) Listing(ctx context.Context, id string) (domain.Listing, error) {
	var listing domain.Listing
	if err := c.doJSON(ctx, http.MethodGet, "/listings/"+id, "", nil, &listing); err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

// CreateListing submits a full listing payload, image included.
func (c *Client) CreateListing(ctx context.Context, token string, listing domain.Listing) (domain.Listing, error) {
	var created domain.Listing
	if err := c.doJSON(ctx, http.MethodPost, "/listings", token, listing, &created); err != nil {
		return domain.Listing{}, err
	}
	return created, nil
}

// Bookings fetches the caller's booking history with embedded room
// summaries.
func (c *Client) Bookings(ctx context.Context, token string) ([]domain.Booking, error) {
	var bookings []domain.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/booking", token, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CreateBooking submits a stay; the backend assigns total amount and
// payment status.
func (c *Client) CreateBooking(ctx context.Context, token, roomID, checkIn, checkOut string) (domain.Booking, error) {
	payload := map[string]string{
		"roomId":   roomID,
		"checkIn":  checkIn,
		"checkOut": checkOut,
	}
	var booking domain.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/booking", token, payload, &booking); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
