package domain

import "time"

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// User is the authenticated account returned by the auth endpoints.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Address struct {
	Street string `json:"street"`
	Area   string `json:"area"`
	City   string `json:"city"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is a bookable room. Image is a data-URL-encoded upload.
type Listing struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Address     Address  `json:"address"`
	Location    GeoPoint `json:"location"`
	Tag         string   `json:"tag,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
}

// RoomSummary is the denormalized listing info embedded in a booking.
type RoomSummary struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// Booking is created by the booking flow and read-only afterwards.
// TotalAmount and PaymentStatus are assigned by the backend.
type Booking struct {
	ID            string        `json:"_id"`
	RoomID        string        `json:"roomId"`
	CheckIn       time.Time     `json:"checkIn"`
	CheckOut      time.Time     `json:"checkOut"`
	TotalAmount   float64       `json:"totalAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Room          *RoomSummary  `json:"room,omitempty"`
}
