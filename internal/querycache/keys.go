package querycache

// Query keys are semantic tuples; every cached read and every
// invalidation must agree on them.
const (
	KeyAuthUser   = "authUser"
	KeyListings   = "Listings"
	KeyMyBookings = "myBookings"
)

// RoomDetailsKey scopes the detail cache to one listing.
func RoomDetailsKey(id string) string {
	return "roomDetails:" + id
}
