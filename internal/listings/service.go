// Package listings is the view model over the listing collection:
// cached fetches plus the filtering and grouping the home page shows.
package listings

import (
	"context"
	"slices"
	"strings"

	"stayfinder/internal/backend"
	"stayfinder/internal/querycache"
	"stayfinder/internal/session"
	"stayfinder/pkg/domain"
)

// OtherCity buckets listings whose address has no city.
const OtherCity = "Other"

// DefaultLocation is the map pin used when a host submits a listing
// without coordinates (central Chennai).
var DefaultLocation = domain.GeoPoint{Lat: 13.0827, Lng: 80.2707}

type Service struct {
	api      *backend.Client
	cache    *querycache.Cache
	sessions *session.Service
}

func New(api *backend.Client, cache *querycache.Cache, sessions *session.Service) *Service {
	return &Service{api: api, cache: cache, sessions: sessions}
}

// All returns the listing collection, cached under a single key.
func (s *Service) All(ctx context.Context) ([]domain.Listing, error) {
	token, _ := s.sessions.BearerToken()
	return querycache.Lookup(ctx, s.cache, querycache.KeyListings,
		func(ctx context.Context) ([]domain.Listing, error) {
			return s.api.Listings(ctx, token)
		})
}

// ByID returns one listing, cached per id. Failures surface to the
// caller as a displayable error, never a panic.
func (s *Service) ByID(ctx context.Context, id string) (domain.Listing, error) {
	return querycache.Lookup(ctx, s.cache, querycache.RoomDetailsKey(id),
		func(ctx context.Context) (domain.Listing, error) {
			return s.api.Listing(ctx, id)
		})
}

// Create posts a new listing on behalf of the current session (the
// host flow) and invalidates the collection so it refetches.
func (s *Service) Create(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	token, ok := s.sessions.BearerToken()
	if !ok {
		return domain.Listing{}, &backend.ValidationError{Message: "please log in before hosting a listing"}
	}
	if strings.TrimSpace(listing.Title) == "" {
		return domain.Listing{}, &backend.ValidationError{Message: "listing title is required"}
	}
	if listing.Price <= 0 {
		return domain.Listing{}, &backend.ValidationError{Message: "price per night must be positive"}
	}
	if listing.Location == (domain.GeoPoint{}) {
		listing.Location = DefaultLocation
	}
	created, err := s.api.CreateListing(ctx, token, listing)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.cache.Invalidate(ctx, querycache.KeyListings); err != nil {
		return domain.Listing{}, err
	}
	return created, nil
}

// Filter keeps listings whose city or area contains the query,
// case-insensitively. An empty query keeps everything.
func Filter(listings []domain.Listing, query string) []domain.Listing {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return listings
	}
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		city := strings.ToLower(l.Address.City)
		area := strings.ToLower(l.Address.Area)
		if strings.Contains(city, query) || strings.Contains(area, query) {
			out = append(out, l)
		}
	}
	return out
}

// CityGroup is one home-page section.
type CityGroup struct {
	City  string           `json:"city"`
	Homes []domain.Listing `json:"homes"`
}

// GroupByCity buckets listings by address city, "Other" when missing,
// with groups ordered by city ascending. Input order is preserved
// within a group; every input listing appears in exactly one group.
func GroupByCity(listings []domain.Listing) []CityGroup {
	grouped := make(map[string][]domain.Listing)
	for _, l := range listings {
		city := l.Address.City
		if city == "" {
			city = OtherCity
		}
		grouped[city] = append(grouped[city], l)
	}
	cities := make([]string, 0, len(grouped))
	for city := range grouped {
		cities = append(cities, city)
	}
	slices.Sort(cities)
	out := make([]CityGroup, 0, len(cities))
	for _, city := range cities {
		out = append(out, CityGroup{City: city, Homes: grouped[city]})
	}
	return out
}
