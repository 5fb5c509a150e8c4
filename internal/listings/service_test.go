package listings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"stayfinder/internal/backend"
	"stayfinder/internal/querycache"
	"stayfinder/internal/session"
	"stayfinder/internal/tokenstore"
	"stayfinder/pkg/domain"
)

func listing(id, city, area string) domain.Listing {
	return domain.Listing{
		ID:      id,
		Title:   "Room " + id,
		Price:   1000,
		Address: domain.Address{City: city, Area: area},
	}
}

func TestGroupByCitySortsKeysAndBucketsMissingCity(t *testing.T) {
	input := []domain.Listing{
		listing("1", "Chennai", "T Nagar"),
		listing("2", "Chennai", "Adyar"),
		listing("3", "Mumbai", "Bandra"),
	}
	groups := GroupByCity(input)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].City != "Chennai" || groups[1].City != "Mumbai" {
		t.Fatalf("unexpected key order: %q, %q", groups[0].City, groups[1].City)
	}
	if len(groups[0].Homes) != 2 || len(groups[1].Homes) != 1 {
		t.Fatalf("unexpected group sizes: %d, %d", len(groups[0].Homes), len(groups[1].Homes))
	}

	withMissing := append(input, listing("4", "", ""))
	groups = GroupByCity(withMissing)
	if groups[len(groups)-1].City != OtherCity {
		t.Fatalf("missing city should bucket under %q, got %q", OtherCity, groups[len(groups)-1].City)
	}
}

func TestGroupByCityPartitionsInputExactly(t *testing.T) {
	input := []domain.Listing{
		listing("1", "Delhi", ""),
		listing("2", "", ""),
		listing("3", "Agra", ""),
		listing("4", "Delhi", ""),
		listing("5", "", ""),
	}
	groups := GroupByCity(input)

	seen := map[string]int{}
	total := 0
	for _, g := range groups {
		for _, l := range g.Homes {
			seen[l.ID]++
			total++
		}
	}
	if total != len(input) {
		t.Fatalf("grouped %d listings, want %d", total, len(input))
	}
	for _, l := range input {
		if seen[l.ID] != 1 {
			t.Fatalf("listing %s appears %d times", l.ID, seen[l.ID])
		}
	}
	for i := 1; i < len(groups); i++ {
		if groups[i-1].City >= groups[i].City {
			t.Fatalf("group keys not sorted: %q before %q", groups[i-1].City, groups[i].City)
		}
	}
}

func TestGroupByCityEmptyInput(t *testing.T) {
	if groups := GroupByCity(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groups)
	}
}

func TestFilterMatchesCityOrAreaCaseInsensitively(t *testing.T) {
	input := []domain.Listing{
		listing("1", "Chennai", "T Nagar"),
		listing("2", "Mumbai", "Bandra"),
		listing("3", "Pune", "chennai colony"),
	}

	got := Filter(input, "CHENNAI")
	if len(got) != 2 {
		t.Fatalf("expected city and area matches, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unexpected matches: %v, %v", got[0].ID, got[1].ID)
	}

	if got := Filter(input, "bandra"); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("area match failed: %v", got)
	}
	if got := Filter(input, ""); len(got) != len(input) {
		t.Fatalf("empty query should keep everything, got %d", len(got))
	}
	if got := Filter(input, "nowhere"); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func newListingsService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	api := backend.NewClient(srv.URL)
	cache := querycache.New(querycache.NewMemoryStore())
	sessions := session.New(api, cache, tokenstore.NewMemoryStore())
	return New(api, cache, sessions), srv
}

func TestAllCachesListingCollection(t *testing.T) {
	var calls int32
	svc, _ := newListingsService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode([]domain.Listing{listing("1", "Chennai", "Adyar")})
	})

	for i := 0; i < 2; i++ {
		all, err := svc.All(context.Background())
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(all))
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one backend call, got %d", n)
	}
}

func TestByIDSurfacesNotFoundAsDisplayableError(t *testing.T) {
	svc, _ := newListingsService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
	})

	_, err := svc.ByID(context.Background(), "missing")
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "room not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestCreateRequiresSession(t *testing.T) {
	var calls int32
	svc, _ := newListingsService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(listing("1", "Chennai", "Adyar"))
	})

	_, err := svc.Create(context.Background(), listing("", "Chennai", "Adyar"))
	var validationErr *backend.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("create without session must not call the backend, got %d calls", n)
	}
}

func TestCreateAppliesDefaultLocationWhenUnset(t *testing.T) {
	var posted domain.Listing
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&posted)
		posted.ID = "new"
		_ = json.NewEncoder(w).Encode(posted)
	}))
	t.Cleanup(srv.Close)

	api := backend.NewClient(srv.URL)
	cache := querycache.New(querycache.NewMemoryStore())
	tokens := tokenstore.NewMemoryStore()
	_ = tokens.SetToken("tok")
	svc := New(api, cache, session.New(api, cache, tokens))

	if _, err := svc.Create(context.Background(), listing("", "Chennai", "Adyar")); err != nil {
		t.Fatalf("create without coordinates: %v", err)
	}
	if posted.Location != DefaultLocation {
		t.Fatalf("backend received %+v, want default pin %+v", posted.Location, DefaultLocation)
	}

	pinned := listing("", "Mumbai", "Bandra")
	pinned.Location = domain.GeoPoint{Lat: 19.05, Lng: 72.83}
	if _, err := svc.Create(context.Background(), pinned); err != nil {
		t.Fatalf("create with coordinates: %v", err)
	}
	if posted.Location != pinned.Location {
		t.Fatalf("explicit coordinates overwritten: %+v", posted.Location)
	}
}

func TestCreateInvalidatesListingCollection(t *testing.T) {
	var listCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/listings" && r.Method == http.MethodGet:
			atomic.AddInt32(&listCalls, 1)
			_ = json.NewEncoder(w).Encode([]domain.Listing{listing("1", "Chennai", "Adyar")})
		case r.URL.Path == "/listings" && r.Method == http.MethodPost:
			var posted domain.Listing
			_ = json.NewDecoder(r.Body).Decode(&posted)
			posted.ID = "new"
			_ = json.NewEncoder(w).Encode(posted)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	api := backend.NewClient(srv.URL)
	cache := querycache.New(querycache.NewMemoryStore())
	tokens := tokenstore.NewMemoryStore()
	_ = tokens.SetToken("tok")
	svc := New(api, cache, session.New(api, cache, tokens))

	if _, err := svc.All(context.Background()); err != nil {
		t.Fatalf("seed all: %v", err)
	}
	created, err := svc.Create(context.Background(), listing("", "Chennai", "Velachery"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "new" {
		t.Fatalf("unexpected created listing: %+v", created)
	}
	if _, err := svc.All(context.Background()); err != nil {
		t.Fatalf("post-create all: %v", err)
	}
	if n := atomic.LoadInt32(&listCalls); n != 2 {
		t.Fatalf("collection should refetch after create, got %d list calls", n)
	}
}
