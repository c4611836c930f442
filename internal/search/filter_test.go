package search

import (
	"errors"
	"math"
	"net/url"
	"sort"
	"testing"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

func fixtures() []types.Property {
	return []types.Property{
		{ID: "p1", Title: "Sunny 2BHK", Description: "near metro", Locality: "Andheri", City: "Mumbai",
			Type: types.PropertyApartment, ListingType: types.ListingRent, BHK: 2, Furnishing: types.FurnishingSemi,
			Price: 25000, Status: types.StatusActive},
		{ID: "p2", Title: "Sea view villa", Description: "private pool", Locality: "Juhu", City: "Mumbai",
			Type: types.PropertyVilla, ListingType: types.ListingSell, BHK: 4, Furnishing: types.FurnishingFully,
			Price: 45000000, Status: types.StatusActive},
		{ID: "p3", Title: "Office floor", Description: "grade A", Locality: "Koramangala", City: "Bengaluru",
			Type: types.PropertyOffice, ListingType: types.ListingRent, BHK: 0, Furnishing: types.FurnishingNone,
			Price: 120000, Status: types.StatusActive},
		{ID: "p4", Title: "Compact 1BHK", Description: "metro adjacent", Locality: "Indiranagar", City: "Bengaluru",
			Type: types.PropertyApartment, ListingType: types.ListingRent, BHK: 1, Furnishing: types.FurnishingSemi,
			Price: 18000, Status: types.StatusActive},
		{ID: "p5", Title: "Rented 2BHK", Description: "already taken", Locality: "Bandra", City: "Mumbai",
			Type: types.PropertyApartment, ListingType: types.ListingRent, BHK: 2, Furnishing: types.FurnishingSemi,
			Price: 30000, Status: types.StatusRented},
	}
}

func matching(c Criteria, props []types.Property) []string {
	var ids []string
	for _, p := range props {
		if c.Matches(p) {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestComposeConjunction(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"no filters returns active only", "", []string{"p1", "p2", "p3", "p4"}},
		{"city is case-insensitive substring", "city=mumbai", []string{"p1", "p2"}},
		{"city partial", "city=BENGAL", []string{"p3", "p4"}},
		{"type exact", "type=apartment", []string{"p1", "p4"}},
		{"listing type and bhk", "listingType=RENT&bhk=2", []string{"p1"}},
		{"furnishing and city", "furnishing=SEMI&city=Bengaluru", []string{"p4"}},
		{"min price only", "minPrice=100000", []string{"p2", "p3"}},
		{"max price only", "maxPrice=25000", []string{"p1", "p4"}},
		{"inclusive range", "minPrice=18000&maxPrice=25000", []string{"p1", "p4"}},
		{"free text over title description locality", "q=METRO", []string{"p1", "p4"}},
		{"free text locality", "q=juhu", []string{"p2"}},
		{"all filters", "city=mumbai&type=APARTMENT&listingType=RENT&bhk=2&furnishing=SEMI&minPrice=20000&maxPrice=30000", []string{"p1"}},
		{"no match", "city=Delhi", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			f, err := ParseFilter(values)
			if err != nil {
				t.Fatalf("parse filter: %v", err)
			}
			got := matching(Compose(f), fixtures())
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v got %v", tc.want, got)
				}
			}
		})
	}
}

func TestComposeOwnerSpansStatuses(t *testing.T) {
	props := fixtures()
	for i := range props {
		props[i].OwnerID = "owner-a"
	}
	props[2].OwnerID = "owner-b"

	got := matching(ComposeOwner("owner-a", 1, 10), props)
	want := []string{"p1", "p2", "p4", "p5"}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestComposeAdminStatusFilter(t *testing.T) {
	status := types.StatusRented
	got := matching(ComposeAdmin(Filter{Status: &status}), fixtures())
	if len(got) != 1 || got[0] != "p5" {
		t.Fatalf("expected [p5] got %v", got)
	}
	if got := matching(ComposeAdmin(Filter{}), fixtures()); len(got) != 5 {
		t.Fatalf("expected all 5 properties, got %v", got)
	}
}

func TestParseFilterRejectsMalformedValues(t *testing.T) {
	bad := []string{
		"minPrice=cheap",
		"maxPrice=-1",
		"bhk=two",
		"type=CASTLE",
		"listingType=LEASE",
		"furnishing=PARTIAL",
		"page=0",
		"limit=abc",
		"minPrice=500&maxPrice=100",
	}
	for _, query := range bad {
		values, _ := url.ParseQuery(query)
		if _, err := ParseFilter(values); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", query, err)
		}
	}
}

func TestParsePaginationDefaultsAndClamp(t *testing.T) {
	page, limit, err := ParsePagination(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != DefaultPage || limit != DefaultLimit {
		t.Fatalf("unexpected defaults page=%d limit=%d", page, limit)
	}

	_, limit, err = ParsePagination(url.Values{"per_page": {"500"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != MaxLimit {
		t.Fatalf("expected limit clamp to %d got %d", MaxLimit, limit)
	}
}

func TestCriteriaOffsetAndKey(t *testing.T) {
	c := Criteria{Page: 3, Limit: 10}
	if c.Offset() != 20 {
		t.Fatalf("expected offset 20 got %d", c.Offset())
	}

	a := Criteria{Predicates: []Predicate{eq(FieldCity, "x"), eq(FieldBHK, 2)}, Page: 1, Limit: 10}
	b := Criteria{Predicates: []Predicate{eq(FieldBHK, 2), eq(FieldCity, "x")}, Page: 1, Limit: 10}
	if a.Key() != b.Key() {
		t.Fatalf("key should not depend on predicate order: %q vs %q", a.Key(), b.Key())
	}
	b.Page = 2
	if a.Key() == b.Key() {
		t.Fatal("key should depend on page")
	}
}

func TestOffsetSaturates(t *testing.T) {
	cases := []struct{ page, limit, want int }{
		{0, 10, 0},
		{-4, 10, 0},
		{1, 10, 0},
		{2, 0, 0},
		{math.MaxInt/10 + 1, 10, math.MaxInt / 10 * 10},
		{math.MaxInt/10 + 2, 10, math.MaxInt},
		{math.MaxInt, MaxLimit, math.MaxInt},
	}
	for _, tc := range cases {
		if got := Offset(tc.page, tc.limit); got != tc.want {
			t.Fatalf("page=%d limit=%d: expected %d got %d", tc.page, tc.limit, tc.want, got)
		}
	}
	if got := (Criteria{Page: math.MaxInt, Limit: 20}).Offset(); got < 0 {
		t.Fatalf("offset wrapped negative: %d", got)
	}
}

func TestNewPageTotalPages(t *testing.T) {
	cases := []struct{ total, limit, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
	}
	for _, tc := range cases {
		if got := types.NewPage[int](nil, 1, tc.limit, tc.total).TotalPages; got != tc.want {
			t.Fatalf("total=%d limit=%d: expected %d got %d", tc.total, tc.limit, tc.want, got)
		}
	}
}
