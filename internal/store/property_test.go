package store

import (
	"reflect"
	"testing"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

func TestWhereClauseRendersPredicates(t *testing.T) {
	listing := types.ListingRent
	minPrice := int64(20000)
	maxPrice := int64(30000)
	c := search.Compose(search.Filter{
		Q:           "50%_off",
		City:        "mumbai",
		ListingType: &listing,
		MinPrice:    &minPrice,
		MaxPrice:    &maxPrice,
	})

	where, args, err := whereClause(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantWhere := ` WHERE p.status = $1 AND (p.title ILIKE $2 ESCAPE '\' OR p.description ILIKE $2 ESCAPE '\' OR p.locality ILIKE $2 ESCAPE '\')` +
		` AND (p.city ILIKE $3 ESCAPE '\') AND p.listing_type = $4 AND p.price >= $5 AND p.price <= $6`
	if where != wantWhere {
		t.Fatalf("unexpected where clause\nwant: %s\ngot:  %s", wantWhere, where)
	}

	wantArgs := []any{"ACTIVE", `%50\%\_off%`, "%mumbai%", "RENT", int64(20000), int64(30000)}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("unexpected args\nwant: %#v\ngot:  %#v", wantArgs, args)
	}
}

func TestWhereClauseEmpty(t *testing.T) {
	where, args, err := whereClause(search.Criteria{})
	if err != nil || where != "" || args != nil {
		t.Fatalf("expected empty clause, got %q %v %v", where, args, err)
	}
}

func TestWhereClauseRejectsUnknownField(t *testing.T) {
	_, _, err := whereClause(search.Criteria{Predicates: []search.Predicate{
		{Op: search.OpEq, Fields: []search.Field{"password"}, Value: "x"},
	}})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}
