package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

func TestOverviewCountsEverything(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", types.RoleOwner, "+91 98200 00001")
	f.addUser(t, "u2", types.RoleBuyer, "")
	f.addUser(t, "admin", types.RoleAdmin, "")
	ctx := context.Background()

	a := f.addListing(t, "u1", listing("Mumbai flat", types.ListingRent, 25000))
	pune := listing("Pune villa", types.ListingSell, 9000000)
	pune.City = "Pune"
	pune.Type = types.PropertyVilla
	f.addListing(t, "u1", pune)
	b := f.addListing(t, "u1", listing("Another Mumbai flat", types.ListingRent, 30000))
	if _, err := f.props.UpdateStatus(ctx, "u1", b.ID, types.StatusRented); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := f.contacts.Reveal(ctx, "u2", a.ID); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	if _, err := f.admin.Overview(ctx, "u1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-admin: expected forbidden, got %v", err)
	}
	overview, err := f.admin.Overview(ctx, "admin")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	want := types.Totals{Users: 3, Properties: 3, ActiveProperties: 2, ContactReveals: 1}
	if overview.Totals != want {
		t.Fatalf("unexpected totals: %+v", overview.Totals)
	}
	if len(overview.ByCity) != 2 || overview.ByCity[0] != (types.GroupCount{Key: "Mumbai", Count: 2}) {
		t.Fatalf("unexpected city groups: %+v", overview.ByCity)
	}
	if len(overview.ByType) != 2 || overview.ByType[0] != (types.GroupCount{Key: "APARTMENT", Count: 2}) {
		t.Fatalf("unexpected type groups: %+v", overview.ByType)
	}
	if len(overview.ByRole) != 3 {
		t.Fatalf("unexpected role groups: %+v", overview.ByRole)
	}
}

func TestTrendsAreZeroFilled(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", types.RoleOwner, "+91 98200 00001")
	f.addUser(t, "admin", types.RoleAdmin, "")
	f.addListing(t, "u1", listing("Today", types.ListingRent, 25000))
	ctx := context.Background()

	trends, err := f.admin.Trends(ctx, "admin", 7)
	if err != nil {
		t.Fatalf("trends: %v", err)
	}
	if trends.Days != 7 || len(trends.Properties) != 7 || len(trends.Users) != 7 || len(trends.ContactReveals) != 7 {
		t.Fatalf("expected 7 buckets per series, got %+v", trends)
	}

	// The service clock sits one day after the store's events.
	eventDay := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i, bucket := range trends.Properties {
		wantDay := eventDay.AddDate(0, 0, i-5)
		if !bucket.Day.Equal(wantDay) {
			t.Fatalf("bucket %d: expected %s, got %s", i, wantDay, bucket.Day)
		}
		wantCount := 0
		if bucket.Day.Equal(eventDay) {
			wantCount = 1
		}
		if bucket.Count != wantCount {
			t.Fatalf("bucket %s: expected %d, got %d", bucket.Day, wantCount, bucket.Count)
		}
	}
	if trends.Users[5].Count != 2 {
		t.Fatalf("expected two users on the event day, got %d", trends.Users[5].Count)
	}
	for _, bucket := range trends.ContactReveals {
		if bucket.Count != 0 {
			t.Fatalf("expected no reveals, got %+v", bucket)
		}
	}

	defaults, err := f.admin.Trends(ctx, "admin", 0)
	if err != nil || defaults.Days != 30 || len(defaults.Users) != 30 {
		t.Fatalf("default window: days=%d err=%v", defaults.Days, err)
	}
	if _, err := f.admin.Trends(ctx, "admin", 400); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTrendsChecksRoleBeforeDays(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", types.RoleOwner, "")
	ctx := context.Background()

	for _, days := range []int{7, 400, -1} {
		if _, err := f.admin.Trends(ctx, "u1", days); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("days=%d: expected forbidden, got %v", days, err)
		}
	}
	if _, err := f.admin.Trends(ctx, "", 400); !errors.Is(err, apperr.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication required, got %v", err)
	}
}
