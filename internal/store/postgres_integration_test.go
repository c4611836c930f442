//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/internal/store"
	"github.com/flatwithoutbrokerage/flatapi/internal/tests/pgtest"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

var pg *pgtest.Postgres

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	var err error
	pg, err = pgtest.Start(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	pg.Close(context.Background())
	os.Exit(code)
}

func reset(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	if err := pg.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return ctx
}

func ptr[T any](v T) *T { return &v }

func seedUser(t *testing.T, ctx context.Context, id string, role types.Role) types.User {
	t.Helper()
	user, err := store.NewUserRepository(pg.DB).Upsert(ctx, types.User{
		ID:      id,
		Name:    ptr("User " + id),
		Email:   ptr(id + "@example.com"),
		Phone:   ptr("+919800000000"),
		Role:    role,
		Credits: types.DefaultCredits,
	})
	if err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
	return user
}

func sampleProperty(ownerID, city string, price int64) types.Property {
	return types.Property{
		Title:       "2BHK in " + city,
		Description: "Sunny flat",
		Type:        types.PropertyApartment,
		ListingType: types.ListingRent,
		Status:      types.StatusActive,
		Price:       price,
		Deposit:     ptr(price * 3),
		BHK:         2,
		Bathrooms:   2,
		BuiltUpArea: 900,
		Furnishing:  types.FurnishingSemi,
		TenantType:  types.TenantAny,
		Available:   types.AvailableImmediate,
		Locality:    "Baner",
		City:        city,
		State:       "Maharashtra",
		Images:      []string{"https://img.example.com/1.jpg"},
		Amenities:   []string{"Lift", "Parking"},
		OwnerID:     ownerID,
	}
}

func TestUserUpsertKeepsExistingRow(t *testing.T) {
	ctx := reset(t)
	users := store.NewUserRepository(pg.DB)

	first := seedUser(t, ctx, "u1", types.RoleBuyer)
	again, err := users.Upsert(ctx, types.User{ID: "u1", Name: ptr("Other"), Role: types.RoleAdmin})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if *again.Name != *first.Name || again.Role != types.RoleBuyer {
		t.Fatalf("expected existing row to win, got %+v", again)
	}

	if _, err := users.GetByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRoleOnlyTouchesRole(t *testing.T) {
	ctx := reset(t)
	users := store.NewUserRepository(pg.DB)

	u := seedUser(t, ctx, "u1", types.RoleBuyer)
	u.Credits = 500
	if _, err := users.Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	changed, err := users.UpdateRole(ctx, "u1", types.RoleBuyer, types.RoleOwner)
	if err != nil || !changed {
		t.Fatalf("promote: changed=%t err=%v", changed, err)
	}
	got, _ := users.GetByID(ctx, "u1")
	if got.Role != types.RoleOwner || got.Credits != 500 {
		t.Fatalf("unexpected row after promotion %+v", got)
	}

	changed, err = users.UpdateRole(ctx, "u1", types.RoleBuyer, types.RoleOwner)
	if err != nil || changed {
		t.Fatalf("expected no change once promoted: changed=%t err=%v", changed, err)
	}
	if changed, err := users.UpdateRole(ctx, "missing", types.RoleBuyer, types.RoleOwner); err != nil || changed {
		t.Fatalf("missing user: changed=%t err=%v", changed, err)
	}
}

func TestPropertyCreateFindAndPatch(t *testing.T) {
	ctx := reset(t)
	seedUser(t, ctx, "owner", types.RoleOwner)
	props := store.NewPropertyRepository(pg.DB)

	pune, err := props.Create(ctx, sampleProperty("owner", "Pune", 25000), "key-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := props.Create(ctx, sampleProperty("owner", "Mumbai", 60000), ""); err != nil {
		t.Fatalf("create mumbai: %v", err)
	}
	if pune.Owner.ID != "owner" || pune.Owner.Name == nil || *pune.Owner.Name != "User owner" {
		t.Fatalf("expected joined owner, got %+v", pune.Owner)
	}
	if len(pune.Amenities) != 2 || pune.Deposit == nil || *pune.Deposit != 75000 {
		t.Fatalf("unexpected round trip %+v", pune)
	}

	byKey, err := props.GetByIdempotencyKey(ctx, "owner", "key-1")
	if err != nil || byKey.ID != pune.ID {
		t.Fatalf("lookup by key: id=%q err=%v", byKey.ID, err)
	}
	if _, err := props.Create(ctx, sampleProperty("owner", "Pune", 1), "key-1"); err == nil {
		t.Fatal("expected duplicate idempotency key to fail")
	}

	maxPrice := int64(30000)
	items, total, err := props.Find(ctx, search.Compose(search.Filter{City: "pune", MaxPrice: &maxPrice}))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != pune.ID {
		t.Fatalf("expected only the pune listing, got total=%d items=%+v", total, items)
	}

	items, total, err = props.Find(ctx, search.Compose(search.Filter{Page: math.MaxInt, Limit: 20}))
	if err != nil {
		t.Fatalf("find far page: %v", err)
	}
	if total != 2 || len(items) != 0 {
		t.Fatalf("expected empty far page of 2, got total=%d items=%d", total, len(items))
	}

	updated, err := props.Update(ctx, pune.ID, types.PropertyPatch{
		Price:   ptr(int64(27000)),
		Deposit: types.Null[int64](),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != 27000 || updated.Deposit != nil || updated.UpdatedAt.Before(pune.UpdatedAt) {
		t.Fatalf("unexpected patch result %+v", updated)
	}

	if err := props.IncrementViews(ctx, pune.ID); err != nil {
		t.Fatalf("views: %v", err)
	}
	got, _ := props.Get(ctx, pune.ID)
	if got.Views != 1 {
		t.Fatalf("expected 1 view, got %d", got.Views)
	}

	if _, err := props.Update(ctx, "missing", types.PropertyPatch{Price: ptr(int64(1))}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascadesContactRows(t *testing.T) {
	ctx := reset(t)
	seedUser(t, ctx, "owner", types.RoleOwner)
	seedUser(t, ctx, "viewer", types.RoleBuyer)
	props := store.NewPropertyRepository(pg.DB)
	contacts := store.NewContactRepository(pg.DB)

	p, err := props.Create(ctx, sampleProperty("owner", "Pune", 20000), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for range 2 {
		if _, err := contacts.Create(ctx, types.ContactAccess{ViewerID: "viewer", OwnerID: "owner", PropertyID: p.ID}); err != nil {
			t.Fatalf("contact: %v", err)
		}
	}
	if n, _ := contacts.CountByProperty(ctx, p.ID); n != 2 {
		t.Fatalf("expected 2 reveals, got %d", n)
	}

	history, total, err := contacts.ListByViewer(ctx, "viewer", 0, 10)
	if err != nil || total != 2 || len(history) != 2 {
		t.Fatalf("history: total=%d len=%d err=%v", total, len(history), err)
	}

	if err := props.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := contacts.CountByProperty(ctx, p.ID); n != 0 {
		t.Fatalf("expected contact rows removed, got %d", n)
	}
	if err := props.Delete(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserDeleteRemovesListings(t *testing.T) {
	ctx := reset(t)
	seedUser(t, ctx, "owner", types.RoleOwner)
	props := store.NewPropertyRepository(pg.DB)

	p, err := props.Create(ctx, sampleProperty("owner", "Pune", 20000), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.NewUserRepository(pg.DB).Delete(ctx, "owner"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := props.Get(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected listing gone, got %v", err)
	}
}

func TestStatsRollups(t *testing.T) {
	ctx := reset(t)
	seedUser(t, ctx, "owner", types.RoleOwner)
	seedUser(t, ctx, "buyer", types.RoleBuyer)
	props := store.NewPropertyRepository(pg.DB)
	for _, city := range []string{"Pune", "Pune", "Mumbai"} {
		if _, err := props.Create(ctx, sampleProperty("owner", city, 20000), ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats := store.NewStatsRepository(pg.DB)
	totals, err := stats.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Users != 2 || totals.Properties != 3 || totals.ActiveProperties != 3 || totals.ContactReveals != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}

	byCity, err := stats.PropertiesByCity(ctx)
	if err != nil {
		t.Fatalf("by city: %v", err)
	}
	if len(byCity) != 2 || byCity[0].Key != "Pune" || byCity[0].Count != 2 {
		t.Fatalf("unexpected city rollup %+v", byCity)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	daily, err := stats.DailyCounts(ctx, store.SeriesProperties, today.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	var sum int
	for _, d := range daily {
		sum += d.Count
	}
	if sum != 3 {
		t.Fatalf("expected 3 properties across days, got %+v", daily)
	}
	if _, err := stats.DailyCounts(ctx, "bogus", today); err == nil {
		t.Fatal("expected error for unknown series")
	}
}
