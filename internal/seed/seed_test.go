package seed

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/internal/store/memory"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(7, 7)), 3, 4)
	b := Generate(rand.New(rand.NewPCG(7, 7)), 3, 4)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical output for identical seeds")
	}
	if len(a) != 3 {
		t.Fatalf("expected 3 owners, got %d", len(a))
	}
	for _, o := range a {
		if len(o.Properties) != 4 {
			t.Fatalf("expected 4 listings for %s, got %d", o.Principal.Subject, len(o.Properties))
		}
		for _, p := range o.Properties {
			if !p.Type.Residential() && p.BHK != 0 {
				t.Fatalf("non-residential %s has bhk %d", p.Type, p.BHK)
			}
			if p.ListingType == types.ListingSell && p.Deposit != nil {
				t.Fatalf("sale listing carries a deposit: %+v", p)
			}
		}
	}
}

func TestRunCreatesListingsOnce(t *testing.T) {
	mem := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := services.NewUserService(mem.Users(), "", services.WithLogger(logger))
	props := services.NewPropertyService(mem.Properties(), mem.Users(), services.WithLogger(logger))
	ctx := context.Background()

	owners := Generate(rand.New(rand.NewPCG(1, 2)), 2, 3)
	res, err := Run(ctx, users, props, owners, logger)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Owners != 2 || res.Properties != 6 {
		t.Fatalf("unexpected result %+v", res)
	}

	page, err := props.Search(ctx, search.Filter{Page: 1, Limit: 50})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 6 {
		t.Fatalf("expected 6 active listings, got %d", page.Total)
	}

	for _, o := range owners {
		user, err := users.GetByID(ctx, o.Principal.Subject)
		if err != nil {
			t.Fatalf("get owner: %v", err)
		}
		if user.Role != types.RoleOwner {
			t.Fatalf("expected %s promoted to OWNER, got %s", user.ID, user.Role)
		}
	}

	again, err := Run(ctx, users, props, owners, logger)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Properties != 0 {
		t.Fatalf("expected no new listings on re-run, got %d", again.Properties)
	}
}
