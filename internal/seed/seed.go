// Package seed fills a fresh database with demo owners and listings.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

type place struct {
	city, state string
	localities  []string
	lat, lng    float64
}

var places = []place{
	{"Mumbai", "Maharashtra", []string{"Andheri West", "Bandra", "Powai", "Malad"}, 19.076, 72.8777},
	{"Pune", "Maharashtra", []string{"Baner", "Kothrud", "Hinjewadi", "Viman Nagar"}, 18.5204, 73.8567},
	{"Bengaluru", "Karnataka", []string{"Koramangala", "Indiranagar", "Whitefield", "HSR Layout"}, 12.9716, 77.5946},
	{"Hyderabad", "Telangana", []string{"Gachibowli", "Madhapur", "Kondapur"}, 17.385, 78.4867},
	{"Delhi", "Delhi", []string{"Dwarka", "Saket", "Rohini"}, 28.6139, 77.209},
}

var amenityPool = []string{"Lift", "Parking", "Power Backup", "Gym", "Swimming Pool", "Security", "Garden", "Club House"}

var (
	furnishings = []types.Furnishing{types.FurnishingFully, types.FurnishingSemi, types.FurnishingNone}
	tenantTypes = []types.TenantType{types.TenantFamily, types.TenantBachelor, types.TenantCompany, types.TenantAny}
)

var firstNames = []string{"Aarav", "Diya", "Kabir", "Meera", "Rohan", "Sana", "Vikram", "Ishita"}

// Owner is one generated account with its listings.
type Owner struct {
	Principal  types.Principal
	Phone      string
	Properties []types.Property
}

// Generate builds owners with perOwner listings each. The same rng seed
// yields the same data.
func Generate(rng *rand.Rand, owners, perOwner int) []Owner {
	out := make([]Owner, 0, owners)
	for i := range owners {
		name := firstNames[rng.IntN(len(firstNames))]
		owner := Owner{
			Principal: types.Principal{
				Subject: fmt.Sprintf("seed-owner-%03d", i+1),
				Email:   fmt.Sprintf("%s.%d@example.com", strings.ToLower(name), i+1),
				Name:    name,
			},
			Phone: fmt.Sprintf("+9198%08d", rng.IntN(100000000)),
		}
		for range perOwner {
			owner.Properties = append(owner.Properties, listing(rng))
		}
		out = append(out, owner)
	}
	return out
}

func listing(rng *rand.Rand) types.Property {
	pl := places[rng.IntN(len(places))]
	locality := pl.localities[rng.IntN(len(pl.localities))]

	propType := types.PropertyTypes[rng.IntN(len(types.PropertyTypes))]
	listingType := types.ListingRent
	if rng.IntN(3) == 0 {
		listingType = types.ListingSell
	}

	p := types.Property{
		Type:        propType,
		ListingType: listingType,
		Bathrooms:   1 + rng.IntN(3),
		BuiltUpArea: 300 + rng.IntN(2700),
		Furnishing:  furnishings[rng.IntN(len(furnishings))],
		TenantType:  tenantTypes[rng.IntN(len(tenantTypes))],
		Available:   types.AvailableImmediate,
		Locality:    locality,
		City:        pl.city,
		State:       pl.state,
		Images:      pickImages(rng),
		Amenities:   pickAmenities(rng),
	}
	lat := pl.lat + (rng.Float64()-0.5)/10
	lng := pl.lng + (rng.Float64()-0.5)/10
	p.Latitude, p.Longitude = &lat, &lng

	if propType.Residential() {
		p.BHK = 1 + rng.IntN(4)
	}
	if listingType == types.ListingRent {
		p.Price = int64(8000 + 1000*rng.IntN(60))
		deposit := p.Price * int64(2+rng.IntN(5))
		p.Deposit = &deposit
	} else {
		p.Price = int64(2500000 + 100000*rng.IntN(200))
	}
	if rng.IntN(2) == 0 {
		maintenance := int64(500 * (1 + rng.IntN(8)))
		p.Maintenance = &maintenance
	}

	p.Title = title(p)
	p.Description = fmt.Sprintf("Well maintained %s in %s, %s. No brokerage, deal directly with the owner.",
		strings.ToLower(string(propType)), locality, pl.city)
	return p
}

func title(p types.Property) string {
	kind := strings.ToLower(string(p.Type))
	if p.BHK > 0 {
		kind = fmt.Sprintf("%dBHK %s", p.BHK, kind)
	}
	verb := "for rent"
	if p.ListingType == types.ListingSell {
		verb = "for sale"
	}
	return fmt.Sprintf("%s %s in %s", kind, verb, p.Locality)
}

func pickImages(rng *rand.Rand) []string {
	images := make([]string, 1+rng.IntN(3))
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/flat-%d/800/600", rng.IntN(1000000))
	}
	return images
}

func pickAmenities(rng *rand.Rand) []string {
	n := rng.IntN(len(amenityPool) + 1)
	picked := make([]string, 0, n)
	for _, i := range rng.Perm(len(amenityPool))[:n] {
		picked = append(picked, amenityPool[i])
	}
	return picked
}

// Result counts what Run wrote.
type Result struct {
	Owners     int
	Properties int
}

// Run registers each owner and creates their listings through the services,
// so seeded rows pass the same validation as API writes. Listings use
// idempotency keys, so re-running with the same seed does not duplicate them.
func Run(ctx context.Context, users *services.UserService, props *services.PropertyService, owners []Owner, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, o := range owners {
		user, err := users.Resolve(ctx, o.Principal)
		if err != nil {
			return res, fmt.Errorf("resolve %s: %w", o.Principal.Subject, err)
		}
		phone := o.Phone
		if _, err := users.UpdateProfile(ctx, user.ID, types.ProfileUpdate{Phone: &phone}); err != nil {
			return res, fmt.Errorf("set phone for %s: %w", user.ID, err)
		}
		res.Owners++

		for i, p := range o.Properties {
			key := fmt.Sprintf("seed-%s-%d", o.Principal.Subject, i)
			created, isNew, err := props.Create(ctx, user.ID, p, key)
			if err != nil {
				return res, fmt.Errorf("create listing %d for %s: %w", i, user.ID, err)
			}
			if isNew {
				res.Properties++
			}
			logger.DebugContext(ctx, "seeded listing", "property_id", created.ID, "owner_id", user.ID, "new", isNew)
		}
	}
	return res, nil
}
