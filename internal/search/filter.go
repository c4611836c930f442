package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter is a user-supplied listing search. Every field is optional.
type Filter struct {
	Q           string
	City        string
	Locality    string
	Type        *types.PropertyType
	ListingType *types.ListingType
	BHK         *int
	Furnishing  *types.Furnishing
	MinPrice    *int64
	MaxPrice    *int64

	// Status is honoured by the admin listing only.
	Status *types.PropertyStatus

	Page  int
	Limit int
}

// ParseFilter reads a Filter from query values. Malformed values are
// rejected with a validation error before any query is composed.
func ParseFilter(values url.Values) (Filter, error) {
	f := Filter{
		Q:        strings.TrimSpace(values.Get("q")),
		City:     strings.TrimSpace(values.Get("city")),
		Locality: strings.TrimSpace(values.Get("locality")),
	}

	if raw := upper(values.Get("type")); raw != "" {
		t := types.PropertyType(raw)
		if !t.Valid() {
			return Filter{}, apperr.Invalid("type", "unknown property type")
		}
		f.Type = &t
	}
	if raw := upper(values.Get("listingType")); raw != "" {
		l := types.ListingType(raw)
		if !l.Valid() {
			return Filter{}, apperr.Invalid("listingType", "must be RENT or SELL")
		}
		f.ListingType = &l
	}
	if raw := upper(values.Get("furnishing")); raw != "" {
		fu := types.Furnishing(raw)
		if !fu.Valid() {
			return Filter{}, apperr.Invalid("furnishing", "must be FULLY, SEMI or NONE")
		}
		f.Furnishing = &fu
	}
	if raw := upper(values.Get("status")); raw != "" {
		s := types.PropertyStatus(raw)
		if !s.Valid() {
			return Filter{}, apperr.Invalid("status", "unknown status")
		}
		f.Status = &s
	}

	if raw := strings.TrimSpace(values.Get("bhk")); raw != "" {
		bhk, err := strconv.Atoi(raw)
		if err != nil || bhk < 0 {
			return Filter{}, apperr.Invalid("bhk", "must be a non-negative integer")
		}
		f.BHK = &bhk
	}

	minPrice, err := parsePrice(values, "minPrice")
	if err != nil {
		return Filter{}, err
	}
	maxPrice, err := parsePrice(values, "maxPrice")
	if err != nil {
		return Filter{}, err
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return Filter{}, apperr.Invalid("minPrice", "must not exceed maxPrice")
	}
	f.MinPrice = minPrice
	f.MaxPrice = maxPrice

	page, limit, err := ParsePagination(values)
	if err != nil {
		return Filter{}, err
	}
	f.Page = page
	f.Limit = limit

	return f, nil
}

// ParsePagination reads page and limit (or per_page). Page is 1-based and
// limit is clamped to MaxLimit.
func ParsePagination(values url.Values) (page, limit int, err error) {
	page = DefaultPage
	limit = DefaultLimit

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperr.Invalid("page", "must be a positive integer")
		}
	}

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(values.Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, apperr.Invalid("limit", "must be a positive integer")
		}
	}

	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, nil
}

// Compose builds the criteria for public search. Only ACTIVE listings are
// ever returned.
func Compose(f Filter) Criteria {
	c := compose(f)
	c.Predicates = append([]Predicate{eq(FieldStatus, string(types.StatusActive))}, c.Predicates...)
	return c
}

// ComposeOwner builds the criteria for an owner's own listings in every
// status.
func ComposeOwner(ownerID string, page, limit int) Criteria {
	page, limit = window(page, limit)
	return Criteria{
		Predicates: []Predicate{eq(FieldOwnerID, ownerID)},
		Page:       page,
		Limit:      limit,
	}
}

// ComposeAdmin builds the criteria for the admin listing, which spans all
// statuses unless Status is set.
func ComposeAdmin(f Filter) Criteria {
	c := compose(f)
	if f.Status != nil {
		c.Predicates = append([]Predicate{eq(FieldStatus, string(*f.Status))}, c.Predicates...)
	}
	return c
}

func compose(f Filter) Criteria {
	var preds []Predicate
	if f.Q != "" {
		preds = append(preds, Predicate{
			Op:     OpContains,
			Fields: []Field{FieldTitle, FieldDescription, FieldLocality},
			Value:  f.Q,
		})
	}
	if f.City != "" {
		preds = append(preds, contains(FieldCity, f.City))
	}
	if f.Locality != "" {
		preds = append(preds, contains(FieldLocality, f.Locality))
	}
	if f.Type != nil {
		preds = append(preds, eq(FieldType, string(*f.Type)))
	}
	if f.ListingType != nil {
		preds = append(preds, eq(FieldListingType, string(*f.ListingType)))
	}
	if f.BHK != nil {
		preds = append(preds, eq(FieldBHK, *f.BHK))
	}
	if f.Furnishing != nil {
		preds = append(preds, eq(FieldFurnishing, string(*f.Furnishing)))
	}
	if f.MinPrice != nil {
		preds = append(preds, Predicate{Op: OpGte, Fields: []Field{FieldPrice}, Value: *f.MinPrice})
	}
	if f.MaxPrice != nil {
		preds = append(preds, Predicate{Op: OpLte, Fields: []Field{FieldPrice}, Value: *f.MaxPrice})
	}

	page, limit := window(f.Page, f.Limit)
	return Criteria{Predicates: preds, Page: page, Limit: limit}
}

func window(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func eq(field Field, value any) Predicate {
	return Predicate{Op: OpEq, Fields: []Field{field}, Value: value}
}

func contains(field Field, value string) Predicate {
	return Predicate{Op: OpContains, Fields: []Field{field}, Value: value}
}

func parsePrice(values url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, apperr.Invalid(key, "must be a non-negative integer")
	}
	return &v, nil
}

func upper(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
