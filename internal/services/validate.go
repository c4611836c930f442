package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxImages            = 20
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{6,18}[0-9]$`)

// normalizeProperty fills defaults and enforces derived invariants: SELL
// listings carry no deposit, non-residential types have zero bedrooms and
// amenities form a set.
func normalizeProperty(p types.Property) types.Property {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Locality = strings.TrimSpace(p.Locality)
	p.City = strings.TrimSpace(p.City)
	p.State = strings.TrimSpace(p.State)
	p.Type = types.PropertyType(strings.ToUpper(string(p.Type)))
	p.ListingType = types.ListingType(strings.ToUpper(string(p.ListingType)))
	p.Furnishing = types.Furnishing(strings.ToUpper(string(p.Furnishing)))
	p.TenantType = types.TenantType(strings.ToUpper(string(p.TenantType)))
	p.Available = types.Availability(strings.ToUpper(string(p.Available)))

	if p.Furnishing == "" {
		p.Furnishing = types.FurnishingNone
	}
	if p.TenantType == "" {
		p.TenantType = types.TenantAny
	}
	if p.Available == "" {
		p.Available = types.AvailableImmediate
	}
	if p.Bathrooms == 0 {
		p.Bathrooms = 1
	}
	if p.ListingType == types.ListingSell {
		p.Deposit = nil
	}
	if p.Type.Valid() && !p.Type.Residential() {
		p.BHK = 0
	}

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	p.Images = images
	p.Amenities = amenitySet(p.Amenities)
	return p
}

func amenitySet(values []string) []string {
	seen := make(map[string]bool, len(values))
	set := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		set = append(set, v)
	}
	sort.Strings(set)
	return set
}

// validateProperty checks the listing invariants of a normalized property.
func validateProperty(p types.Property) error {
	switch {
	case p.Title == "":
		return apperr.Invalid("title", "is required")
	case len(p.Title) > maxTitleLength:
		return apperr.Invalid("title", "is too long")
	case p.Description == "":
		return apperr.Invalid("description", "is required")
	case len(p.Description) > maxDescriptionLength:
		return apperr.Invalid("description", "is too long")
	case !p.Type.Valid():
		return apperr.Invalid("type", "unknown property type")
	case !p.ListingType.Valid():
		return apperr.Invalid("listingType", "must be RENT or SELL")
	case p.Price <= 0:
		return apperr.Invalid("price", "must be a positive amount")
	case p.Deposit != nil && *p.Deposit < 0:
		return apperr.Invalid("deposit", "must not be negative")
	case p.Maintenance != nil && *p.Maintenance < 0:
		return apperr.Invalid("maintenance", "must not be negative")
	case p.BHK < 0:
		return apperr.Invalid("bhk", "must not be negative")
	case p.Bathrooms < 1:
		return apperr.Invalid("bathrooms", "must be at least 1")
	case p.BuiltUpArea <= 0:
		return apperr.Invalid("builtUpArea", "is required")
	case !p.Furnishing.Valid():
		return apperr.Invalid("furnishing", "must be FULLY, SEMI or NONE")
	case !p.TenantType.Valid():
		return apperr.Invalid("tenantType", "must be FAMILY, BACHELOR, COMPANY or ANY")
	case !p.Available.Valid():
		return apperr.Invalid("availability", "must be IMMEDIATE, WITHIN15 or WITHIN30")
	case p.Locality == "":
		return apperr.Invalid("locality", "is required")
	case p.City == "":
		return apperr.Invalid("city", "is required")
	case len(p.Images) == 0:
		return apperr.Invalid("images", "at least one image is required")
	case len(p.Images) > maxImages:
		return apperr.Invalid("images", "too many images")
	case p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90):
		return apperr.Invalid("latitude", "out of range")
	case p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180):
		return apperr.Invalid("longitude", "out of range")
	case p.ContactPhone != nil && !phonePattern.MatchString(*p.ContactPhone):
		return apperr.Invalid("contactPhone", "is not a phone number")
	}
	return nil
}

// validatePatchFields rejects malformed individual values before anything is
// loaded from the store.
func validatePatchFields(patch types.PropertyPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperr.Invalid("title", "must not be empty")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return apperr.Invalid("description", "must not be empty")
	}
	if patch.Type != nil && !types.PropertyType(strings.ToUpper(string(*patch.Type))).Valid() {
		return apperr.Invalid("type", "unknown property type")
	}
	if patch.ListingType != nil && !types.ListingType(strings.ToUpper(string(*patch.ListingType))).Valid() {
		return apperr.Invalid("listingType", "must be RENT or SELL")
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return apperr.Invalid("price", "must be a positive amount")
	}
	if patch.Images != nil && len(*patch.Images) == 0 {
		return apperr.Invalid("images", "at least one image is required")
	}
	if patch.Locality != nil && strings.TrimSpace(*patch.Locality) == "" {
		return apperr.Invalid("locality", "must not be empty")
	}
	if patch.City != nil && strings.TrimSpace(*patch.City) == "" {
		return apperr.Invalid("city", "must not be empty")
	}
	return nil
}

// settlePatch rewrites patch so that writing it yields exactly merged.
// Fields changed only by normalization are added to the patch.
func settlePatch(patch types.PropertyPatch, before, merged types.Property) types.PropertyPatch {
	if patch.Title != nil {
		patch.Title = &merged.Title
	}
	if patch.Description != nil {
		patch.Description = &merged.Description
	}
	if patch.Locality != nil {
		patch.Locality = &merged.Locality
	}
	if patch.City != nil {
		patch.City = &merged.City
	}
	if patch.State != nil {
		patch.State = &merged.State
	}
	if patch.Type != nil || merged.Type != before.Type {
		patch.Type = &merged.Type
	}
	if patch.ListingType != nil || merged.ListingType != before.ListingType {
		patch.ListingType = &merged.ListingType
	}
	if patch.Furnishing != nil {
		patch.Furnishing = &merged.Furnishing
	}
	if patch.TenantType != nil {
		patch.TenantType = &merged.TenantType
	}
	if patch.Available != nil {
		patch.Available = &merged.Available
	}
	if patch.Bathrooms != nil {
		patch.Bathrooms = &merged.Bathrooms
	}
	if merged.BHK != before.BHK || patch.BHK != nil {
		patch.BHK = &merged.BHK
	}
	if patch.Deposit.Set || (before.Deposit != nil && merged.Deposit == nil) {
		patch.Deposit = types.Optional[int64]{Set: true, Value: merged.Deposit}
	}
	if patch.Images != nil {
		images := merged.Images
		patch.Images = &images
	}
	if patch.Amenities != nil {
		amenities := merged.Amenities
		patch.Amenities = &amenities
	}
	return patch
}

func validatePhone(field string, phone *string) error {
	if phone != nil && *phone != "" && !phonePattern.MatchString(*phone) {
		return apperr.Invalid(field, "is not a phone number")
	}
	return nil
}
