package types

import (
	"encoding/json"
	"time"
)

// PropertyType is the kind of real estate being listed.
type PropertyType string

const (
	PropertyApartment PropertyType = "APARTMENT"
	PropertyVilla     PropertyType = "VILLA"
	PropertyPG        PropertyType = "PG"
	PropertyShop      PropertyType = "SHOP"
	PropertyOffice    PropertyType = "OFFICE"
	PropertyPlot      PropertyType = "PLOT"
)

// PropertyTypes lists every accepted property type.
var PropertyTypes = []PropertyType{
	PropertyApartment,
	PropertyVilla,
	PropertyPG,
	PropertyShop,
	PropertyOffice,
	PropertyPlot,
}

func (t PropertyType) Valid() bool {
	for _, known := range PropertyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Residential reports whether bedrooms are meaningful for the type.
func (t PropertyType) Residential() bool {
	switch t {
	case PropertyApartment, PropertyVilla, PropertyPG:
		return true
	}
	return false
}

type ListingType string

const (
	ListingRent ListingType = "RENT"
	ListingSell ListingType = "SELL"
)

func (l ListingType) Valid() bool {
	return l == ListingRent || l == ListingSell
}

// PropertyStatus is the lifecycle state of a listing.
type PropertyStatus string

const (
	StatusActive   PropertyStatus = "ACTIVE"
	StatusInactive PropertyStatus = "INACTIVE"
	StatusSold     PropertyStatus = "SOLD"
	StatusRented   PropertyStatus = "RENTED"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSold, StatusRented:
		return true
	}
	return false
}

type Furnishing string

const (
	FurnishingFully Furnishing = "FULLY"
	FurnishingSemi  Furnishing = "SEMI"
	FurnishingNone  Furnishing = "NONE"
)

func (f Furnishing) Valid() bool {
	switch f {
	case FurnishingFully, FurnishingSemi, FurnishingNone:
		return true
	}
	return false
}

type TenantType string

const (
	TenantFamily   TenantType = "FAMILY"
	TenantBachelor TenantType = "BACHELOR"
	TenantCompany  TenantType = "COMPANY"
	TenantAny      TenantType = "ANY"
)

func (t TenantType) Valid() bool {
	switch t {
	case TenantFamily, TenantBachelor, TenantCompany, TenantAny:
		return true
	}
	return false
}

type Availability string

const (
	AvailableImmediate Availability = "IMMEDIATE"
	AvailableWithin15  Availability = "WITHIN15"
	AvailableWithin30  Availability = "WITHIN30"
)

func (a Availability) Valid() bool {
	switch a {
	case AvailableImmediate, AvailableWithin15, AvailableWithin30:
		return true
	}
	return false
}

// Property is a rental or sale listing.
// Optional values are pointers: nil means absent, never zero.
type Property struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        PropertyType   `json:"type"`
	ListingType ListingType    `json:"listingType"`
	Status      PropertyStatus `json:"status"`

	// Price is in whole currency units.
	Price       int64  `json:"price"`
	Deposit     *int64 `json:"deposit,omitempty"`
	Maintenance *int64 `json:"maintenance,omitempty"`

	BHK         int          `json:"bhk"`
	Bathrooms   int          `json:"bathrooms"`
	BuiltUpArea int          `json:"builtUpArea"`
	Furnishing  Furnishing   `json:"furnishing"`
	TenantType  TenantType   `json:"tenantType"`
	Available   Availability `json:"availability"`

	Locality  string   `json:"locality"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Pincode   *string  `json:"pincode,omitempty"`
	Address   *string  `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Images is ordered; the first entry is the cover.
	Images    []string `json:"images"`
	Amenities []string `json:"amenities"`

	// ContactPhone overrides the owner's phone for contact requests.
	ContactPhone *string `json:"contactPhone,omitempty"`

	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	OwnerID string        `json:"ownerId"`
	Owner   PropertyOwner `json:"owner"`
}

// PropertyOwner is the public view of a listing's owner.
type PropertyOwner struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	IsVerified bool    `json:"isVerified"`
}

// Public returns a copy safe to show to any visitor. The contact override is
// only handed out through a contact reveal.
func (p Property) Public() Property {
	p.ContactPhone = nil
	return p
}

// PropertyPatch is a partial update. Nil fields are left unchanged.
// Optional fields use Optional so that an explicit null clears the value.
type PropertyPatch struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Type        *PropertyType   `json:"type"`
	ListingType *ListingType    `json:"listingType"`
	Price       *int64          `json:"price"`
	Deposit     Optional[int64] `json:"deposit"`
	Maintenance Optional[int64] `json:"maintenance"`
	BHK         *int            `json:"bhk"`
	Bathrooms   *int            `json:"bathrooms"`
	BuiltUpArea *int            `json:"builtUpArea"`
	Furnishing  *Furnishing     `json:"furnishing"`
	TenantType  *TenantType     `json:"tenantType"`
	Available   *Availability   `json:"availability"`
	Locality    *string         `json:"locality"`
	City        *string         `json:"city"`
	State       *string         `json:"state"`

	Pincode      Optional[string]  `json:"pincode"`
	Address      Optional[string]  `json:"address"`
	Latitude     Optional[float64] `json:"latitude"`
	Longitude    Optional[float64] `json:"longitude"`
	ContactPhone Optional[string]  `json:"contactPhone"`

	Images    *[]string `json:"images"`
	Amenities *[]string `json:"amenities"`

	// Status is set by status transitions only; it is not decoded from
	// update payloads.
	Status *PropertyStatus `json:"-"`
}

// Optional distinguishes an absent JSON key from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns an Optional that clears the value.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Apply returns p with the patch merged in. UpdatedAt is not touched.
func (patch PropertyPatch) Apply(p Property) Property {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.ListingType != nil {
		p.ListingType = *patch.ListingType
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Deposit.Set {
		p.Deposit = patch.Deposit.Value
	}
	if patch.Maintenance.Set {
		p.Maintenance = patch.Maintenance.Value
	}
	if patch.BHK != nil {
		p.BHK = *patch.BHK
	}
	if patch.Bathrooms != nil {
		p.Bathrooms = *patch.Bathrooms
	}
	if patch.BuiltUpArea != nil {
		p.BuiltUpArea = *patch.BuiltUpArea
	}
	if patch.Furnishing != nil {
		p.Furnishing = *patch.Furnishing
	}
	if patch.TenantType != nil {
		p.TenantType = *patch.TenantType
	}
	if patch.Available != nil {
		p.Available = *patch.Available
	}
	if patch.Locality != nil {
		p.Locality = *patch.Locality
	}
	if patch.City != nil {
		p.City = *patch.City
	}
	if patch.State != nil {
		p.State = *patch.State
	}
	if patch.Pincode.Set {
		p.Pincode = patch.Pincode.Value
	}
	if patch.Address.Set {
		p.Address = patch.Address.Value
	}
	if patch.Latitude.Set {
		p.Latitude = patch.Latitude.Value
	}
	if patch.Longitude.Set {
		p.Longitude = patch.Longitude.Value
	}
	if patch.ContactPhone.Set {
		p.ContactPhone = patch.ContactPhone.Value
	}
	if patch.Images != nil {
		p.Images = append([]string(nil), (*patch.Images)...)
	}
	if patch.Amenities != nil {
		p.Amenities = append([]string(nil), (*patch.Amenities)...)
	}
	return p
}

// Empty reports whether the patch changes nothing.
func (patch PropertyPatch) Empty() bool {
	return patch == PropertyPatch{}
}
