package store

import (
	"database/sql"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/lib/pq"
)

// propertyRow mirrors a row of the properties table.
type propertyRow struct {
	ID           string
	Title        string
	Description  string
	Type         string
	ListingType  string
	Status       string
	Price        int64
	Deposit      sql.NullInt64
	Maintenance  sql.NullInt64
	BHK          int
	Bathrooms    int
	BuiltUpArea  int
	Furnishing   string
	TenantType   string
	Availability string
	Locality     string
	City         string
	State        string
	Pincode      sql.NullString
	Address      sql.NullString
	Latitude     sql.NullFloat64
	Longitude    sql.NullFloat64
	Images       pq.StringArray
	Amenities    pq.StringArray
	ContactPhone sql.NullString
	Views        int64
	OwnerID      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ownerRow is the users side of a LEFT JOIN and may be entirely NULL.
type ownerRow struct {
	ID         sql.NullString
	Name       sql.NullString
	IsVerified sql.NullBool
}

// toDomain maps a storage row and its optional owner to a Property.
// A missing owner degrades to an unverified owner without a name.
func toDomain(row propertyRow, owner *ownerRow) types.Property {
	p := types.Property{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Type:         types.PropertyType(row.Type),
		ListingType:  types.ListingType(row.ListingType),
		Status:       types.PropertyStatus(row.Status),
		Price:        row.Price,
		Deposit:      int64Ptr(row.Deposit),
		Maintenance:  int64Ptr(row.Maintenance),
		BHK:          row.BHK,
		Bathrooms:    row.Bathrooms,
		BuiltUpArea:  row.BuiltUpArea,
		Furnishing:   types.Furnishing(row.Furnishing),
		TenantType:   types.TenantType(row.TenantType),
		Available:    types.Availability(row.Availability),
		Locality:     row.Locality,
		City:         row.City,
		State:        row.State,
		Pincode:      stringPtr(row.Pincode),
		Address:      stringPtr(row.Address),
		Latitude:     float64Ptr(row.Latitude),
		Longitude:    float64Ptr(row.Longitude),
		Images:       nonNil(row.Images),
		Amenities:    nonNil(row.Amenities),
		ContactPhone: stringPtr(row.ContactPhone),
		Views:        row.Views,
		OwnerID:      row.OwnerID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Owner:        types.PropertyOwner{ID: row.OwnerID},
	}
	if owner != nil && owner.ID.Valid {
		p.Owner.Name = stringPtr(owner.Name)
		p.Owner.IsVerified = owner.IsVerified.Valid && owner.IsVerified.Bool
	}
	return p
}

// toRow maps a Property to its storage row. Empty collections are stored as
// empty arrays, never NULL.
func toRow(p types.Property) propertyRow {
	return propertyRow{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Type:         string(p.Type),
		ListingType:  string(p.ListingType),
		Status:       string(p.Status),
		Price:        p.Price,
		Deposit:      nullInt64(p.Deposit),
		Maintenance:  nullInt64(p.Maintenance),
		BHK:          p.BHK,
		Bathrooms:    p.Bathrooms,
		BuiltUpArea:  p.BuiltUpArea,
		Furnishing:   string(p.Furnishing),
		TenantType:   string(p.TenantType),
		Availability: string(p.Available),
		Locality:     p.Locality,
		City:         p.City,
		State:        p.State,
		Pincode:      nullString(p.Pincode),
		Address:      nullString(p.Address),
		Latitude:     nullFloat64(p.Latitude),
		Longitude:    nullFloat64(p.Longitude),
		Images:       pq.StringArray(nonNil(p.Images)),
		Amenities:    pq.StringArray(nonNil(p.Amenities)),
		ContactPhone: nullString(p.ContactPhone),
		Views:        p.Views,
		OwnerID:      p.OwnerID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// assignment is one column = value pair of an UPDATE.
type assignment struct {
	column string
	value  any
}

// patchAssignments maps the supplied fields of a patch to storage columns.
// Absent fields produce no assignment.
func patchAssignments(patch types.PropertyPatch) []assignment {
	var out []assignment
	add := func(column string, value any) {
		out = append(out, assignment{column: column, value: value})
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.ListingType != nil {
		add("listing_type", string(*patch.ListingType))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Deposit.Set {
		add("deposit", nullInt64(patch.Deposit.Value))
	}
	if patch.Maintenance.Set {
		add("maintenance", nullInt64(patch.Maintenance.Value))
	}
	if patch.BHK != nil {
		add("bhk", *patch.BHK)
	}
	if patch.Bathrooms != nil {
		add("bathrooms", *patch.Bathrooms)
	}
	if patch.BuiltUpArea != nil {
		add("built_up_area", *patch.BuiltUpArea)
	}
	if patch.Furnishing != nil {
		add("furnishing", string(*patch.Furnishing))
	}
	if patch.TenantType != nil {
		add("tenant_type", string(*patch.TenantType))
	}
	if patch.Available != nil {
		add("availability", string(*patch.Available))
	}
	if patch.Locality != nil {
		add("locality", *patch.Locality)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.State != nil {
		add("state", *patch.State)
	}
	if patch.Pincode.Set {
		add("pincode", nullString(patch.Pincode.Value))
	}
	if patch.Address.Set {
		add("address", nullString(patch.Address.Value))
	}
	if patch.Latitude.Set {
		add("latitude", nullFloat64(patch.Latitude.Value))
	}
	if patch.Longitude.Set {
		add("longitude", nullFloat64(patch.Longitude.Value))
	}
	if patch.ContactPhone.Set {
		add("contact_phone", nullString(patch.ContactPhone.Value))
	}
	if patch.Images != nil {
		add("images", pq.StringArray(nonNil(*patch.Images)))
	}
	if patch.Amenities != nil {
		add("amenities", pq.StringArray(nonNil(*patch.Amenities)))
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string{}, values...)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func float64Ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
