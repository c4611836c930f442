// Package search turns listing filters into store-agnostic predicates.
package search

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/types"
)

// Field names a filterable property attribute.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldLocality    Field = "locality"
	FieldCity        Field = "city"
	FieldType        Field = "type"
	FieldListingType Field = "listingType"
	FieldBHK         Field = "bhk"
	FieldFurnishing  Field = "furnishing"
	FieldPrice       Field = "price"
	FieldStatus      Field = "status"
	FieldOwnerID     Field = "ownerId"
)

// Op is a predicate operator.
type Op int

const (
	// OpEq is exact equality.
	OpEq Op = iota
	// OpContains is a case-insensitive substring match. With more than one
	// field the predicate holds if any field contains the value.
	OpContains
	// OpGte is an inclusive lower bound.
	OpGte
	// OpLte is an inclusive upper bound.
	OpLte
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpContains:
		return "contains"
	case OpGte:
		return "gte"
	case OpLte:
		return "lte"
	default:
		return "unknown"
	}
}

// Predicate is one condition. Values are string, int or int64 depending on
// the field.
type Predicate struct {
	Op     Op
	Fields []Field
	Value  any
}

// Criteria is a conjunction of predicates plus a pagination window.
// Results are ordered by creation time descending, then id descending.
type Criteria struct {
	Predicates []Predicate
	Page       int
	Limit      int
}

// Offset returns the number of rows to skip for Page.
func (c Criteria) Offset() int {
	return Offset(c.Page, c.Limit)
}

// Offset returns (page-1)*limit, saturating at math.MaxInt so that a page
// far past the end skips every row instead of wrapping negative.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// Key is a canonical text form of the criteria, stable under predicate order.
func (c Criteria) Key() string {
	parts := make([]string, 0, len(c.Predicates)+2)
	for _, p := range c.Predicates {
		fields := make([]string, len(p.Fields))
		for i, f := range p.Fields {
			fields[i] = string(f)
		}
		parts = append(parts, fmt.Sprintf("%s:%s=%v", strings.Join(fields, "|"), p.Op, p.Value))
	}
	sort.Strings(parts)
	parts = append(parts, fmt.Sprintf("page=%d", c.Page), fmt.Sprintf("limit=%d", c.Limit))
	return strings.Join(parts, "&")
}

// Matches reports whether p satisfies every predicate.
func (c Criteria) Matches(p types.Property) bool {
	for _, pred := range c.Predicates {
		if !pred.Matches(p) {
			return false
		}
	}
	return true
}

// Matches evaluates the predicate against a property in memory.
func (pred Predicate) Matches(p types.Property) bool {
	switch pred.Op {
	case OpContains:
		needle := strings.ToLower(fmt.Sprint(pred.Value))
		for _, f := range pred.Fields {
			if strings.Contains(strings.ToLower(fmt.Sprint(FieldValue(p, f))), needle) {
				return true
			}
		}
		return false
	case OpEq:
		for _, f := range pred.Fields {
			if fmt.Sprint(FieldValue(p, f)) != fmt.Sprint(pred.Value) {
				return false
			}
		}
		return true
	case OpGte, OpLte:
		bound, ok := toInt64(pred.Value)
		if !ok {
			return false
		}
		for _, f := range pred.Fields {
			v, ok := toInt64(FieldValue(p, f))
			if !ok {
				return false
			}
			if pred.Op == OpGte && v < bound {
				return false
			}
			if pred.Op == OpLte && v > bound {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FieldValue returns the value of field f on p.
func FieldValue(p types.Property, f Field) any {
	switch f {
	case FieldTitle:
		return p.Title
	case FieldDescription:
		return p.Description
	case FieldLocality:
		return p.Locality
	case FieldCity:
		return p.City
	case FieldType:
		return string(p.Type)
	case FieldListingType:
		return string(p.ListingType)
	case FieldBHK:
		return p.BHK
	case FieldFurnishing:
		return string(p.Furnishing)
	case FieldPrice:
		return p.Price
	case FieldStatus:
		return string(p.Status)
	case FieldOwnerID:
		return p.OwnerID
	default:
		return nil
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
