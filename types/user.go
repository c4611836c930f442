package types

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleBuyer Role = "BUYER"
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
)

// DefaultCredits is granted to every user on first sign-in.
const DefaultCredits = 10

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the system.
// The ID is issued by the identity provider and is opaque to this service.
type User struct {
	// ID is the identity provider's subject for this user.
	ID string `json:"id" db:"id"`

	// Name is the display name, absent until the provider or the user sets one.
	Name *string `json:"name,omitempty" db:"name"`

	// Email is unique when present.
	Email *string `json:"email,omitempty" db:"email"`

	// Phone is the owner's contact number, revealed through contact requests only.
	Phone *string `json:"phone,omitempty" db:"phone"`

	// Role is BUYER, OWNER or ADMIN. ADMIN is only granted by elevation.
	Role Role `json:"role" db:"role"`

	// IsVerified marks owners checked by an administrator.
	IsVerified bool `json:"isVerified" db:"is_verified"`

	// Credits is a balance reserved for paid features.
	Credits int `json:"credits" db:"credits"`

	// Avatar is a public image URL.
	Avatar *string `json:"avatar,omitempty" db:"avatar"`

	// CreatedAt is immutable.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal is an authenticated identity as asserted by the identity provider.
type Principal struct {
	Subject string
	Email   string
	Name    string
	Avatar  string
}

// ProfileUpdate carries the fields a user may change about themselves.
type ProfileUpdate struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Avatar *string `json:"avatar"`
}

// UserAdminUpdate carries the fields an administrator may change about a user.
type UserAdminUpdate struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	Role       *Role   `json:"role"`
	IsVerified *bool   `json:"isVerified"`
	Credits    *int    `json:"credits"`
}
