package types

import "time"

// ContactAccess is one audit event: a viewer revealed an owner's contact for
// a property. Rows are append-only.
type ContactAccess struct {
	ID         string    `json:"id"`
	ViewerID   string    `json:"viewerId"`
	OwnerID    string    `json:"ownerId"`
	PropertyID string    `json:"propertyId"`
	Timestamp  time.Time `json:"timestamp"`

	// PropertyTitle is filled by history queries that join the property.
	PropertyTitle string `json:"propertyTitle,omitempty"`
}

// ContactInfo is returned by a successful reveal.
type ContactInfo struct {
	OwnerName     *string `json:"ownerName"`
	OwnerPhone    *string `json:"ownerPhone"`
	IsVerified    bool    `json:"isVerified"`
	PropertyTitle string  `json:"propertyTitle"`
}
