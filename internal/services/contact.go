package services

import (
	"context"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/events"
	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

// ContactService reveals owner phone numbers and keeps the audit log of every
// reveal.
type ContactService struct {
	props    PropertyRepository
	users    UserRepository
	contacts ContactRepository
	options
}

func NewContactService(props PropertyRepository, users UserRepository, contacts ContactRepository, opts ...Option) *ContactService {
	return &ContactService{props: props, users: users, contacts: contacts, options: newOptions(opts)}
}

// Reveal returns the contact details for a listing and appends one audit row.
// Repeated reveals are recorded again each time.
func (s *ContactService) Reveal(ctx context.Context, viewerID, propertyID string) (types.ContactInfo, error) {
	viewer, err := resolveCaller(ctx, s.users, viewerID)
	if err != nil {
		return types.ContactInfo{}, err
	}

	p, err := retryRead(ctx, "load property", func() (types.Property, error) {
		return s.props.Get(ctx, propertyID)
	})
	if err != nil {
		return types.ContactInfo{}, err
	}
	if p.Status != types.StatusActive && !canManage(viewer, p.OwnerID) {
		return types.ContactInfo{}, apperr.ErrNotFound
	}

	owner, err := retryRead(ctx, "load owner", func() (types.User, error) {
		return s.users.GetByID(ctx, p.OwnerID)
	})
	if err != nil {
		return types.ContactInfo{}, err
	}

	phone := owner.Phone
	if p.ContactPhone != nil {
		phone = p.ContactPhone
	}

	access, err := s.contacts.Create(ctx, types.ContactAccess{
		ViewerID:   viewer.ID,
		OwnerID:    p.OwnerID,
		PropertyID: p.ID,
	})
	if err != nil {
		return types.ContactInfo{}, apperr.Unavailable("record contact access", err)
	}

	s.publish(ctx, events.ContactRevealed, events.ContactRevealedEvent{
		AccessID:   access.ID,
		ViewerID:   access.ViewerID,
		OwnerID:    access.OwnerID,
		PropertyID: access.PropertyID,
		OccurredAt: access.Timestamp,
	})

	return types.ContactInfo{
		OwnerName:     owner.Name,
		OwnerPhone:    phone,
		IsVerified:    owner.IsVerified,
		PropertyTitle: p.Title,
	}, nil
}

// History lists the caller's own reveals, newest first.
func (s *ContactService) History(ctx context.Context, viewerID string, page, limit int) (types.Page[types.ContactAccess], error) {
	if viewerID == "" {
		return types.Page[types.ContactAccess]{}, apperr.ErrAuthenticationRequired
	}
	page, limit = clampWindow(page, limit)
	return findPage(ctx, "list contact history", page, limit, func() ([]types.ContactAccess, int, error) {
		return s.contacts.ListByViewer(ctx, viewerID, offset(page, limit), limit)
	})
}

// RevealCount returns how many times the listing's contact was revealed.
// Only the owner and admins may ask.
func (s *ContactService) RevealCount(ctx context.Context, callerID, propertyID string) (int, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return 0, err
	}
	p, err := retryRead(ctx, "load property", func() (types.Property, error) {
		return s.props.Get(ctx, propertyID)
	})
	if err != nil {
		return 0, err
	}
	if !canManage(caller, p.OwnerID) {
		return 0, apperr.ErrForbidden
	}
	return retryRead(ctx, "count contact access", func() (int, error) {
		return s.contacts.CountByProperty(ctx, p.ID)
	})
}

// AdminList returns the whole reveal log, newest first.
func (s *ContactService) AdminList(ctx context.Context, callerID string, page, limit int) (types.Page[types.ContactAccess], error) {
	if _, err := requireAdmin(ctx, s.users, callerID); err != nil {
		return types.Page[types.ContactAccess]{}, err
	}
	page, limit = clampWindow(page, limit)
	return findPage(ctx, "list contact access", page, limit, func() ([]types.ContactAccess, int, error) {
		return s.contacts.List(ctx, offset(page, limit), limit)
	})
}

func clampWindow(page, limit int) (int, int) {
	if page < 1 {
		page = search.DefaultPage
	}
	if limit < 1 {
		limit = search.DefaultLimit
	}
	if limit > search.MaxLimit {
		limit = search.MaxLimit
	}
	return page, limit
}
