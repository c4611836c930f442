package services

import (
	"context"
	"errors"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/events"
	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

const maxIdempotencyKeyLength = 128

// PropertyService manages listings: search, detail views and the
// ownership-gated lifecycle.
type PropertyService struct {
	props PropertyRepository
	users UserRepository
	options
}

func NewPropertyService(props PropertyRepository, users UserRepository, opts ...Option) *PropertyService {
	return &PropertyService{props: props, users: users, options: newOptions(opts)}
}

// Search returns one page of ACTIVE listings matching every supplied filter.
func (s *PropertyService) Search(ctx context.Context, f search.Filter) (types.Page[types.Property], error) {
	c := search.Compose(f)
	key := c.Key()

	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		page, loadedGen, ok, err := s.cache.Load(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "search cache read failed", "error", err)
		} else if ok {
			return page, nil
		} else {
			gen, cacheable = loadedGen, true
		}
	}

	page, err := s.find(ctx, "search properties", c)
	if err != nil {
		return types.Page[types.Property]{}, err
	}
	for i := range page.Items {
		page.Items[i] = page.Items[i].Public()
	}

	if cacheable {
		if err := s.cache.Store(ctx, key, gen, page); err != nil {
			s.logger.WarnContext(ctx, "search cache write failed", "error", err)
		}
	}
	return page, nil
}

// ListByOwner returns the caller's own listings in every status.
func (s *PropertyService) ListByOwner(ctx context.Context, callerID string, page, limit int) (types.Page[types.Property], error) {
	if callerID == "" {
		return types.Page[types.Property]{}, apperr.ErrAuthenticationRequired
	}
	return s.find(ctx, "list owner properties", search.ComposeOwner(callerID, page, limit))
}

// AdminList returns listings in any status, optionally narrowed by f.
func (s *PropertyService) AdminList(ctx context.Context, callerID string, f search.Filter) (types.Page[types.Property], error) {
	if _, err := requireAdmin(ctx, s.users, callerID); err != nil {
		return types.Page[types.Property]{}, err
	}
	return s.find(ctx, "list properties", search.ComposeAdmin(f))
}

func (s *PropertyService) find(ctx context.Context, op string, c search.Criteria) (types.Page[types.Property], error) {
	return findPage(ctx, op, c.Page, c.Limit, func() ([]types.Property, int, error) {
		return s.props.Find(ctx, c)
	})
}

// Get returns a listing for its detail page and counts the view. Listings
// that are not ACTIVE are only visible to their owner and to admins; everyone
// else gets NotFound. callerID may be empty.
func (s *PropertyService) Get(ctx context.Context, callerID, id string) (types.Property, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return types.Property{}, err
	}

	manager := false
	if callerID != "" {
		caller, err := resolveCaller(ctx, s.users, callerID)
		if err != nil && !errors.Is(err, apperr.ErrAuthenticationRequired) {
			return types.Property{}, err
		}
		manager = err == nil && canManage(caller, p.OwnerID)
	}
	if p.Status != types.StatusActive && !manager {
		return types.Property{}, apperr.ErrNotFound
	}

	if err := s.props.IncrementViews(ctx, p.ID); err != nil {
		s.logger.WarnContext(ctx, "view increment failed", "property_id", p.ID, "error", err)
	} else {
		p.Views++
	}

	if !manager {
		p = p.Public()
	}
	return p, nil
}

// Create posts a new ACTIVE listing owned by the caller. With a non-empty
// idempotencyKey a repeated call returns the listing created first, and
// created is false.
func (s *PropertyService) Create(ctx context.Context, callerID string, p types.Property, idempotencyKey string) (types.Property, bool, error) {
	if callerID == "" {
		return types.Property{}, false, apperr.ErrAuthenticationRequired
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		return types.Property{}, false, apperr.Invalid("Idempotency-Key", "is too long")
	}

	p = normalizeProperty(p)
	if err := validateProperty(p); err != nil {
		return types.Property{}, false, err
	}

	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return types.Property{}, false, err
	}

	if idempotencyKey != "" {
		existing, err := s.byIdempotencyKey(ctx, caller.ID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return types.Property{}, false, err
		}
	}

	p.ID = ""
	p.OwnerID = caller.ID
	p.Status = types.StatusActive
	p.Views = 0

	created, err := s.props.Create(ctx, p, idempotencyKey)
	if err != nil {
		if idempotencyKey != "" {
			// A concurrent request with the same key may have won the insert.
			if existing, lookupErr := s.byIdempotencyKey(ctx, caller.ID, idempotencyKey); lookupErr == nil {
				return existing, false, nil
			}
		}
		return types.Property{}, false, apperr.Unavailable("create property", err)
	}

	if caller.Role == types.RoleBuyer {
		if _, err := s.users.UpdateRole(ctx, caller.ID, types.RoleBuyer, types.RoleOwner); err != nil {
			s.logger.WarnContext(ctx, "owner promotion failed", "user_id", caller.ID, "error", err)
		}
	}

	s.invalidate(ctx)
	s.publish(ctx, events.PropertyCreated, events.PropertyEvent{
		PropertyID: created.ID,
		OwnerID:    created.OwnerID,
		ActorID:    caller.ID,
		Status:     created.Status,
		OccurredAt: created.CreatedAt,
	})
	return created, true, nil
}

func (s *PropertyService) byIdempotencyKey(ctx context.Context, ownerID, key string) (types.Property, error) {
	return retryRead(ctx, "load property by idempotency key", func() (types.Property, error) {
		return s.props.GetByIdempotencyKey(ctx, ownerID, key)
	})
}

// Update merges patch into the listing. Only supplied fields change.
func (s *PropertyService) Update(ctx context.Context, callerID, id string, patch types.PropertyPatch) (types.Property, error) {
	if callerID == "" {
		return types.Property{}, apperr.ErrAuthenticationRequired
	}
	patch.Status = nil
	if patch.Empty() {
		return types.Property{}, apperr.Invalid("", "no fields to update")
	}
	if err := validatePatchFields(patch); err != nil {
		return types.Property{}, err
	}

	before, caller, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return types.Property{}, err
	}

	merged := normalizeProperty(patch.Apply(before))
	if err := validateProperty(merged); err != nil {
		return types.Property{}, err
	}

	updated, err := s.props.Update(ctx, id, settlePatch(patch, before, merged))
	if err != nil {
		return types.Property{}, apperr.Unavailable("update property", err)
	}

	s.invalidate(ctx)
	s.publish(ctx, events.PropertyUpdated, events.PropertyEvent{
		PropertyID: updated.ID,
		OwnerID:    updated.OwnerID,
		ActorID:    caller.ID,
		Status:     updated.Status,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// UpdateStatus moves a listing to status. Every status is reachable from
// every other one.
func (s *PropertyService) UpdateStatus(ctx context.Context, callerID, id string, status types.PropertyStatus) (types.Property, error) {
	if callerID == "" {
		return types.Property{}, apperr.ErrAuthenticationRequired
	}
	status = types.PropertyStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return types.Property{}, apperr.Invalid("status", "must be ACTIVE, INACTIVE, SOLD or RENTED")
	}

	before, caller, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return types.Property{}, err
	}

	updated, err := s.props.Update(ctx, id, types.PropertyPatch{Status: &status})
	if err != nil {
		return types.Property{}, apperr.Unavailable("update property status", err)
	}

	s.invalidate(ctx)
	s.publish(ctx, events.PropertyStatusChanged, events.PropertyEvent{
		PropertyID:     updated.ID,
		OwnerID:        updated.OwnerID,
		ActorID:        caller.ID,
		Status:         updated.Status,
		PreviousStatus: before.Status,
		OccurredAt:     updated.UpdatedAt,
	})
	return updated, nil
}

// Delete removes a listing and its contact-access rows.
func (s *PropertyService) Delete(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return apperr.ErrAuthenticationRequired
	}
	before, caller, err := s.authorize(ctx, callerID, id)
	if err != nil {
		return err
	}
	if err := s.props.Delete(ctx, id); err != nil {
		return apperr.Unavailable("delete property", err)
	}

	s.invalidate(ctx)
	s.publish(ctx, events.PropertyDeleted, events.PropertyEvent{
		PropertyID:     before.ID,
		OwnerID:        before.OwnerID,
		ActorID:        caller.ID,
		PreviousStatus: before.Status,
		OccurredAt:     s.now(),
	})
	return nil
}

// IncrementView counts one view. Anyone may call it and repeats are counted.
func (s *PropertyService) IncrementView(ctx context.Context, id string) error {
	return apperr.Unavailable("increment views", s.props.IncrementViews(ctx, id))
}

func (s *PropertyService) load(ctx context.Context, id string) (types.Property, error) {
	if strings.TrimSpace(id) == "" {
		return types.Property{}, apperr.ErrNotFound
	}
	return retryRead(ctx, "load property", func() (types.Property, error) {
		return s.props.Get(ctx, id)
	})
}

// authorize loads the listing and checks that the caller owns it or is an
// admin. Existence is checked first.
func (s *PropertyService) authorize(ctx context.Context, callerID, id string) (types.Property, types.User, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return types.Property{}, types.User{}, err
	}
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return types.Property{}, types.User{}, err
	}
	if !canManage(caller, p.OwnerID) {
		return types.Property{}, types.User{}, apperr.ErrForbidden
	}
	return p, caller, nil
}
