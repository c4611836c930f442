// Package services holds the use-cases of the listing platform. Services take
// the caller's user id explicitly and never see HTTP types.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

// PropertyRepository defines persistence operations for listings.
type PropertyRepository interface {
	Get(ctx context.Context, id string) (types.Property, error)
	GetByIdempotencyKey(ctx context.Context, ownerID, key string) (types.Property, error)
	Find(ctx context.Context, c search.Criteria) ([]types.Property, int, error)
	Create(ctx context.Context, p types.Property, idempotencyKey string) (types.Property, error)
	Update(ctx context.Context, id string, patch types.PropertyPatch) (types.Property, error)
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	Upsert(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	// UpdateRole sets role to `to` only while it is still `from`, leaving the
	// rest of the row alone. It reports whether the row changed.
	UpdateRole(ctx context.Context, id string, from, to types.Role) (bool, error)
	List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error)
	Delete(ctx context.Context, id string) error
}

// ContactRepository defines persistence operations for the contact audit log.
type ContactRepository interface {
	Create(ctx context.Context, access types.ContactAccess) (types.ContactAccess, error)
	ListByViewer(ctx context.Context, viewerID string, offset, limit int) ([]types.ContactAccess, int, error)
	List(ctx context.Context, offset, limit int) ([]types.ContactAccess, int, error)
	CountByProperty(ctx context.Context, propertyID string) (int, error)
}

// StatsRepository defines the aggregate reads behind the admin dashboard.
type StatsRepository interface {
	Totals(ctx context.Context) (types.Totals, error)
	PropertiesByCity(ctx context.Context) ([]types.GroupCount, error)
	PropertiesByType(ctx context.Context) ([]types.GroupCount, error)
	UsersByRole(ctx context.Context) ([]types.GroupCount, error)
	DailyCounts(ctx context.Context, series string, since time.Time) ([]types.DayCount, error)
}

// SearchCache stores rendered search pages.
// Load reports the generation it looked in; Store must be given that
// generation so that pages computed across an Invalidate are discarded.
type SearchCache interface {
	Load(ctx context.Context, key string) (page types.Page[types.Property], gen int64, ok bool, err error)
	Store(ctx context.Context, key string, gen int64, page types.Page[types.Property]) error
	Invalidate(ctx context.Context) error
}

// EventPublisher emits domain events after a successful write.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Option configures the optional collaborators of a service.
type Option func(*options)

type options struct {
	logger *slog.Logger
	cache  SearchCache
	events EventPublisher
	now    func() time.Time
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithCache(cache SearchCache) Option {
	return func(o *options) { o.cache = cache }
}

func WithEvents(events EventPublisher) Option {
	return func(o *options) { o.events = events }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(ctx context.Context, topic string, event any) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, topic, event); err != nil {
		o.logger.WarnContext(ctx, "event publish failed", "topic", topic, "error", err)
	}
}

func (o options) invalidate(ctx context.Context) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx); err != nil {
		o.logger.WarnContext(ctx, "search cache invalidation failed", "error", err)
	}
}

// resolveCaller loads the user behind callerID. An empty or unknown id means
// the caller's identity was never established.
func resolveCaller(ctx context.Context, users UserRepository, callerID string) (types.User, error) {
	if callerID == "" {
		return types.User{}, apperr.ErrAuthenticationRequired
	}
	caller, err := retryRead(ctx, "load caller", func() (types.User, error) {
		return users.GetByID(ctx, callerID)
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return types.User{}, apperr.ErrAuthenticationRequired
	}
	return caller, err
}

func requireAdmin(ctx context.Context, users UserRepository, callerID string) (types.User, error) {
	caller, err := resolveCaller(ctx, users, callerID)
	if err != nil {
		return types.User{}, err
	}
	if !caller.IsAdmin() {
		return types.User{}, apperr.ErrForbidden
	}
	return caller, nil
}

func canManage(caller types.User, ownerID string) bool {
	return caller.ID == ownerID || caller.IsAdmin()
}

type found[T any] struct {
	items []T
	total int
}

func findPage[T any](ctx context.Context, op string, page, limit int, fn func() ([]T, int, error)) (types.Page[T], error) {
	result, err := retryRead(ctx, op, func() (found[T], error) {
		items, total, err := fn()
		return found[T]{items: items, total: total}, err
	})
	if err != nil {
		return types.Page[T]{}, err
	}
	return types.NewPage(result.items, page, limit, result.total), nil
}

func offset(page, limit int) int {
	return search.Offset(page, limit)
}
