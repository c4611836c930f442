// Package memory is an in-process record store with the same semantics as
// the Postgres repositories. It backs tests and `server --store=memory`.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/internal/store"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/google/uuid"
)

var errForeignKey = errors.New("memory: foreign key violation")

// Store holds users, properties and contact-access rows.
type Store struct {
	mu         sync.RWMutex
	users      map[string]types.User
	properties map[string]types.Property
	idemKeys   map[string]string
	contacts   []types.ContactAccess

	// Now is the clock used for timestamps.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[string]types.User),
		properties: make(map[string]types.Property),
		idemKeys:   make(map[string]string),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepository          { return &UserRepository{s: s} }
func (s *Store) Properties() *PropertyRepository { return &PropertyRepository{s: s} }
func (s *Store) Contacts() *ContactRepository    { return &ContactRepository{s: s} }
func (s *Store) Stats() *StatsRepository         { return &StatsRepository{s: s} }

func (s *Store) withOwner(p types.Property) types.Property {
	p.Images = append([]string{}, p.Images...)
	p.Amenities = append([]string{}, p.Amenities...)
	p.Owner = types.PropertyOwner{ID: p.OwnerID}
	if owner, ok := s.users[p.OwnerID]; ok {
		p.Owner.Name = owner.Name
		p.Owner.IsVerified = owner.IsVerified
	}
	return p
}

// UserRepository is the users table.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.users[user.ID]; ok {
		return existing, nil
	}
	if user.Email != nil {
		for _, other := range r.s.users {
			if other.Email != nil && strings.EqualFold(*other.Email, *user.Email) {
				user.Email = nil
				break
			}
		}
	}
	now := r.s.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	existing.Name = user.Name
	existing.Phone = user.Phone
	existing.Role = user.Role
	existing.IsVerified = user.IsVerified
	existing.Credits = user.Credits
	existing.Avatar = user.Avatar
	existing.UpdatedAt = r.s.Now()
	r.s.users[user.ID] = existing
	return existing, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, from, to types.Role) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[id]
	if !ok || existing.Role != from {
		return false, nil
	}
	existing.Role = to
	existing.UpdatedAt = r.s.Now()
	r.s.users[id] = existing
	return true, nil
}

func (r *UserRepository) List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := strings.ToLower(q)
	var matched []types.User
	for _, user := range r.s.users {
		if needle != "" && !containsFold(user.Name, needle) && !containsFold(user.Email, needle) {
			continue
		}
		matched = append(matched, user)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return window(matched, offset, limit), len(matched), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}

	owned := make(map[string]bool)
	for pid, p := range r.s.properties {
		if p.OwnerID == id {
			owned[pid] = true
		}
	}
	kept := r.s.contacts[:0]
	for _, c := range r.s.contacts {
		if c.ViewerID == id || c.OwnerID == id || owned[c.PropertyID] {
			continue
		}
		kept = append(kept, c)
	}
	r.s.contacts = kept
	for pid := range owned {
		r.s.deletePropertyLocked(pid)
	}
	delete(r.s.users, id)
	return nil
}

// PropertyRepository is the properties table.
type PropertyRepository struct {
	s *Store
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (types.Property, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.s.withOwner(p), nil
}

func (r *PropertyRepository) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (types.Property, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.idemKeys[ownerID+"\x00"+key]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.s.withOwner(r.s.properties[id]), nil
}

func (r *PropertyRepository) Find(ctx context.Context, c search.Criteria) ([]types.Property, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []types.Property
	for _, p := range r.s.properties {
		if c.Matches(p) {
			matched = append(matched, r.s.withOwner(p))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := c.Limit
	if limit < 1 {
		limit = search.DefaultLimit
	}
	return window(matched, c.Offset(), limit), len(matched), nil
}

func (r *PropertyRepository) Create(ctx context.Context, p types.Property, idempotencyKey string) (types.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[p.OwnerID]; !ok {
		return types.Property{}, errForeignKey
	}
	if idempotencyKey != "" {
		if _, taken := r.s.idemKeys[p.OwnerID+"\x00"+idempotencyKey]; taken {
			return types.Property{}, errors.New("memory: duplicate idempotency key")
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.s.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Images = append([]string{}, p.Images...)
	p.Amenities = append([]string{}, p.Amenities...)
	r.s.properties[p.ID] = p
	if idempotencyKey != "" {
		r.s.idemKeys[p.OwnerID+"\x00"+idempotencyKey] = p.ID
	}
	return r.s.withOwner(p), nil
}

func (r *PropertyRepository) Update(ctx context.Context, id string, patch types.PropertyPatch) (types.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.properties[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	p = patch.Apply(p)
	p.UpdatedAt = r.s.Now()
	r.s.properties[id] = p
	return r.s.withOwner(p), nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.properties[id]; !ok {
		return store.ErrNotFound
	}
	kept := r.s.contacts[:0]
	for _, c := range r.s.contacts {
		if c.PropertyID != id {
			kept = append(kept, c)
		}
	}
	r.s.contacts = kept
	r.s.deletePropertyLocked(id)
	return nil
}

func (r *PropertyRepository) IncrementViews(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.properties[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Views++
	r.s.properties[id] = p
	return nil
}

func (s *Store) deletePropertyLocked(id string) {
	delete(s.properties, id)
	for key, pid := range s.idemKeys {
		if pid == id {
			delete(s.idemKeys, key)
		}
	}
}

// ContactRepository is the contact_access table.
type ContactRepository struct {
	s *Store
}

func (r *ContactRepository) Create(ctx context.Context, access types.ContactAccess) (types.ContactAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, viewerOK := r.s.users[access.ViewerID]
	_, ownerOK := r.s.users[access.OwnerID]
	_, propertyOK := r.s.properties[access.PropertyID]
	if !viewerOK || !ownerOK || !propertyOK {
		return types.ContactAccess{}, errForeignKey
	}
	access.ID = uuid.NewString()
	access.Timestamp = r.s.Now()
	access.PropertyTitle = ""
	r.s.contacts = append(r.s.contacts, access)
	return access, nil
}

func (r *ContactRepository) ListByViewer(ctx context.Context, viewerID string, offset, limit int) ([]types.ContactAccess, int, error) {
	return r.list(func(c types.ContactAccess) bool { return c.ViewerID == viewerID }, offset, limit)
}

func (r *ContactRepository) List(ctx context.Context, offset, limit int) ([]types.ContactAccess, int, error) {
	return r.list(func(types.ContactAccess) bool { return true }, offset, limit)
}

func (r *ContactRepository) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, c := range r.s.contacts {
		if c.PropertyID == propertyID {
			count++
		}
	}
	return count, nil
}

// All returns a copy of every row in insertion order.
func (r *ContactRepository) All() []types.ContactAccess {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]types.ContactAccess(nil), r.s.contacts...)
}

func (r *ContactRepository) list(keep func(types.ContactAccess) bool, offset, limit int) ([]types.ContactAccess, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []types.ContactAccess
	for i := len(r.s.contacts) - 1; i >= 0; i-- {
		c := r.s.contacts[i]
		if !keep(c) {
			continue
		}
		if p, ok := r.s.properties[c.PropertyID]; ok {
			c.PropertyTitle = p.Title
		}
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if limit < 1 {
		limit = 20
	}
	return window(matched, offset, limit), len(matched), nil
}

// StatsRepository computes dashboard rollups over the in-memory tables.
type StatsRepository struct {
	s *Store
}

func (r *StatsRepository) Totals(ctx context.Context) (types.Totals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	totals := types.Totals{
		Users:          len(r.s.users),
		Properties:     len(r.s.properties),
		ContactReveals: len(r.s.contacts),
	}
	for _, p := range r.s.properties {
		if p.Status == types.StatusActive {
			totals.ActiveProperties++
		}
	}
	return totals, nil
}

func (r *StatsRepository) PropertiesByCity(ctx context.Context) ([]types.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, p := range r.s.properties {
		counts[p.City]++
	}
	return sortedGroups(counts), nil
}

func (r *StatsRepository) PropertiesByType(ctx context.Context) ([]types.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, p := range r.s.properties {
		counts[string(p.Type)]++
	}
	return sortedGroups(counts), nil
}

func (r *StatsRepository) UsersByRole(ctx context.Context) ([]types.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, u := range r.s.users {
		counts[string(u.Role)]++
	}
	return sortedGroups(counts), nil
}

func (r *StatsRepository) DailyCounts(ctx context.Context, series string, since time.Time) ([]types.DayCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stamps []time.Time
	switch series {
	case store.SeriesProperties:
		for _, p := range r.s.properties {
			stamps = append(stamps, p.CreatedAt)
		}
	case store.SeriesUsers:
		for _, u := range r.s.users {
			stamps = append(stamps, u.CreatedAt)
		}
	case store.SeriesContactReveals:
		for _, c := range r.s.contacts {
			stamps = append(stamps, c.Timestamp)
		}
	default:
		return nil, errors.New("memory: unknown series " + series)
	}

	byDay := make(map[time.Time]int)
	for _, ts := range stamps {
		if ts.Before(since) {
			continue
		}
		ts = ts.UTC()
		byDay[time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)]++
	}
	counts := make([]types.DayCount, 0, len(byDay))
	for day, n := range byDay {
		counts = append(counts, types.DayCount{Day: day, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Day.Before(counts[j].Day) })
	return counts, nil
}

func sortedGroups(counts map[string]int) []types.GroupCount {
	groups := make([]types.GroupCount, 0, len(counts))
	for key, n := range counts {
		groups = append(groups, types.GroupCount{Key: key, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}

func containsFold(value *string, needle string) bool {
	return value != nil && strings.Contains(strings.ToLower(*value), needle)
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[offset:end]...)
}
