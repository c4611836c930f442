package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/store/memory"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

var testEpoch = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

type recordedEvent struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.events))
	for _, e := range p.events {
		topics = append(topics, e.topic)
	}
	return topics
}

// mapCache keys pages by generation like the Redis cache does.
type mapCache struct {
	mu            sync.Mutex
	gen           int64
	pages         map[string]types.Page[types.Property]
	invalidations int
}

func genKey(gen int64, key string) string {
	return fmt.Sprintf("%d|%s", gen, key)
}

func newMapCache() *mapCache {
	return &mapCache{pages: make(map[string]types.Page[types.Property])}
}

func (c *mapCache) Load(ctx context.Context, key string) (types.Page[types.Property], int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[genKey(c.gen, key)]
	return page, c.gen, ok, nil
}

func (c *mapCache) Store(ctx context.Context, key string, gen int64, page types.Page[types.Property]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[genKey(gen, key)] = page
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[string]types.Page[types.Property])
	c.gen++
	c.invalidations++
	return nil
}

type fixture struct {
	store    *memory.Store
	events   *recordingPublisher
	cache    *mapCache
	props    *PropertyService
	contacts *ContactService
	users    *UserService
	admin    *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	tick := 0
	st.Now = func() time.Time {
		tick++
		return testEpoch.Add(time.Duration(tick) * time.Minute)
	}

	f := &fixture{store: st, events: &recordingPublisher{}, cache: newMapCache()}
	opts := []Option{
		WithEvents(f.events),
		WithCache(f.cache),
		WithClock(func() time.Time { return testEpoch.Add(24 * time.Hour) }),
	}
	f.props = NewPropertyService(st.Properties(), st.Users(), opts...)
	f.contacts = NewContactService(st.Properties(), st.Users(), st.Contacts(), opts...)
	f.users = NewUserService(st.Users(), "", opts...)
	f.admin = NewAdminService(st.Stats(), st.Users(), 30, opts...)
	return f
}

func (f *fixture) addUser(t *testing.T, id string, role types.Role, phone string) types.User {
	t.Helper()
	name := "User " + id
	user := types.User{ID: id, Name: &name, Role: role, Credits: types.DefaultCredits}
	if phone != "" {
		user.Phone = &phone
	}
	created, err := f.store.Users().Upsert(context.Background(), user)
	if err != nil {
		t.Fatalf("add user %s: %v", id, err)
	}
	return created
}

func (f *fixture) addListing(t *testing.T, ownerID string, p types.Property) types.Property {
	t.Helper()
	created, _, err := f.props.Create(context.Background(), ownerID, p, "")
	if err != nil {
		t.Fatalf("create listing %q: %v", p.Title, err)
	}
	return created
}

func listing(title string, listingType types.ListingType, price int64) types.Property {
	return types.Property{
		Title:       title,
		Description: "Sunny flat close to the station",
		Type:        types.PropertyApartment,
		ListingType: listingType,
		Price:       price,
		BHK:         2,
		Bathrooms:   2,
		BuiltUpArea: 950,
		Locality:    "Andheri West",
		City:        "Mumbai",
		State:       "Maharashtra",
		Images:      []string{"https://img.example.com/cover.jpg"},
	}
}

func ptr[T any](v T) *T {
	return &v
}
