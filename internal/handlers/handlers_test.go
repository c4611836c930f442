package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/auth"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/internal/store/memory"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/go-chi/chi/v5"
)

type testObjects struct {
	keys []string
}

func (o *testObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	o.keys = append(o.keys, key)
	return nil
}

func (o *testObjects) URL(key string) string {
	return "https://cdn.example.com/" + key
}

type testServer struct {
	t        *testing.T
	store    *memory.Store
	verifier *auth.Verifier
	server   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	verifier, err := auth.NewVerifier("handler-secret", "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	svc := Services{
		Properties: services.NewPropertyService(st.Properties(), st.Users()),
		Contacts:   services.NewContactService(st.Properties(), st.Users(), st.Contacts()),
		Users:      services.NewUserService(st.Users(), ""),
		Admin:      services.NewAdminService(st.Stats(), st.Users(), 30),
		Uploads:    services.NewUploadService(&testObjects{}, st.Users()),
	}
	router := chi.NewRouter()
	Mount(router, svc, verifier)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{t: t, store: st, verifier: verifier, server: srv}
}

func (s *testServer) token(subject string) string {
	s.t.Helper()
	token, err := s.verifier.Issue(types.Principal{Subject: subject, Email: subject + "@example.com", Name: "User " + subject}, time.Hour)
	if err != nil {
		s.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *testServer) do(method, path, token string, body any, headers map[string]string) *http.Response {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	s.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createBody(title string, price int64) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Bright flat near the metro",
		"type":        "APARTMENT",
		"listingType": "RENT",
		"price":       price,
		"bhk":         2,
		"bathrooms":   2,
		"builtUpArea": 900,
		"locality":    "Koramangala",
		"city":        "Bengaluru",
		"state":       "Karnataka",
		"images":      []string{"https://img.example.com/1.jpg"},
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(http.MethodGet, "/healthz", "", nil, nil), http.StatusOK)
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(http.MethodGet, "/auth/me", "", nil, nil), http.StatusUnauthorized)
	expectStatus(t, s.do(http.MethodGet, "/auth/me", "garbage", nil, nil), http.StatusUnauthorized)

	resp := s.do(http.MethodGet, "/auth/me", s.token("u1"), nil, nil)
	expectStatus(t, resp, http.StatusOK)
	me := decode[types.User](t, resp)
	if me.ID != "u1" || me.Role != types.RoleBuyer || me.Credits != types.DefaultCredits {
		t.Fatalf("unexpected user: %+v", me)
	}

	resp = s.do(http.MethodPatch, "/auth/me", s.token("u1"), map[string]any{"phone": "+91 98450 12345"}, nil)
	expectStatus(t, resp, http.StatusOK)
	if me := decode[types.User](t, resp); me.Phone == nil || *me.Phone != "+91 98450 12345" {
		t.Fatalf("phone not updated: %+v", me)
	}

	expectStatus(t, s.do(http.MethodPatch, "/auth/me", s.token("u1"), map[string]any{"role": "ADMIN"}, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPost, "/auth/elevate", s.token("u1"), map[string]any{"secret": "x"}, nil), http.StatusForbidden)
}

func TestPropertyLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := s.token("owner")
	viewer := s.token("viewer")
	expectStatus(t, s.do(http.MethodPatch, "/auth/me", owner, map[string]any{"phone": "+91 98450 00001"}, nil), http.StatusOK)

	expectStatus(t, s.do(http.MethodPost, "/properties", "", createBody("Anon", 1000), nil), http.StatusUnauthorized)

	invalid := createBody("No images", 20000)
	invalid["images"] = []string{}
	expectStatus(t, s.do(http.MethodPost, "/properties", owner, invalid, nil), http.StatusBadRequest)

	headers := map[string]string{idempotencyHeader: "create-1"}
	resp := s.do(http.MethodPost, "/properties", owner, createBody("2BHK Koramangala", 25000), headers)
	expectStatus(t, resp, http.StatusCreated)
	created := decode[types.Property](t, resp)

	resp = s.do(http.MethodPost, "/properties", owner, createBody("2BHK Koramangala", 25000), headers)
	expectStatus(t, resp, http.StatusOK)
	if again := decode[types.Property](t, resp); again.ID != created.ID {
		t.Fatalf("idempotent create returned %s, want %s", again.ID, created.ID)
	}

	resp = s.do(http.MethodGet, "/properties?listingType=rent&minPrice=20000&maxPrice=30000&city=bengaluru", "", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	page := decode[types.Page[types.Property]](t, resp)
	if page.Total != 1 || page.TotalPages != 1 || page.Items[0].ID != created.ID {
		t.Fatalf("unexpected search page: %+v", page)
	}
	resp = s.do(http.MethodGet, "/properties?listingType=SELL", "", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[types.Page[types.Property]](t, resp); page.Total != 0 {
		t.Fatalf("expected no SELL listings, got %d", page.Total)
	}
	expectStatus(t, s.do(http.MethodGet, "/properties?minPrice=abc", "", nil, nil), http.StatusBadRequest)

	path := "/properties/" + created.ID
	expectStatus(t, s.do(http.MethodPatch, path, viewer, map[string]any{"price": 1}, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodPatch, "/properties/missing", viewer, map[string]any{"price": 1}, nil), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPatch, path, owner, map[string]any{"prize": 1}, nil), http.StatusBadRequest)

	resp = s.do(http.MethodPatch, path, owner, map[string]any{"price": 27000, "deposit": nil}, nil)
	expectStatus(t, resp, http.StatusOK)
	if updated := decode[types.Property](t, resp); updated.Price != 27000 || updated.Title != "2BHK Koramangala" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	resp = s.do(http.MethodGet, path, "", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[types.Property](t, resp); got.Views != 1 {
		t.Fatalf("expected 1 view, got %d", got.Views)
	}
	expectStatus(t, s.do(http.MethodPost, path+"/views", "", nil, nil), http.StatusNoContent)

	expectStatus(t, s.do(http.MethodPost, path+"/contact", "", nil, nil), http.StatusUnauthorized)
	resp = s.do(http.MethodPost, path+"/contact", viewer, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	info := decode[types.ContactInfo](t, resp)
	if info.OwnerPhone == nil || *info.OwnerPhone != "+91 98450 00001" {
		t.Fatalf("unexpected contact info: %+v", info)
	}

	expectStatus(t, s.do(http.MethodGet, path+"/contact/count", viewer, nil, nil), http.StatusForbidden)
	resp = s.do(http.MethodGet, path+"/contact/count", owner, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if count := decode[CountResponse](t, resp); count.Count != 1 {
		t.Fatalf("expected one reveal, got %d", count.Count)
	}

	resp = s.do(http.MethodGet, "/contacts/history", viewer, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if history := decode[types.Page[types.ContactAccess]](t, resp); history.Total != 1 || history.Items[0].PropertyID != created.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	expectStatus(t, s.do(http.MethodPut, path+"/status", owner, map[string]any{"status": "ARCHIVED"}, nil), http.StatusBadRequest)
	resp = s.do(http.MethodPut, path+"/status", owner, map[string]any{"status": "RENTED"}, nil)
	expectStatus(t, resp, http.StatusOK)
	expectStatus(t, s.do(http.MethodGet, path, viewer, nil, nil), http.StatusNotFound)

	resp = s.do(http.MethodGet, "/properties/mine", owner, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if mine := decode[types.Page[types.Property]](t, resp); mine.Total != 1 || mine.Items[0].Status != types.StatusRented {
		t.Fatalf("unexpected owner listing: %+v", mine)
	}

	expectStatus(t, s.do(http.MethodDelete, path, viewer, nil, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodDelete, path, owner, nil, nil), http.StatusNoContent)
	expectStatus(t, s.do(http.MethodDelete, path, owner, nil, nil), http.StatusNotFound)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin")
	user := s.token("u1")

	expectStatus(t, s.do(http.MethodGet, "/auth/me", admin, nil, nil), http.StatusOK)
	adminUser, err := s.store.Users().GetByID(context.Background(), "admin")
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}
	adminUser.Role = types.RoleAdmin
	if _, err := s.store.Users().Update(context.Background(), adminUser); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	expectStatus(t, s.do(http.MethodPost, "/properties", user, createBody("Listing", 20000), nil), http.StatusCreated)

	expectStatus(t, s.do(http.MethodGet, "/admin/stats", "", nil, nil), http.StatusUnauthorized)
	expectStatus(t, s.do(http.MethodGet, "/admin/stats", user, nil, nil), http.StatusForbidden)

	resp := s.do(http.MethodGet, "/admin/stats", admin, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	overview := decode[types.Overview](t, resp)
	if overview.Totals.Users != 2 || overview.Totals.Properties != 1 || overview.Totals.ActiveProperties != 1 {
		t.Fatalf("unexpected totals: %+v", overview.Totals)
	}

	resp = s.do(http.MethodGet, "/admin/stats/trends?days=7", admin, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if trends := decode[types.Trends](t, resp); len(trends.Properties) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(trends.Properties))
	}
	expectStatus(t, s.do(http.MethodGet, "/admin/stats/trends?days=abc", admin, nil, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodGet, "/admin/stats/trends?days=0", admin, nil, nil), http.StatusBadRequest)

	resp = s.do(http.MethodGet, "/admin/users?q=u1", admin, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if users := decode[types.Page[types.User]](t, resp); users.Total != 1 {
		t.Fatalf("expected one matching user, got %d", users.Total)
	}

	resp = s.do(http.MethodPatch, "/admin/users/u1", admin, map[string]any{"isVerified": true}, nil)
	expectStatus(t, resp, http.StatusOK)
	if updated := decode[types.User](t, resp); !updated.IsVerified {
		t.Fatal("expected user verified")
	}

	resp = s.do(http.MethodGet, "/admin/properties?status=ACTIVE", admin, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[types.Page[types.Property]](t, resp); page.Total != 1 {
		t.Fatalf("expected one active listing, got %d", page.Total)
	}
	expectStatus(t, s.do(http.MethodGet, "/admin/contacts", admin, nil, nil), http.StatusOK)

	expectStatus(t, s.do(http.MethodDelete, "/admin/users/u1", admin, nil, nil), http.StatusNoContent)
	expectStatus(t, s.do(http.MethodDelete, "/admin/users/u1", admin, nil, nil), http.StatusNotFound)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(formFieldFile, "cover.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	_ = writer.Close()

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/uploads", &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token("u1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusCreated)
	upload := decode[UploadResponse](t, resp)
	if !strings.HasPrefix(upload.URL, "https://cdn.example.com/properties/u1/") {
		t.Fatalf("unexpected url %q", upload.URL)
	}

	expectStatus(t, s.do(http.MethodPost, "/uploads", s.token("u1"), map[string]any{}, nil), http.StatusBadRequest)
}
