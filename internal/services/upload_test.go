package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/store/memory"
	"github.com/flatwithoutbrokerage/flatapi/types"
)

type fakeObjects struct {
	keys         []string
	contentTypes []string
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.keys = append(f.keys, key)
	f.contentTypes = append(f.contentTypes, contentType)
	return nil
}

func (f *fakeObjects) URL(key string) string {
	return "https://cdn.example.com/" + key
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadImage(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	if _, err := st.Users().Upsert(ctx, types.User{ID: "u1", Role: types.RoleOwner}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	objects := &fakeObjects{}
	uploads := NewUploadService(objects, st.Users())

	url, err := uploads.UploadImage(ctx, "u1", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(objects.keys) != 1 {
		t.Fatalf("expected one stored object, got %d", len(objects.keys))
	}
	key := objects.keys[0]
	if !strings.HasPrefix(key, "properties/u1/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	if url != "https://cdn.example.com/"+key || objects.contentTypes[0] != "image/png" {
		t.Fatalf("unexpected url %q or content type %q", url, objects.contentTypes[0])
	}
}

func TestUploadImageRejections(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	if _, err := st.Users().Upsert(ctx, types.User{ID: "u1", Role: types.RoleOwner}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	objects := &fakeObjects{}
	uploads := NewUploadService(objects, st.Users())

	if _, err := uploads.UploadImage(ctx, "", bytes.NewReader(pngHeader)); !errors.Is(err, apperr.ErrAuthenticationRequired) {
		t.Fatalf("anonymous: expected authentication required, got %v", err)
	}

	inputs := map[string]io.Reader{
		"empty":     bytes.NewReader(nil),
		"text":      strings.NewReader("just some text"),
		"too large": io.MultiReader(bytes.NewReader(pngHeader), bytes.NewReader(make([]byte, MaxUploadBytes))),
	}
	for name, r := range inputs {
		if _, err := uploads.UploadImage(ctx, "u1", r); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(objects.keys) != 0 {
		t.Fatalf("rejected uploads must not be stored, got %v", objects.keys)
	}
}
