package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/google/uuid"
)

// MaxUploadBytes is the largest image accepted by UploadImage.
const MaxUploadBytes = 10 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectStore persists uploaded bytes and maps keys to public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(key string) string
}

// UploadService stores listing images and hands back their public URLs.
type UploadService struct {
	objects ObjectStore
	users   UserRepository
	options
}

func NewUploadService(objects ObjectStore, users UserRepository, opts ...Option) *UploadService {
	return &UploadService{objects: objects, users: users, options: newOptions(opts)}
}

// UploadImage stores one image for the caller. The content type is sniffed
// from the bytes; the client's claim is ignored.
func (s *UploadService) UploadImage(ctx context.Context, callerID string, r io.Reader) (string, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", apperr.Invalid("file", "could not be read")
	}
	if len(data) == 0 {
		return "", apperr.Invalid("file", "is empty")
	}
	if len(data) > MaxUploadBytes {
		return "", apperr.Invalid("file", "exceeds 10 MiB")
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", apperr.Invalid("file", "must be a JPEG, PNG, GIF or WebP image")
	}

	key := fmt.Sprintf("properties/%s/%s%s", caller.ID, uuid.NewString(), ext)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", apperr.Unavailable("store image", err)
	}
	s.logger.InfoContext(ctx, "image uploaded", "user_id", caller.ID, "key", key, "bytes", len(data))
	return s.objects.URL(key), nil
}
