package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrUnsupportedContentType = errors.New("unsupported content type")

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// FileStorage issues short-lived URLs so clients move photo bytes directly to the bucket.
type FileStorage interface {
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// MealPhotoKey builds the object key of a meal checkpoint photo.
func MealPhotoKey(userID string, checkpointID int, contentType string) (string, error) {
	ext, ok := photoExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	return path.Join("meal-photos", userID, fmt.Sprintf("%d-%s%s", checkpointID, uuid.NewString(), ext)), nil
}

// IsMealPhotoKeyOf reports whether key lies in the user's meal photo prefix.
func IsMealPhotoKeyOf(userID, key string) bool {
	prefix := path.Join("meal-photos", userID) + "/"
	return userID != "" && strings.HasPrefix(key, prefix) && path.Clean(key) == key
}

// NoopStorage is used when no bucket is configured.
type NoopStorage struct{}

var ErrStorageDisabled = errors.New("photo storage not configured")

func (NoopStorage) GeneratePresignedUploadURL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (NoopStorage) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (NoopStorage) DeleteObject(context.Context, string) error {
	return ErrStorageDisabled
}
