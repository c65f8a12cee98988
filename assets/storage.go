package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"cardforge/assets/filesystem"
	"cardforge/assets/memory"
	"cardforge/assets/s3"
)

// Storage is the blob boundary for card assets and rendered faces.
// Keys are opaque storage paths, never public URLs.
type Storage interface {
	// Upload writes the object at key, overwriting any previous version.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// SignedURL returns a time-limited read URL for the object at key.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// FacePath is the canonical location of a rendered face image.
func FacePath(userID, cardID, faceID string) string {
	return fmt.Sprintf("cards/%s/%s/faces/%s.png", userID, cardID, faceID)
}

// AssetPath mints a fresh location for an uploaded asset. The extension
// comes from the detected image format, not the client filename.
func AssetPath(userID, cardID, ext string) string {
	return fmt.Sprintf("cards/%s/%s/assets/%s.%s", userID, cardID, ulid.Make().String(), ext)
}

func GetStorage() Storage {
	storageType := os.Getenv("ASSET_STORAGE_TYPE")
	var storage Storage

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "s3":
		bucketName := os.Getenv("ASSET_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("ASSET_BUCKET_NAME environment variable must be set for s3 asset storage")
		}
		storageField["bucketName"] = bucketName
		storage = s3.NewStorage(bucketName)
	case "filesystem":
		basePath := os.Getenv("ASSET_STORAGE_PATH")
		if basePath == "" {
			basePath = "./assets-data"
		}
		storageField["basePath"] = basePath
		storage = filesystem.NewStorage(basePath, os.Getenv("ASSET_PUBLIC_PREFIX"))
	default:
		storage = memory.NewStorage()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use asset storage")
	return storage
}
