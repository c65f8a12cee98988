package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	// Accepted upload formats; registration drives image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"cardforge/assets"
	"cardforge/handlers/auth"
	"cardforge/middleware"
	"cardforge/stores"
)

const (
	// maxAssetBytes caps a single uploaded image.
	maxAssetBytes = 10 << 20

	// signedURLTTL is how long a minted asset URL stays valid. Editors
	// re-sign on demand, so short is fine.
	signedURLTTL = time.Hour
)

// extensions maps registered decoder names to stored file extensions.
var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"webp": "webp",
}

func claimsFrom(w http.ResponseWriter, r *http.Request) (*auth.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}
	return claims, true
}

// HandleUploadAsset accepts a multipart image upload, verifies it decodes
// as png, jpeg or webp, and stores it under the card's asset prefix. The
// response carries the stable storage path for use in image layers.
func HandleUploadAsset(store stores.Store, storage assets.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		cardID := chi.URLParam(r, "id")
		if _, err := store.GetCard(r.Context(), claims.Subject, cardID); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Card not found"})
			return
		}

		if err := r.ParseMultipartForm(maxAssetBytes); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid multipart request"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Missing file field"})
			return
		}
		defer file.Close()

		if header.Size > maxAssetBytes {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, map[string]string{"error": "Image too large"})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, maxAssetBytes+1))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read upload"})
			return
		}
		if len(data) > maxAssetBytes {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, map[string]string{"error": "Image too large"})
			return
		}

		// Trust the bytes, not the filename or declared content type.
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, map[string]string{"error": "File is not a supported image"})
			return
		}
		ext, ok := extensions[format]
		if !ok {
			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, map[string]string{"error": fmt.Sprintf("Unsupported image format %q", format)})
			return
		}

		key := assets.AssetPath(claims.Subject, cardID, ext)
		contentType := "image/" + format
		if err := storage.Upload(r.Context(), key, bytes.NewReader(data), contentType); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"card_id": cardID,
				"key":     key,
			}).Error("Failed to store uploaded asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store asset"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"card_id": cardID,
			"key":     key,
			"bytes":   len(data),
		}).Info("Asset uploaded")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"path": key})
	}
}

// HandleSignAsset resolves a stored asset path to a short-lived URL for
// the interactive canvas. Paths outside the caller's card prefix are
// rejected so users cannot sign each other's assets.
func HandleSignAsset(store stores.Store, storage assets.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		cardID := chi.URLParam(r, "id")
		if _, err := store.GetCard(r.Context(), claims.Subject, cardID); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Card not found"})
			return
		}

		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Asset path is required"})
			return
		}

		prefix := fmt.Sprintf("cards/%s/%s/", claims.Subject, cardID)
		if !strings.HasPrefix(req.Path, prefix) || strings.Contains(req.Path, "..") {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Asset path is outside this card"})
			return
		}

		url, err := storage.SignedURL(r.Context(), req.Path, signedURLTTL)
		if err != nil {
			logrus.WithError(err).WithField("path", req.Path).Warn("Failed to sign asset")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Asset not found"})
			return
		}

		render.JSON(w, r, map[string]any{
			"url":       url,
			"expiresIn": int(signedURLTTL.Seconds()),
		})
	}
}
