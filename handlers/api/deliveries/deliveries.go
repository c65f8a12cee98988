package deliveries

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"cardforge/assets"
	"cardforge/core"
	"cardforge/export"
	"cardforge/handlers/auth"
	"cardforge/middleware"
	"cardforge/stores"
)

const (
	shareTokenLength = 10

	// viewerURLTTL is the lifetime of the signed face URLs handed to a
	// recipient. The viewer re-requests on expiry.
	viewerURLTTL = time.Hour
)

func claimsFrom(w http.ResponseWriter, r *http.Request) (*auth.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}
	return claims, true
}

// shareURL builds the public link for a token from PUBLIC_BASE_URL.
func shareURL(token string) string {
	base := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	return fmt.Sprintf("%s/c/%s", base, token)
}

// HandleDeliverCard exports the card's faces and mints its share link.
// Delivering twice is safe: the faces are re-exported from the latest
// design and the existing token is returned unchanged.
func HandleDeliverCard(store stores.Store, exporter *export.Exporter) http.HandlerFunc {
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

		doc, err := store.GetDesign(r.Context(), cardID)
		if err != nil {
			logrus.WithError(err).WithField("card_id", cardID).Error("Failed to load design for delivery")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load design"})
			return
		}

		// Once started, an export should finish even if the client hangs
		// up; a half-cancelled run would leave stale uploads behind.
		exportCtx := context.WithoutCancel(r.Context())
		if _, err := exporter.Export(exportCtx, claims.Subject, cardID, doc); err != nil {
			logrus.WithError(err).WithField("card_id", cardID).Error("Failed to export card")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export card"})
			return
		}

		var req struct {
			RecipientName string `json:"recipientName"`
		}
		_ = render.DecodeJSON(r.Body, &req)
		if req.RecipientName == "" {
			req.RecipientName = "Friend"
		}

		senderName := claims.Name
		if senderName == "" {
			senderName = claims.Login
		}

		delivery, err := store.GetDeliveryByCard(r.Context(), cardID)
		if errors.Is(err, core.ErrNotFound) {
			token, err := gonanoid.New(shareTokenLength)
			if err != nil {
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to mint share token"})
				return
			}
			delivery = &core.Delivery{
				ShareToken:    token,
				CardID:        cardID,
				RecipientName: req.RecipientName,
				SenderName:    senderName,
			}
			if err := store.CreateDelivery(r.Context(), delivery); err != nil {
				// Lost a race with a concurrent deliver; the winner's token
				// is the card's token.
				if errors.Is(err, core.ErrDeliveryExists) {
					delivery, err = store.GetDeliveryByCard(r.Context(), cardID)
				}
				if err != nil {
					logrus.WithError(err).WithField("card_id", cardID).Error("Failed to create delivery")
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, map[string]string{"error": "Failed to create delivery"})
					return
				}
			}
		} else if err != nil {
			logrus.WithError(err).WithField("card_id", cardID).Error("Failed to look up delivery")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create delivery"})
			return
		}

		render.JSON(w, r, map[string]string{
			"shareToken":    delivery.ShareToken,
			"shareUrl":      shareURL(delivery.ShareToken),
			"recipientName": delivery.RecipientName,
		})
	}
}

// HandleViewCard is the public recipient endpoint. Any failure to
// resolve the token or its exported faces is a plain 404: the response
// must not reveal whether a token was close to a real one.
func HandleViewCard(store stores.Store, storage assets.Storage) http.HandlerFunc {
	notFound := func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Card not found"})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			notFound(w, r)
			return
		}

		delivery, err := store.GetDeliveryByToken(r.Context(), token)
		if err != nil {
			notFound(w, r)
			return
		}

		card, err := store.GetCardByID(r.Context(), delivery.CardID)
		if err != nil {
			logrus.WithError(err).WithField("card_id", delivery.CardID).Error("Delivery points at missing card")
			notFound(w, r)
			return
		}

		rec, err := store.GetFaceRecord(r.Context(), delivery.CardID)
		if err != nil || rec.FrontPath == "" || rec.InsideLeftPath == "" || rec.InsideRightPath == "" {
			// A delivered card should always have all three exports; treat a
			// partial record the same as a missing one.
			notFound(w, r)
			return
		}

		faces := make(map[string]string, 3)
		for faceID, path := range map[core.FaceID]string{
			core.FaceFront:       rec.FrontPath,
			core.FaceInsideLeft:  rec.InsideLeftPath,
			core.FaceInsideRight: rec.InsideRightPath,
		} {
			url, err := storage.SignedURL(r.Context(), path, viewerURLTTL)
			if err != nil {
				logrus.WithError(err).WithField("path", path).Error("Failed to sign face for viewer")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to load card"})
				return
			}
			faces[string(faceID)] = url
		}

		// Open counting is best-effort; a failed increment never blocks the
		// recipient.
		if err := store.IncrementOpenCount(r.Context(), token); err != nil {
			logrus.WithError(err).WithField("token", token).Warn("Failed to increment open count")
		}

		render.JSON(w, r, map[string]any{
			"card": map[string]string{
				"title":      card.Title,
				"senderName": delivery.SenderName,
			},
			"faces": faces,
		})
	}
}
