package cards

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"cardforge/core"
	"cardforge/handlers/auth"
	"cardforge/middleware"
	"cardforge/stores"
)

// maxDesignBytes caps PUT design bodies. Documents are JSON, not pixel
// data, so anything larger is malformed or hostile.
const maxDesignBytes = 4 << 20

func claimsFrom(w http.ResponseWriter, r *http.Request) (*auth.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}
	return claims, true
}

func HandleCreateCard(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Title string `json:"title"`
		}
		// An empty body is fine; the title just defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Title == "" {
			req.Title = "Untitled Card"
		}

		card := &core.Card{
			ID:     ulid.Make().String(),
			UserID: claims.Subject,
			Title:  req.Title,
		}
		if err := store.CreateCard(r.Context(), card); err != nil {
			logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to create card")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create card"})
			return
		}

		// Every card starts with an empty design so the editor always has
		// something to load.
		if err := store.SaveDesign(r.Context(), card.ID, core.NewDocument()); err != nil {
			logrus.WithError(err).WithField("card_id", card.ID).Error("Failed to create initial design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create card"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, card)
	}
}

func HandleListCards(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		cards, err := store.ListCards(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to list cards")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list cards"})
			return
		}
		if cards == nil {
			cards = []*core.Card{}
		}
		render.JSON(w, r, cards)
	}
}

func HandleGetCard(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		card, err := store.GetCard(r.Context(), claims.Subject, chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Card not found"})
				return
			}
			logrus.WithError(err).Error("Failed to get card")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get card"})
			return
		}
		render.JSON(w, r, card)
	}
}

func HandleDeleteCard(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if err := store.DeleteCard(r.Context(), claims.Subject, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Card not found"})
				return
			}
			logrus.WithError(err).WithField("card_id", id).Error("Failed to delete card")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete card"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

func HandleGetDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := store.GetCard(r.Context(), claims.Subject, id); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Card not found"})
			return
		}

		doc, err := store.GetDesign(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			logrus.WithError(err).WithField("card_id", id).Error("Failed to get design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get design"})
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleSaveDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := store.GetCard(r.Context(), claims.Subject, id); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Card not found"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxDesignBytes))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		doc, err := core.ParseDocument(body)
		if err != nil {
			logrus.WithError(err).WithField("card_id", id).Warn("Rejected design document")
			status := http.StatusBadRequest
			msg := "Invalid design document"
			if errors.Is(err, core.ErrUnsupportedVersion) {
				msg = "Unsupported design version"
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		if err := store.SaveDesign(r.Context(), id, doc); err != nil {
			logrus.WithError(err).WithField("card_id", id).Error("Failed to save design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save design"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "saved"})
	}
}
