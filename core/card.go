package core

import (
	"context"
	"time"
)

type (
	// Card is the unit of ownership: one card, one design, one optional
	// delivery.
	Card struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // not exposed in JSON responses, used internally
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// FaceRecord maps a card to the stable storage paths of its three
	// exported face bitmaps. It is written as a whole, never per-face: a
	// reader sees either the previous export or the new one, never a mix.
	FaceRecord struct {
		CardID          string    `json:"cardId"`
		FrontPath       string    `json:"frontPath"`
		InsideLeftPath  string    `json:"insideLeftPath"`
		InsideRightPath string    `json:"insideRightPath"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	// Delivery is the share link for a card. One delivery per card; the
	// open counter is best-effort, not an audit log.
	Delivery struct {
		ShareToken    string    `json:"shareToken"`
		CardID        string    `json:"cardId"`
		RecipientName string    `json:"recipientName"`
		SenderName    string    `json:"senderName"`
		OpenCount     int       `json:"openCount"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	// CardStore defines persistence for cards. All reads and deletes are
	// scoped to the owning user; a wrong owner behaves exactly like a
	// missing card (ErrNotFound).
	CardStore interface {
		CreateCard(ctx context.Context, card *Card) error
		ListCards(ctx context.Context, userID string) ([]*Card, error)
		GetCard(ctx context.Context, userID, id string) (*Card, error)
		// GetCardByID skips the ownership check. It exists for the public
		// viewer path only; authenticated handlers use GetCard.
		GetCardByID(ctx context.Context, id string) (*Card, error)
		DeleteCard(ctx context.Context, userID, id string) error
	}

	// DesignStore persists a card's designer document as one opaque value,
	// replaced wholesale on save.
	DesignStore interface {
		GetDesign(ctx context.Context, cardID string) (*DesignerDocument, error)
		SaveDesign(ctx context.Context, cardID string, doc *DesignerDocument) error
	}

	// FaceRecordStore persists the export lookup record. Upsert is atomic
	// and keyed by card id.
	FaceRecordStore interface {
		GetFaceRecord(ctx context.Context, cardID string) (*FaceRecord, error)
		UpsertFaceRecord(ctx context.Context, rec *FaceRecord) error
	}

	// DeliveryStore persists share links. CreateDelivery fails if the card
	// already has one; callers implement idempotency by checking first.
	DeliveryStore interface {
		CreateDelivery(ctx context.Context, d *Delivery) error
		GetDeliveryByCard(ctx context.Context, cardID string) (*Delivery, error)
		GetDeliveryByToken(ctx context.Context, token string) (*Delivery, error)
		IncrementOpenCount(ctx context.Context, token string) error
	}
)
