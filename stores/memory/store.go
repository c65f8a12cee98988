package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cardforge/core"
)

// memStore keeps everything behind one mutex; contention is not a
// concern for the in-memory backend.
type memStore struct {
	mu sync.RWMutex

	cards      map[string]*core.Card             // card id -> card
	designs    map[string]*core.DesignerDocument // card id -> document
	faces      map[string]*core.FaceRecord       // card id -> face record
	deliveries map[string]*core.Delivery         // share token -> delivery
	byCard     map[string]string                 // card id -> share token
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		cards:      make(map[string]*core.Card),
		designs:    make(map[string]*core.DesignerDocument),
		faces:      make(map[string]*core.FaceRecord),
		deliveries: make(map[string]*core.Delivery),
		byCard:     make(map[string]string),
	}
}

// CardStore implementation

func (s *memStore) CreateCard(ctx context.Context, card *core.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now
	copied := *card
	s.cards[card.ID] = &copied

	logrus.WithFields(logrus.Fields{"user_id": card.UserID, "card_id": card.ID}).Info("Card created")
	return nil
}

func (s *memStore) ListCards(ctx context.Context, userID string) ([]*core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := make([]*core.Card, 0)
	for _, card := range s.cards {
		if card.UserID != userID {
			continue
		}
		copied := *card
		cards = append(cards, &copied)
	}
	return cards, nil
}

func (s *memStore) GetCard(ctx context.Context, userID, id string) (*core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCardLocked(userID, id)
}

// getCardLocked requires at least a read lock. Ownership mismatches are
// indistinguishable from missing cards on purpose.
func (s *memStore) getCardLocked(userID, id string) (*core.Card, error) {
	card, ok := s.cards[id]
	if !ok || card.UserID != userID {
		return nil, core.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *memStore) GetCardByID(ctx context.Context, id string) (*core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *memStore) DeleteCard(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getCardLocked(userID, id); err != nil {
		return err
	}
	delete(s.cards, id)
	delete(s.designs, id)
	delete(s.faces, id)
	if token, ok := s.byCard[id]; ok {
		delete(s.deliveries, token)
		delete(s.byCard, id)
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "card_id": id}).Info("Card deleted")
	return nil
}

// DesignStore implementation

func (s *memStore) GetDesign(ctx context.Context, cardID string) (*core.DesignerDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.designs[cardID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *memStore) SaveDesign(ctx context.Context, cardID string, doc *core.DesignerDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.designs[cardID] = doc.Clone()
	if card, ok := s.cards[cardID]; ok {
		card.UpdatedAt = time.Now()
	}
	return nil
}

// FaceRecordStore implementation

func (s *memStore) GetFaceRecord(ctx context.Context, cardID string) (*core.FaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.faces[cardID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *memStore) UpsertFaceRecord(ctx context.Context, rec *core.FaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	copied.UpdatedAt = time.Now()
	s.faces[rec.CardID] = &copied
	rec.UpdatedAt = copied.UpdatedAt
	return nil
}

// DeliveryStore implementation

func (s *memStore) CreateDelivery(ctx context.Context, d *core.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCard[d.CardID]; ok {
		return core.ErrDeliveryExists
	}
	d.CreatedAt = time.Now()
	copied := *d
	s.deliveries[d.ShareToken] = &copied
	s.byCard[d.CardID] = d.ShareToken

	logrus.WithFields(logrus.Fields{"card_id": d.CardID}).Info("Delivery created")
	return nil
}

func (s *memStore) GetDeliveryByCard(ctx context.Context, cardID string) (*core.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.byCard[cardID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *s.deliveries[token]
	return &copied, nil
}

func (s *memStore) GetDeliveryByToken(ctx context.Context, token string) (*core.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[token]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *memStore) IncrementOpenCount(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[token]
	if !ok {
		return core.ErrNotFound
	}
	d.OpenCount++
	return nil
}
