package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"cardforge/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cards_user ON cards (user_id);

	CREATE TABLE IF NOT EXISTS card_designs (
		card_id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS card_faces (
		card_id TEXT PRIMARY KEY,
		front_path TEXT NOT NULL,
		inside_left_path TEXT NOT NULL,
		inside_right_path TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		share_token TEXT PRIMARY KEY,
		card_id TEXT NOT NULL UNIQUE,
		recipient_name TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		open_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`
	if _, err = db.Exec(schema); err != nil {
		log.Fatalf("failed to create tables: %v", err)
	}

	return &sqliteStore{db}
}

// CardStore implementation

func (s *sqliteStore) CreateCard(ctx context.Context, card *core.Card) error {
	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cards (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		card.ID, card.UserID, card.Title, card.CreatedAt, card.UpdatedAt)
	if err != nil {
		logrus.WithError(err).WithField("card_id", card.ID).Error("Failed to create card")
		return err
	}
	return nil
}

func (s *sqliteStore) ListCards(ctx context.Context, userID string) ([]*core.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM cards WHERE user_id = ? ORDER BY updated_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]*core.Card, 0)
	for rows.Next() {
		card := core.Card{UserID: userID}
		if err := rows.Scan(&card.ID, &card.Title, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, &card)
	}
	return cards, rows.Err()
}

func (s *sqliteStore) GetCard(ctx context.Context, userID, id string) (*core.Card, error) {
	card := core.Card{ID: id, UserID: userID}
	err := s.db.QueryRowContext(ctx,
		"SELECT title, created_at, updated_at FROM cards WHERE id = ? AND user_id = ?",
		id, userID).Scan(&card.Title, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (s *sqliteStore) GetCardByID(ctx context.Context, id string) (*core.Card, error) {
	card := core.Card{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, title, created_at, updated_at FROM cards WHERE id = ?",
		id).Scan(&card.UserID, &card.Title, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (s *sqliteStore) DeleteCard(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	for _, stmt := range []string{
		"DELETE FROM card_designs WHERE card_id = ?",
		"DELETE FROM card_faces WHERE card_id = ?",
		"DELETE FROM deliveries WHERE card_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DesignStore implementation

func (s *sqliteStore) GetDesign(ctx context.Context, cardID string) (*core.DesignerDocument, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM card_designs WHERE card_id = ?", cardID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	doc, err := core.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse design for card %s: %w", cardID, err)
	}
	return doc, nil
}

func (s *sqliteStore) SaveDesign(ctx context.Context, cardID string, doc *core.DesignerDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO card_designs (card_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		cardID, data, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "UPDATE cards SET updated_at = ? WHERE id = ?", now, cardID)
	return err
}

// FaceRecordStore implementation

func (s *sqliteStore) GetFaceRecord(ctx context.Context, cardID string) (*core.FaceRecord, error) {
	rec := core.FaceRecord{CardID: cardID}
	err := s.db.QueryRowContext(ctx,
		"SELECT front_path, inside_left_path, inside_right_path, updated_at FROM card_faces WHERE card_id = ?",
		cardID).Scan(&rec.FrontPath, &rec.InsideLeftPath, &rec.InsideRightPath, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *sqliteStore) UpsertFaceRecord(ctx context.Context, rec *core.FaceRecord) error {
	rec.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_faces (card_id, front_path, inside_left_path, inside_right_path, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			front_path = excluded.front_path,
			inside_left_path = excluded.inside_left_path,
			inside_right_path = excluded.inside_right_path,
			updated_at = excluded.updated_at`,
		rec.CardID, rec.FrontPath, rec.InsideLeftPath, rec.InsideRightPath, rec.UpdatedAt)
	return err
}

// DeliveryStore implementation

func (s *sqliteStore) CreateDelivery(ctx context.Context, d *core.Delivery) error {
	d.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO deliveries (share_token, card_id, recipient_name, sender_name, open_count, created_at) VALUES (?, ?, ?, ?, 0, ?)",
		d.ShareToken, d.CardID, d.RecipientName, d.SenderName, d.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.ErrDeliveryExists
		}
		return err
	}
	return nil
}

func (s *sqliteStore) GetDeliveryByCard(ctx context.Context, cardID string) (*core.Delivery, error) {
	return s.getDelivery(ctx, "card_id", cardID)
}

func (s *sqliteStore) GetDeliveryByToken(ctx context.Context, token string) (*core.Delivery, error) {
	return s.getDelivery(ctx, "share_token", token)
}

func (s *sqliteStore) getDelivery(ctx context.Context, column, value string) (*core.Delivery, error) {
	var d core.Delivery
	query := fmt.Sprintf(
		"SELECT share_token, card_id, recipient_name, sender_name, open_count, created_at FROM deliveries WHERE %s = ?",
		column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&d.ShareToken, &d.CardID, &d.RecipientName, &d.SenderName, &d.OpenCount, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *sqliteStore) IncrementOpenCount(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deliveries SET open_count = open_count + 1 WHERE share_token = ?", token)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}
