// Package store persists listing items, bids and orders in PostgreSQL and
// provides the lookup/update collaborators the handlers depend on.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/models"
)

// Postgres wraps the PostgreSQL database connection.
type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgres opens a connection pool and verifies connectivity.
func NewPostgres(connStr string, log *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db, log: log}, nil
}

// InitSchema creates the necessary database tables.
func (s *Postgres) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listing_items (
		id BIGSERIAL PRIMARY KEY,
		hash VARCHAR(64) UNIQUE NOT NULL,
		seller VARCHAR(255) NOT NULL,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id BIGSERIAL PRIMARY KEY,
		listing_item_id BIGINT NOT NULL REFERENCES listing_items(id) ON DELETE CASCADE,
		item_hash VARCHAR(64) NOT NULL,
		bidder VARCHAR(255) NOT NULL,
		amount DECIMAL(16, 8) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		hash VARCHAR(64) UNIQUE NOT NULL,
		address_id BIGINT NOT NULL,
		buyer VARCHAR(255) NOT NULL,
		seller VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL,
		generated_at BIGINT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		bid_id BIGINT NOT NULL,
		item_hash VARCHAR(64) NOT NULL,
		status VARCHAR(50) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_listing_items_hash ON listing_items(hash);
	CREATE INDEX IF NOT EXISTS idx_bids_listing_item_id ON bids(listing_item_id);
	CREATE INDEX IF NOT EXISTS idx_bids_status ON bids(status);
	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// FindListingItemByHash loads a listing item and its bids, newest bid
// first. Returns models.ErrListingItemNotFound when no row matches.
func (s *Postgres) FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error) {
	item := &models.ListingItem{}
	var expires sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, hash, seller, expires_at, created_at, updated_at
		FROM listing_items
		WHERE hash = $1
	`, hash).Scan(&item.ID, &item.Hash, &item.Seller, &expires, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrListingItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing item: %w", err)
	}
	if expires.Valid {
		item.ExpiresAt = expires.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_item_id, item_hash, bidder, amount, status, created_at, updated_at
		FROM bids
		WHERE listing_item_id = $1
		ORDER BY created_at DESC
	`, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bid models.Bid
		err := rows.Scan(
			&bid.ID,
			&bid.ListingItemID,
			&bid.ListingItemHash,
			&bid.Bidder,
			&bid.Amount,
			&bid.Status,
			&bid.CreatedAt,
			&bid.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		item.Bids = append(item.Bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}

	return item, nil
}

// UpdateBidStatus applies a status update as a single compare-and-swap
// statement. When update.Expected is set the row is only touched while it
// still holds that status; losing the race yields models.ErrBidConflict.
func (s *Postgres) UpdateBidStatus(ctx context.Context, bidID int64, update models.BidStatusUpdate) (*models.Bid, error) {
	query := `
		UPDATE bids
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND listing_item_id = $3
	`
	args := []any{update.Status, bidID, update.ListingItemID}
	if update.Expected != "" {
		query += ` AND status = $4`
		args = append(args, update.Expected)
	}
	query += `
		RETURNING id, listing_item_id, item_hash, bidder, amount, status, created_at, updated_at
	`

	bid := &models.Bid{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&bid.ID,
		&bid.ListingItemID,
		&bid.ListingItemHash,
		&bid.Bidder,
		&bid.Amount,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if update.Expected != "" {
			return nil, models.ErrBidConflict
		}
		return nil, models.ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update bid %d: %w", bidID, err)
	}

	return bid, nil
}

// InsertOrder persists an assembled order record and its items in one
// transaction.
func (s *Postgres) InsertOrder(ctx context.Context, record *models.OrderCreateRecord) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order := &models.Order{
		Hash:        record.Hash,
		AddressID:   record.AddressID,
		Buyer:       record.Buyer,
		Seller:      record.Seller,
		OrderItems:  record.OrderItems,
		Status:      record.Status,
		GeneratedAt: record.GeneratedAt,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (hash, address_id, buyer, seller, status, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, record.Hash, record.AddressID, record.Buyer, record.Seller, record.Status, record.GeneratedAt).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range record.OrderItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, bid_id, item_hash, status)
			VALUES ($1, $2, $3, $4)
		`, order.ID, item.BidID, item.ItemHash, item.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item for bid %d: %w", item.BidID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	s.log.Info("order persisted",
		zap.Int64("order_id", order.ID),
		zap.String("hash", order.Hash),
		zap.Int("items", len(order.OrderItems)))

	return order, nil
}

// Close closes the database connection.
func (s *Postgres) Close() error {
	return s.db.Close()
}
