package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
	_ "github.com/lib/pq"
)

// PostgresStore persists carts in PostgreSQL, one row per line item
// keyed by a cart id fixed at construction. Used when the engine runs
// server-side and carts must survive the process.
type PostgresStore struct {
	db     *sql.DB
	cartID string
}

// ConnectPostgres opens a connection and verifies it.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB, cartID string) *PostgresStore {
	return &PostgresStore{db: db, cartID: cartID}
}

// EnsureSchema creates the cart tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cart_items (
			cart_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			data JSONB NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (cart_id, line_id)
		)`,
		`CREATE TABLE IF NOT EXISTS applied_coupons (
			cart_id TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM cart_items WHERE cart_id = $1 ORDER BY position ASC`,
		s.cartID,
	)
	if err != nil {
		log.Printf("[Store] Failed to load cart %s: %v", s.cartID, err)
		return nil, nil
	}
	defer rows.Close()

	var items []cart.LineItem
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var it cart.LineItem
		if err := json.Unmarshal(data, &it); err != nil {
			log.Printf("[Store] Corrupt line item in cart %s, skipping: %v", s.cartID, err)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *PostgresStore) Save(ctx context.Context, items []cart.LineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, s.cartID); err != nil {
		return err
	}
	for i, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, line_id, data, position) VALUES ($1, $2, $3, $4)`,
			s.cartID, it.ID, data, i,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err := cart.Upsert(current, item, increment)
	if err != nil {
		return current, err
	}
	if err := s.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) Remove(ctx context.Context, id string) ([]cart.LineItem, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	items := cart.Remove(current, id)
	if err := s.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, s.cartID)
	return err
}

func (s *PostgresStore) AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM applied_coupons WHERE cart_id = $1`, s.cartID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var details coupon.AppliedCouponDetails
	if err := json.Unmarshal(data, &details); err != nil {
		log.Printf("[Store] Corrupt applied coupon for cart %s, clearing: %v", s.cartID, err)
		return nil, nil
	}
	return &details, nil
}

func (s *PostgresStore) SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error {
	if details == nil {
		return s.ClearAppliedCoupon(ctx)
	}
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO applied_coupons (cart_id, data) VALUES ($1, $2)
		 ON CONFLICT (cart_id) DO UPDATE SET data = EXCLUDED.data`,
		s.cartID, data,
	)
	return err
}

func (s *PostgresStore) ClearAppliedCoupon(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM applied_coupons WHERE cart_id = $1`, s.cartID)
	return err
}
