// Package sqlitestore is the dependency-light ObservationStore: plain
// database/sql over the cgo-free modernc driver with hand-written DDL.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pricewatch/internal/store"
	storemodel "pricewatch/internal/store/model"
	"pricewatch/internal/types"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

var _ store.ObservationStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Store{path: path, db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Initialize(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_history (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			sku       TEXT NOT NULL,
			site      TEXT,
			price     REAL,
			shipping  REAL NOT NULL DEFAULT 0,
			available INTEGER NOT NULL DEFAULT 0,
			ts        INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ix_price_history_sku_ts ON price_history (sku, ts);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			sku        TEXT NOT NULL,
			price      REAL,
			channel    TEXT,
			delivered  INTEGER NOT NULL DEFAULT 0,
			error      TEXT,
			message    TEXT,
			payload    TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ix_notifications_sku ON notifications (sku);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, obs types.Observation) error {
	if strings.TrimSpace(obs.SKU) == "" {
		return fmt.Errorf("sqlitestore: sku is required")
	}
	row := storemodel.NewObservationModel(obs)
	var price any
	if row.Price != nil {
		price = *row.Price
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var latest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(ts) FROM price_history WHERE sku = ?`, row.SKU).Scan(&latest); err != nil {
		return err
	}
	if latest.Valid && latest.Int64 > row.TS {
		return store.ErrOutOfOrder
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (sku, site, price, shipping, available, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		row.SKU, row.Site, price, row.Shipping, row.Available, row.TS); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TrailingLow(ctx context.Context, sku string, window time.Duration, asOf time.Time) (float64, bool, error) {
	from, to := store.WindowBounds(window, asOf)
	var low sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(price) FROM price_history WHERE sku = ? AND ts >= ? AND ts <= ? AND price IS NOT NULL`,
		sku, from, to).Scan(&low)
	if err != nil {
		return 0, false, err
	}
	if !low.Valid {
		return 0, false, nil
	}
	return low.Float64, true, nil
}

func (s *Store) History(ctx context.Context, sku string, since time.Time, limit int) ([]types.Observation, error) {
	query := `SELECT sku, site, price, shipping, available, ts FROM price_history WHERE sku = ? AND ts >= ? ORDER BY ts DESC`
	args := []any{sku, since.UTC().UnixNano()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Observation
	for rows.Next() {
		var (
			m     storemodel.ObservationModel
			site  sql.NullString
			price sql.NullFloat64
		)
		if err := rows.Scan(&m.SKU, &site, &price, &m.Shipping, &m.Available, &m.TS); err != nil {
			return nil, err
		}
		m.Site = site.String
		if price.Valid {
			p := price.Float64
			m.Price = &p
		}
		out = append(out, m.Observation())
	}
	return out, rows.Err()
}

func (s *Store) RecordNotification(ctx context.Context, rec store.NotificationRecord) error {
	payload, err := storemodel.EncodePayload(rec.Payload)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, sku, price, channel, delivered, error, message, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING;`,
		rec.ID, rec.SKU, rec.Price, rec.Channel, rec.Delivered, rec.Error, rec.Message, string(payload), rec.CreatedAt.UTC().UnixNano())
	return err
}

// Notifications lists the log for sku, newest first.
func (s *Store) Notifications(ctx context.Context, sku string, limit int) ([]store.NotificationRecord, error) {
	query := `SELECT id, sku, price, channel, delivered, error, message, payload, created_at FROM notifications WHERE sku = ? ORDER BY created_at DESC`
	args := []any{sku}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.NotificationRecord
	for rows.Next() {
		var (
			rec                            store.NotificationRecord
			channel, errText, msg, payload sql.NullString
			created                        int64
		)
		if err := rows.Scan(&rec.ID, &rec.SKU, &rec.Price, &channel, &rec.Delivered, &errText, &msg, &payload, &created); err != nil {
			return nil, err
		}
		rec.Channel, rec.Error, rec.Message = channel.String, errText.String, msg.String
		rec.CreatedAt = time.Unix(0, created).UTC()
		if decoded, err := storemodel.DecodePayload([]byte(payload.String)); err == nil {
			rec.Payload = decoded
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
