package gormstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/store"
	storemodel "pricewatch/internal/store/model"
	"pricewatch/internal/types"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// registers the cgo-free "sqlite" driver used by sqlite_pure.
	_ "modernc.org/sqlite"
)

type observationModel = storemodel.ObservationModel
type notificationModel = storemodel.NotificationModel

// GormStore implements store.ObservationStore on top of gorm.
type GormStore struct {
	db *gorm.DB
	// serializes appends so the ordering check and insert are atomic per process
	mu sync.Mutex
}

var _ store.ObservationStore = (*GormStore)(nil)

// Open connects with the configured driver. The schema is not created until
// Initialize is called.
func Open(cfg config.StoreConfig) (*GormStore, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm store: open %s: %w", cfg.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func dialectorFor(cfg config.StoreConfig) (gorm.Dialector, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case config.DriverSQLite, config.DriverSQLitePure:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, fmt.Errorf("gorm store: sqlite path is required")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn := sqliteDSN(driver, path)
		if driver == config.DriverSQLitePure {
			return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), nil
		}
		return sqlite.Open(dsn), nil
	case config.DriverMySQL:
		dsn := strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			return nil, fmt.Errorf("gorm store: mysql dsn is required")
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("gorm store: unsupported driver %q", cfg.Driver)
	}
}

// Initialize creates price_history and notifications when missing.
func (s *GormStore) Initialize(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&observationModel{}, &notificationModel{})
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Append(ctx context.Context, obs types.Observation) error {
	if strings.TrimSpace(obs.SKU) == "" {
		return fmt.Errorf("gorm store: sku is required")
	}
	row := storemodel.NewObservationModel(obs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest sql.NullInt64
		if err := tx.Model(&observationModel{}).
			Select("MAX(ts)").
			Where("sku = ?", row.SKU).
			Row().Scan(&latest); err != nil {
			return err
		}
		if latest.Valid && latest.Int64 > row.TS {
			return store.ErrOutOfOrder
		}
		return tx.Create(&row).Error
	})
}

func (s *GormStore) TrailingLow(ctx context.Context, sku string, window time.Duration, asOf time.Time) (float64, bool, error) {
	from, to := store.WindowBounds(window, asOf)
	var low sql.NullFloat64
	err := s.db.WithContext(ctx).Model(&observationModel{}).
		Select("MIN(price)").
		Where("sku = ? AND ts >= ? AND ts <= ? AND price IS NOT NULL", sku, from, to).
		Row().Scan(&low)
	if err != nil {
		return 0, false, err
	}
	if !low.Valid {
		return 0, false, nil
	}
	return low.Float64, true, nil
}

func (s *GormStore) History(ctx context.Context, sku string, since time.Time, limit int) ([]types.Observation, error) {
	q := s.db.WithContext(ctx).
		Where("sku = ? AND ts >= ?", sku, since.UTC().UnixNano()).
		Order("ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []observationModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Observation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Observation())
	}
	return out, nil
}

// RecordNotification inserts the record; a repeated ID is ignored.
func (s *GormStore) RecordNotification(ctx context.Context, rec store.NotificationRecord) error {
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
	row := notificationModel{
		ID:        rec.ID,
		SKU:       rec.SKU,
		Price:     rec.Price,
		Channel:   rec.Channel,
		Delivered: rec.Delivered,
		Error:     rec.Error,
		Message:   rec.Message,
		Payload:   payload,
		CreatedAt: rec.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
}

// Notifications lists the log for sku, newest first.
func (s *GormStore) Notifications(ctx context.Context, sku string, limit int) ([]store.NotificationRecord, error) {
	q := s.db.WithContext(ctx).Where("sku = ?", sku).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []notificationModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.NotificationRecord, 0, len(rows))
	for _, r := range rows {
		rec := store.NotificationRecord{
			ID:        r.ID,
			SKU:       r.SKU,
			Price:     r.Price,
			Channel:   r.Channel,
			Delivered: r.Delivered,
			Error:     r.Error,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
		}
		if payload, err := storemodel.DecodePayload(r.Payload); err == nil {
			rec.Payload = payload
		}
		out = append(out, rec)
	}
	return out, nil
}

// sqliteDSN spells WAL and busy timeout in each driver's own query syntax:
// modernc takes _pragma=name(value), mattn takes _name=value.
func sqliteDSN(driver, path string) string {
	if driver == config.DriverSQLitePure {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
