package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// CatalogRepository persists the last successful device enumeration so the
// bridge can start when the YoLink HTTP API is unreachable.
type CatalogRepository interface {
	SaveCatalog(ctx context.Context, homeID string, records []yolink.DeviceRecord) error
	LoadCatalog(ctx context.Context) (homeID string, records []yolink.DeviceRecord, err error)
}

// SQLiteRepository implements CatalogRepository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed catalog repository.
// The catalog tables must already exist (see the migrations package).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// SaveCatalog replaces the cached catalog in a single transaction.
func (r *SQLiteRepository) SaveCatalog(ctx context.Context, homeID string, records []yolink.DeviceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_devices`); err != nil {
		return fmt.Errorf("clearing catalog: %w", err)
	}

	const insert = `INSERT INTO catalog_devices (device_id, name, type, device_udid, token, position)
		VALUES (?, ?, ?, ?, ?, ?)`
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, insert,
			rec.DeviceID, rec.Name, rec.Type, rec.DeviceUDID, rec.Token, i); err != nil {
			return fmt.Errorf("inserting device %s: %w", rec.DeviceID, err)
		}
	}

	const meta = `INSERT INTO catalog_meta (id, home_id, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET home_id = excluded.home_id, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, meta, homeID, r.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("updating catalog meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

// LoadCatalog returns the cached home id and device records in their
// original order. Returns ErrCatalogEmpty if nothing has been saved.
func (r *SQLiteRepository) LoadCatalog(ctx context.Context) (string, []yolink.DeviceRecord, error) {
	var homeID string
	err := r.db.QueryRowContext(ctx, `SELECT home_id FROM catalog_meta WHERE id = 1`).Scan(&homeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrCatalogEmpty
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying catalog meta: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT device_id, name, type, device_udid, token
		FROM catalog_devices ORDER BY position`)
	if err != nil {
		return "", nil, fmt.Errorf("querying catalog devices: %w", err)
	}
	defer rows.Close()

	var records []yolink.DeviceRecord
	for rows.Next() {
		var rec yolink.DeviceRecord
		if err := rows.Scan(&rec.DeviceID, &rec.Name, &rec.Type, &rec.DeviceUDID, &rec.Token); err != nil {
			return "", nil, fmt.Errorf("scanning catalog device: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("iterating catalog devices: %w", err)
	}
	return homeID, records, nil
}
