package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/meterwatch/internal/civil"
	"github.com/jgoulah/meterwatch/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS balance_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		balance REAL NOT NULL,
		collected_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_device_time ON balance_readings(device_id, collected_at);
	CREATE INDEX IF NOT EXISTS idx_readings_time ON balance_readings(collected_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertReading stores one balance reading. Readings are append-only;
// duplicate timestamps are allowed and left to the aggregation layer.
func (db *DB) InsertReading(ctx context.Context, r *models.Reading) error {
	query := `
	INSERT INTO balance_readings (device_id, balance, collected_at)
	VALUES (?, ?, ?)
	`

	collectedAt := r.CollectedAt.Format(civil.DateTimeFormat)
	_, err := db.conn.ExecContext(ctx, query, r.DeviceID, r.Balance, collectedAt)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// QueryRange retrieves readings in [start, end), ordered by time.
// An empty deviceID matches readings from every device.
func (db *DB) QueryRange(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error) {
	query := `
	SELECT id, device_id, balance, collected_at
	FROM balance_readings
	WHERE collected_at >= ? AND collected_at < ?
	`
	args := []any{start.Format(civil.DateTimeFormat), end.Format(civil.DateTimeFormat)}
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY collected_at"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// QuerySince retrieves readings at or after the given time, ordered by time.
func (db *DB) QuerySince(ctx context.Context, deviceID string, since time.Time) ([]models.Reading, error) {
	query := `
	SELECT id, device_id, balance, collected_at
	FROM balance_readings
	WHERE device_id = ? AND collected_at >= ?
	ORDER BY collected_at
	`

	rows, err := db.conn.QueryContext(ctx, query, deviceID, since.Format(civil.DateTimeFormat))
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// LatestBefore returns the most recent reading strictly before the cutoff,
// or nil when no such reading exists. An empty deviceID matches any device.
func (db *DB) LatestBefore(ctx context.Context, deviceID string, cutoff time.Time) (*models.Reading, error) {
	query := `
	SELECT id, device_id, balance, collected_at
	FROM balance_readings
	WHERE collected_at < ?
	`
	args := []any{cutoff.Format(civil.DateTimeFormat)}
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY collected_at DESC LIMIT 1"

	return db.queryOne(ctx, query, args...)
}

// Latest returns the device's most recent reading, or nil when none exist
func (db *DB) Latest(ctx context.Context, deviceID string) (*models.Reading, error) {
	query := `
	SELECT id, device_id, balance, collected_at
	FROM balance_readings
	WHERE device_id = ?
	ORDER BY collected_at DESC
	LIMIT 1
	`
	return db.queryOne(ctx, query, deviceID)
}

// LastOnDate returns the device's final reading of the given calendar day,
// or nil when the day has no readings
func (db *DB) LastOnDate(ctx context.Context, deviceID string, day time.Time) (*models.Reading, error) {
	start := civil.DayStart(day)
	end := start.AddDate(0, 0, 1)

	query := `
	SELECT id, device_id, balance, collected_at
	FROM balance_readings
	WHERE device_id = ? AND collected_at >= ? AND collected_at < ?
	ORDER BY collected_at DESC
	LIMIT 1
	`
	return db.queryOne(ctx, query, deviceID, start.Format(civil.DateTimeFormat), end.Format(civil.DateTimeFormat))
}

// Devices returns the distinct device ids present in the store
func (db *DB) Devices(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT device_id FROM balance_readings ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *DB) queryOne(ctx context.Context, query string, args ...any) (*models.Reading, error) {
	row := db.conn.QueryRowContext(ctx, query, args...)

	var r models.Reading
	var collectedAt string
	err := row.Scan(&r.ID, &r.DeviceID, &r.Balance, &collectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying reading: %w", err)
	}

	r.CollectedAt, err = civil.ParseDateTime(collectedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing collected_at: %w", err)
	}

	return &r, nil
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var results []models.Reading
	for rows.Next() {
		var r models.Reading
		var collectedAt string

		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Balance, &collectedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var err error
		r.CollectedAt, err = civil.ParseDateTime(collectedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing collected_at: %w", err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}
