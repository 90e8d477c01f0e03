package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const createReadingsTable = `
CREATE TABLE IF NOT EXISTS farm_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	farm_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	temperature REAL,
	humidity REAL,
	water_level REAL,
	light_level REAL,
	product_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_farm_readings_farm ON farm_readings(farm_id);`

// SQLiteSource stores readings in a local SQLite database
type SQLiteSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSource opens the database at path and migrates it
func NewSQLiteSource(ctx context.Context, path string, logger *zap.Logger) (*SQLiteSource, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("Opening database", zap.String("path", path))
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers
	db.SetMaxOpenConns(1)

	s := &SQLiteSource{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the readings table if it does not exist
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createReadingsTable); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Load returns the readings of farmID in insertion order
func (s *SQLiteSource) Load(ctx context.Context, farmID string) (models.Snapshot, error) {
	if err := checkFarmID(farmID); err != nil {
		return models.Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, farm_id, temperature, humidity, water_level, light_level, product_id
		FROM farm_readings
		WHERE farm_id = ?
		ORDER BY id`, farmID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var (
			r                    models.Reading
			ts                   string
			temp, hum, wat, ligh sql.NullFloat64
		)
		if err := rows.Scan(&ts, &r.FarmID, &temp, &hum, &wat, &ligh, &r.ProductID); err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Timestamp = models.Timestamp(ts)
		r.Temperature = fromNull(temp)
		r.Humidity = fromNull(hum)
		r.WaterLevel = fromNull(wat)
		r.LightLevel = fromNull(ligh)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("error iterating readings: %w", err)
	}

	s.logger.Debug("Loaded readings from sqlite",
		zap.String("farm_id", farmID),
		zap.Int("count", len(readings)))
	return snapshotOrNotFound(farmID, readings)
}

// Insert stores readings in one transaction
func (s *SQLiteSource) Insert(ctx context.Context, readings []models.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO farm_readings(farm_id, timestamp, temperature, humidity, water_level, light_level, product_id)
		VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if err := checkFarmID(r.FarmID); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.FarmID,
			string(r.Timestamp),
			toNull(r.Temperature),
			toNull(r.Humidity),
			toNull(r.WaterLevel),
			toNull(r.LightLevel),
			r.ProductID,
		); err != nil {
			return fmt.Errorf("failed to insert reading for farm %s: %w", r.FarmID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func fromNull(n sql.NullFloat64) models.Number {
	if !n.Valid {
		return models.Number{}
	}
	return models.NewNumber(n.Float64)
}

func toNull(n models.Number) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Value, Valid: n.Valid}
}
