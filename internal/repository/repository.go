// Package repository loads farm readings snapshots from the configured store
package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/config"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a farm has no readings
var ErrNotFound = errors.New("no readings found for farm")

// ErrInvalidFarmID is returned for farm ids that are not plain identifiers
var ErrInvalidFarmID = errors.New("invalid farm id")

var farmIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidFarmID reports whether id is usable as a farm key
func ValidFarmID(id string) bool {
	return farmIDPattern.MatchString(id) && id != "." && id != ".."
}

// Source loads the readings of one farm
type Source interface {
	Load(ctx context.Context, farmID string) (models.Snapshot, error)
	Close() error
}

// Writer stores new readings
type Writer interface {
	Insert(ctx context.Context, readings []models.Reading) error
}

// NewSource opens the store selected by cfg.Driver
func NewSource(ctx context.Context, cfg config.DataConfig, logger *zap.Logger) (Source, error) {
	logger.Info("Opening readings source", zap.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "json":
		return NewJSONFileSource(cfg.Dir, logger)
	case "sqlite":
		return NewSQLiteSource(ctx, cfg.SQLitePath, logger)
	case "influxdb":
		return NewInfluxSource(ctx, InfluxOptions{
			URL:         cfg.InfluxURL,
			Token:       cfg.InfluxToken,
			Org:         cfg.InfluxOrg,
			Bucket:      cfg.InfluxBucket,
			Measurement: cfg.InfluxMeasurement,
			Range:       cfg.InfluxRange,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown data driver %q", cfg.Driver)
	}
}

func checkFarmID(farmID string) error {
	if !ValidFarmID(farmID) {
		return fmt.Errorf("%w: %q", ErrInvalidFarmID, farmID)
	}
	return nil
}

func snapshotOrNotFound(farmID string, readings []models.Reading) (models.Snapshot, error) {
	if len(readings) == 0 {
		return models.Snapshot{}, fmt.Errorf("farm %s: %w", farmID, ErrNotFound)
	}
	return models.NewSnapshot(farmID, readings), nil
}
