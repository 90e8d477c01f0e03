package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"go.uber.org/zap"
)

// JSONFileSource reads <dir>/<farmID>.json, a JSON array of readings
type JSONFileSource struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewJSONFileSource creates the directory if needed
func NewJSONFileSource(dir string, logger *zap.Logger) (*JSONFileSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONFileSource{dir: dir, logger: logger}, nil
}

// Load reads every reading of farmID in file order
func (s *JSONFileSource) Load(ctx context.Context, farmID string) (models.Snapshot, error) {
	if err := checkFarmID(farmID); err != nil {
		return models.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.read(farmID)
	if err != nil {
		return models.Snapshot{}, err
	}
	s.logger.Debug("Loaded readings from file",
		zap.String("farm_id", farmID),
		zap.Int("count", len(readings)))
	return snapshotOrNotFound(farmID, readings)
}

// Insert appends readings to their farm files
func (s *JSONFileSource) Insert(ctx context.Context, readings []models.Reading) error {
	byFarm := make(map[string][]models.Reading)
	for _, r := range readings {
		if err := checkFarmID(r.FarmID); err != nil {
			return err
		}
		byFarm[r.FarmID] = append(byFarm[r.FarmID], r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for farmID, batch := range byFarm {
		if err := ctx.Err(); err != nil {
			return err
		}
		existing, err := s.read(farmID)
		if err != nil {
			return err
		}
		if err := s.write(farmID, append(existing, batch...)); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op
func (s *JSONFileSource) Close() error { return nil }

func (s *JSONFileSource) path(farmID string) string {
	return filepath.Join(s.dir, farmID+".json")
}

func (s *JSONFileSource) read(farmID string) ([]models.Reading, error) {
	data, err := os.ReadFile(s.path(farmID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read readings for farm %s: %w", farmID, err)
	}
	var readings []models.Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("failed to decode readings for farm %s: %w", farmID, err)
	}
	return readings, nil
}

func (s *JSONFileSource) write(farmID string, readings []models.Reading) error {
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode readings: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, farmID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write readings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write readings: %w", err)
	}
	return os.Rename(tmp.Name(), s.path(farmID))
}
