package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
	"github.com/cenkalti/backoff/v4"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"go.uber.org/zap"
)

const (
	farmIDTag    = "farm_id"
	productIDTag = "product_id"
	healthTries  = 5
)

// InfluxOptions locates the readings measurement
type InfluxOptions struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	// Range is the Flux range start, e.g. "-30d"
	Range string
}

// InfluxSource reads farm readings from an InfluxDB measurement tagged by
// farm_id, one field per sensor
type InfluxSource struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	opts     InfluxOptions
	logger   *zap.Logger
}

// NewInfluxSource connects to InfluxDB, retrying the health check with
// exponential backoff
func NewInfluxSource(ctx context.Context, opts InfluxOptions, logger *zap.Logger) (*InfluxSource, error) {
	if opts.Measurement == "" {
		opts.Measurement = "farm_data"
	}
	if opts.Range == "" {
		opts.Range = "-30d"
	}

	client := influxdb2.NewClient(opts.URL, opts.Token)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	err := backoff.Retry(func() error {
		health, err := client.Health(ctx)
		if err != nil {
			logger.Warn("InfluxDB not reachable yet", zap.String("url", opts.URL), zap.Error(err))
			return err
		}
		if health.Status != domain.HealthCheckStatusPass {
			return fmt.Errorf("InfluxDB is not healthy: %s", health.Status)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, healthTries-1), ctx))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	logger.Info("Connected to InfluxDB",
		zap.String("url", opts.URL),
		zap.String("bucket", opts.Bucket),
		zap.String("measurement", opts.Measurement))

	return &InfluxSource{
		client:   client,
		queryAPI: client.QueryAPI(opts.Org),
		writeAPI: client.WriteAPIBlocking(opts.Org, opts.Bucket),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Load returns the readings of farmID ordered by time
func (s *InfluxSource) Load(ctx context.Context, farmID string) (models.Snapshot, error) {
	if err := checkFarmID(farmID); err != nil {
		return models.Snapshot{}, err
	}

	result, err := s.queryAPI.Query(ctx, buildFluxQuery(s.opts, farmID))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var readings []models.Reading
	for result.Next() {
		rec := result.Record()
		readings = append(readings, readingFromValues(farmID, rec.Time(), rec.Values()))
	}
	if err := result.Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("error parsing results: %w", err)
	}

	s.logger.Debug("Loaded readings from InfluxDB",
		zap.String("farm_id", farmID),
		zap.Int("count", len(readings)))
	return snapshotOrNotFound(farmID, readings)
}

// Insert writes readings as points. A reading without a valid timestamp
// fails the whole batch.
func (s *InfluxSource) Insert(ctx context.Context, readings []models.Reading) error {
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		p, err := pointFromReading(s.opts.Measurement, r)
		if err != nil {
			return err
		}
		points = append(points, p)
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write readings: %w", err)
	}
	return nil
}

// Close closes the client
func (s *InfluxSource) Close() error {
	s.client.Close()
	return nil
}

func buildFluxQuery(opts InfluxOptions, farmID string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %s and r.%s == %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])`,
		strconv.Quote(opts.Bucket), opts.Range,
		strconv.Quote(opts.Measurement), farmIDTag, strconv.Quote(farmID))
}

var fieldNames = map[models.Metric][]string{
	models.MetricTemperature: {"temperature"},
	models.MetricHumidity:    {"humidity"},
	models.MetricWaterLevel:  {"water_level", "waterLevel"},
	models.MetricLightLevel:  {"light_level", "lightLevel"},
}

func readingFromValues(farmID string, at time.Time, values map[string]any) models.Reading {
	r := models.Reading{
		Timestamp: models.NewTimestamp(at.Unix()),
		FarmID:    farmID,
	}
	field := func(m models.Metric) models.Number {
		for _, name := range fieldNames[m] {
			if n, ok := toNumber(values[name]); ok {
				return n
			}
		}
		return models.Number{}
	}
	r.Temperature = field(models.MetricTemperature)
	r.Humidity = field(models.MetricHumidity)
	r.WaterLevel = field(models.MetricWaterLevel)
	r.LightLevel = field(models.MetricLightLevel)
	if v, ok := values[productIDTag].(string); ok {
		r.ProductID = v
	}
	return r
}

func toNumber(v any) (models.Number, bool) {
	switch x := v.(type) {
	case float64:
		return models.NewNumber(x), true
	case int64:
		return models.NewNumber(float64(x)), true
	case uint64:
		return models.NewNumber(float64(x)), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return models.Number{}, false
		}
		return models.NewNumber(f), true
	}
	return models.Number{}, false
}

var errNoTimestamp = errors.New("reading has no valid timestamp")

func pointFromReading(measurement string, r models.Reading) (*write.Point, error) {
	if err := checkFarmID(r.FarmID); err != nil {
		return nil, err
	}
	at, ok := r.Timestamp.Time()
	if !ok {
		return nil, fmt.Errorf("farm %s: %w", r.FarmID, errNoTimestamp)
	}
	tags := map[string]string{farmIDTag: r.FarmID}
	if r.ProductID != "" {
		tags[productIDTag] = r.ProductID
	}
	fields := make(map[string]any)
	for _, m := range models.SeriesMetrics {
		if n := r.Value(m); n.Valid {
			fields[fieldNames[m][0]] = n.Value
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("farm %s: reading has no sensor values", r.FarmID)
	}
	return influxdb2.NewPoint(measurement, tags, fields, at), nil
}
