package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the dashboard server
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Data      DataConfig
	Dashboard DashboardConfig
	Chart     ChartConfig
	JWT       JWTConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	Breaker   BreakerConfig
}

// ServerConfig holds all server-related configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig points at the farm management backend that owns contact,
// QR and harvest actions and serves static assets
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DataConfig selects where readings are loaded from
type DataConfig struct {
	// Driver is one of "json", "sqlite" or "influxdb"
	Driver string
	Dir    string

	SQLitePath string

	InfluxURL         string
	InfluxToken       string
	InfluxOrg         string
	InfluxBucket      string
	InfluxMeasurement string
	InfluxRange       string
}

// DashboardConfig holds table and display settings
type DashboardConfig struct {
	PageSize int
	Timezone string
	Location *time.Location
}

// ChartConfig holds chart density and image settings
type ChartConfig struct {
	GroupThreshold int
	LabelTarget    int
	Width          int
	Height         int
}

// JWTConfig holds the secret shared with the backend that issues session
// tokens
type JWTConfig struct {
	SecretKey string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CORSConfig lists the origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string
}

// BreakerConfig tunes the backend circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "5s")

	v.SetDefault("backend.baseURL", "http://localhost:8000")
	v.SetDefault("backend.timeout", "10s")

	v.SetDefault("data.driver", "json")
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.sqlitePath", "./data/farm.db")
	v.SetDefault("data.influxMeasurement", "farm_data")
	v.SetDefault("data.influxRange", "-30d")

	v.SetDefault("dashboard.pageSize", 10)
	v.SetDefault("dashboard.timezone", "UTC")

	v.SetDefault("chart.groupThreshold", 24)
	v.SetDefault("chart.labelTarget", 10)
	v.SetDefault("chart.width", 960)
	v.SetDefault("chart.height", 420)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cors.allowedOrigins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://127.0.0.1:5173",
	})

	v.SetDefault("breaker.maxRequests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.failureThreshold", 5)
}

// Load builds a Config from v. Config files, when present, must already be
// read; environment variables are bound here.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("DASHBOARD")
	_ = v.BindEnv("server.port", "DASHBOARD_PORT")
	_ = v.BindEnv("backend.baseURL", "BACKEND_URL")
	_ = v.BindEnv("data.driver", "DATA_DRIVER")
	_ = v.BindEnv("data.dir", "DATA_DIR")
	_ = v.BindEnv("data.sqlitePath", "SQLITE_PATH")
	_ = v.BindEnv("data.influxURL", "INFLUXDB_URL")
	_ = v.BindEnv("data.influxToken", "INFLUXDB_TOKEN")
	_ = v.BindEnv("data.influxOrg", "INFLUXDB_ORG")
	_ = v.BindEnv("data.influxBucket", "INFLUXDB_BUCKET")
	_ = v.BindEnv("dashboard.timezone", "DASHBOARD_TIMEZONE")
	_ = v.BindEnv("jwt.secretKey", "JWT_SECRET_KEY")

	var cfg Config
	var err error

	cfg.Server.Port = v.GetString("server.port")
	if cfg.Server.ReadTimeout, err = duration(v, "server.readTimeout"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = duration(v, "server.writeTimeout"); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = duration(v, "server.shutdownTimeout"); err != nil {
		return nil, err
	}

	cfg.Backend.BaseURL = v.GetString("backend.baseURL")
	if cfg.Backend.Timeout, err = duration(v, "backend.timeout"); err != nil {
		return nil, err
	}

	cfg.Data = DataConfig{
		Driver:            v.GetString("data.driver"),
		Dir:               v.GetString("data.dir"),
		SQLitePath:        v.GetString("data.sqlitePath"),
		InfluxURL:         v.GetString("data.influxURL"),
		InfluxToken:       v.GetString("data.influxToken"),
		InfluxOrg:         v.GetString("data.influxOrg"),
		InfluxBucket:      v.GetString("data.influxBucket"),
		InfluxMeasurement: v.GetString("data.influxMeasurement"),
		InfluxRange:       v.GetString("data.influxRange"),
	}

	cfg.Dashboard = DashboardConfig{
		PageSize: v.GetInt("dashboard.pageSize"),
		Timezone: v.GetString("dashboard.timezone"),
	}
	if cfg.Dashboard.Location, err = time.LoadLocation(cfg.Dashboard.Timezone); err != nil {
		return nil, fmt.Errorf("invalid dashboard timezone %q: %w", cfg.Dashboard.Timezone, err)
	}

	cfg.Chart = ChartConfig{
		GroupThreshold: v.GetInt("chart.groupThreshold"),
		LabelTarget:    v.GetInt("chart.labelTarget"),
		Width:          v.GetInt("chart.width"),
		Height:         v.GetInt("chart.height"),
	}

	cfg.JWT = JWTConfig{SecretKey: v.GetString("jwt.secretKey")}

	cfg.Logging = LoggingConfig{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
	}

	cfg.CORS.AllowedOrigins = v.GetStringSlice("cors.allowedOrigins")

	cfg.Breaker = BreakerConfig{
		MaxRequests:      v.GetUint32("breaker.maxRequests"),
		FailureThreshold: v.GetUint32("breaker.failureThreshold"),
	}
	if cfg.Breaker.Interval, err = duration(v, "breaker.interval"); err != nil {
		return nil, err
	}
	if cfg.Breaker.Timeout, err = duration(v, "breaker.timeout"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("JWT secret key is required")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend URL is required")
	}
	switch c.Data.Driver {
	case "json", "sqlite":
	case "influxdb":
		if c.Data.InfluxURL == "" || c.Data.InfluxBucket == "" {
			return errors.New("influxdb driver requires data.influxURL and data.influxBucket")
		}
	default:
		return fmt.Errorf("unknown data driver %q", c.Data.Driver)
	}
	if c.Dashboard.PageSize <= 0 {
		return fmt.Errorf("dashboard.pageSize must be positive, got %d", c.Dashboard.PageSize)
	}
	return nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// LoadConfig loads the configuration from .env, config files and the
// environment, exiting the process when it is invalid
func LoadConfig() *Config {
	// Try multiple possible locations
	if err := godotenv.Load(); err != nil {
		if err = godotenv.Load("../../.env"); err != nil {
			log.Println("Warning: .env file not found or could not be loaded.")
		} else {
			log.Println(".env file loaded successfully from project root.")
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/farm-dashboard")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Error reading config file: %s", err)
		}
		log.Println("No config file found. Using environment variables and defaults.")
	}

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %s", err)
	}
	return cfg
}
