package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/pkg/heatmap"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Floorplan FloorplanConfig `mapstructure:"floorplan"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Heatmap   HeatmapConfig   `mapstructure:"heatmap"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	TLSCert      string `mapstructure:"tls_cert"`
	TLSKey       string `mapstructure:"tls_key"`
	BodyLimitMB  int    `mapstructure:"body_limit_mb"`
	RateLimit    int    `mapstructure:"rate_limit"` // requests per minute per IP, 0 disables
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN returns the Postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort         string        `mapstructure:"host_port"`
	Namespace        string        `mapstructure:"namespace"`
	TaskQueue        string        `mapstructure:"task_queue"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// FloorplanConfig describes the surveyed building and its raster image.
type FloorplanConfig struct {
	Bounds      domain.BoundingBox `mapstructure:"bounds"`
	Width       int                `mapstructure:"width"`
	Height      int                `mapstructure:"height"`
	Orientation string             `mapstructure:"orientation"`
	Image       string             `mapstructure:"image"`
}

// Extent returns the default raster extent.
func (f FloorplanConfig) Extent() domain.RasterExtent {
	return domain.RasterExtent{Width: f.Width, Height: f.Height}
}

// Floorplan returns the validated floor plan.
func (f FloorplanConfig) Floorplan() (domain.Floorplan, error) {
	o, err := domain.ParseOrientation(f.Orientation)
	if err != nil {
		return domain.Floorplan{}, err
	}
	fp := domain.Floorplan{Bounds: f.Bounds, Extent: f.Extent(), Orientation: o}
	if err := fp.Bounds.Validate(); err != nil {
		return domain.Floorplan{}, err
	}
	if err := fp.Extent.Validate(); err != nil {
		return domain.Floorplan{}, err
	}
	return fp, nil
}

type SessionsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type IdentityConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type HeatmapConfig struct {
	MinPoints   int      `mapstructure:"min_points"`
	ValueCap    float64  `mapstructure:"value_cap"`
	MinMax      float64  `mapstructure:"min_max"`
	Fill        float64  `mapstructure:"fill"`
	SmoothSigma float64  `mapstructure:"smooth_sigma"`
	Methods     []string `mapstructure:"methods"`
	CacheTTL    int      `mapstructure:"cache_ttl"`
}

// Options converts the heatmap settings into aggregation options.
func (h HeatmapConfig) Options(o domain.Orientation) heatmap.Options {
	opts := heatmap.DefaultOptions()
	opts.MinPoints = h.MinPoints
	opts.ValueCap = h.ValueCap
	opts.MinMax = h.MinMax
	opts.Fill = h.Fill
	opts.SmoothSigma = h.SmoothSigma
	opts.Orientation = o
	if len(h.Methods) > 0 {
		opts.Methods = h.Methods
	}
	return opts
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, config.yaml, .env and environment
// variables, in increasing precedence.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// A local .env fills in variables not already set in the environment.
	_ = godotenv.Load() // OK if missing

	// Environment variables: SIGNALMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("SIGNALMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.tls_cert", "cert.pem")
	v.SetDefault("server.tls_key", "key.pem")
	v.SetDefault("server.body_limit_mb", 64)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "signalmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "signalmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "signalmap.db")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "heatmap-snapshots")
	v.SetDefault("temporal.snapshot_interval", "15m")
	v.SetDefault("floorplan.bounds.min_lat", 43.037278)
	v.SetDefault("floorplan.bounds.max_lat", 43.037944)
	v.SetDefault("floorplan.bounds.min_lon", -76.132944)
	v.SetDefault("floorplan.bounds.max_lon", -76.132194)
	v.SetDefault("floorplan.width", 1003)
	v.SetDefault("floorplan.height", 800)
	v.SetDefault("floorplan.orientation", string(domain.OrientationNorthLeft))
	v.SetDefault("floorplan.image", "")
	v.SetDefault("sessions.timeout", "30m")
	v.SetDefault("sessions.sweep_interval", "5m")
	v.SetDefault("identity.strategy", "random")
	v.SetDefault("heatmap.min_points", 3)
	v.SetDefault("heatmap.value_cap", 500.0)
	v.SetDefault("heatmap.min_max", 1.0)
	v.SetDefault("heatmap.fill", 0.0)
	v.SetDefault("heatmap.smooth_sigma", 0.0)
	v.SetDefault("heatmap.methods", []string{"rbf", "linear", "nearest"})
	v.SetDefault("heatmap.cache_ttl", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, "server.body_limit_mb must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if err := c.Floorplan.Bounds.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("floorplan.bounds: %v", err))
	}
	if err := c.Floorplan.Extent().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("floorplan.width/height: %v", err))
	}
	if _, err := domain.ParseOrientation(c.Floorplan.Orientation); err != nil {
		errs = append(errs, fmt.Sprintf("floorplan.orientation: %v", err))
	}

	if c.Sessions.Timeout <= 0 {
		errs = append(errs, "sessions.timeout must be positive")
	}
	if c.Sessions.SweepInterval <= 0 {
		errs = append(errs, "sessions.sweep_interval must be positive")
	}
	switch c.Identity.Strategy {
	case "random", "sequence":
	default:
		errs = append(errs, fmt.Sprintf("identity.strategy must be random or sequence, got %q", c.Identity.Strategy))
	}

	if c.Heatmap.MinPoints < 1 {
		errs = append(errs, "heatmap.min_points must be at least 1")
	}
	if c.Heatmap.ValueCap <= 0 {
		errs = append(errs, "heatmap.value_cap must be positive")
	}
	if c.Heatmap.SmoothSigma < 0 {
		errs = append(errs, "heatmap.smooth_sigma must not be negative")
	}
	for _, m := range c.Heatmap.Methods {
		switch m {
		case "rbf", "linear", "nearest":
		default:
			errs = append(errs, fmt.Sprintf("heatmap.methods: unknown method %q", m))
		}
	}
	if c.Temporal.SnapshotInterval <= 0 {
		errs = append(errs, "temporal.snapshot_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
