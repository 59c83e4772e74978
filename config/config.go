package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/sked-go/sked"
)

const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLX     = "sqlx"
	DriverSQLite   = "sqlite"

	LogFormatText = "text"
	LogFormatJSON = "json"

	defaultDriver           = DriverSQLite
	defaultDSN              = "sked.db"
	defaultMaxOpenConns     = 50
	defaultMinConns         = 2
	defaultConnMaxLifetime  = time.Hour
	defaultConnMaxIdleTime  = time.Minute * 5
	defaultConnectTimeout   = time.Second * 5
	defaultTimezone         = "UTC"
	defaultLogLevel         = "info"
	defaultLogFormat        = LogFormatText
	defaultAccrualSchedule  = "@daily"
	defaultAccrualOperation = "sum"
	defaultExportProductID  = "-//sked//sked-go//EN"
	defaultMetricsInterval  = time.Minute
)

var (
	ErrEmptyConfigPath       = errors.New("config path is empty")
	ErrReadingConfigFailed   = errors.New("reading config failed")
	ErrParsingConfigFailed   = errors.New("parsing config failed")
	ErrParsingEnvFailed      = errors.New("parsing environment failed")
	ErrUnsupportedDriver     = errors.New("unsupported database driver")
	ErrEmptyDSN              = errors.New("database dsn must not be empty")
	ErrReplicaNeedsPGX       = errors.New("a replica dsn is only supported by the pgx driver")
	ErrInvalidTimezone       = errors.New("invalid timezone")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidLogFormat      = errors.New("invalid log format")
	ErrInvalidMaxTemplates   = errors.New("max templates must be positive")
	ErrUnsupportedAccrualOp  = errors.New("unsupported accrual operation")
	ErrEmptyAccrualSchedule  = errors.New("accrual schedule must not be empty")
	supportedDrivers         = []string{DriverPGX, DriverPostgres, DriverSQLX, DriverSQLite}
	supportedAccrualOps      = []string{"sum", "max"}
	supportedLogFormats      = []string{LogFormatText, LogFormatJSON}
	errInvalidConfigFieldFmt = "%w: %q"
)

// DatabaseConfig selects the storage backend and its pool limits.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"SKED_DB_DRIVER"`
	DSN             string        `yaml:"dsn" env:"SKED_DB_DSN"`
	ReplicaDSN      string        `yaml:"replica_dsn" env:"SKED_DB_REPLICA_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"SKED_DB_MAX_OPEN_CONNS"`
	MinConns        int           `yaml:"min_conns" env:"SKED_DB_MIN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"SKED_DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"SKED_DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"SKED_DB_CONNECT_TIMEOUT"`

	// Table names; empty means the sqlengine defaults.
	EventTable    string `yaml:"event_table" env:"SKED_DB_EVENT_TABLE"`
	TemplateTable string `yaml:"template_table" env:"SKED_DB_TEMPLATE_TABLE"`
	AccrualTable  string `yaml:"accrual_table" env:"SKED_DB_ACCRUAL_TABLE"`
}

// EngineConfig configures the aggregation engine.
type EngineConfig struct {
	// Timezone is the IANA zone that decides which date is "today".
	Timezone string `yaml:"timezone" env:"SKED_TIMEZONE"`

	// MaxTemplates is the template fan-out ceiling; zero means the engine default.
	MaxTemplates int `yaml:"max_templates" env:"SKED_MAX_TEMPLATES"`

	// ValueField is the event field the CLI operations read.
	ValueField string `yaml:"value_field" env:"SKED_VALUE_FIELD"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"SKED_LOG_LEVEL"`
	Format string `yaml:"format" env:"SKED_LOG_FORMAT"`
}

// AccrualConfig configures the scheduled accrual checkpoints of "sked serve".
type AccrualConfig struct {
	// Schedule is a robfig/cron spec, e.g. "@daily" or "0 3 * * *".
	Schedule  string   `yaml:"schedule" env:"SKED_ACCRUAL_SCHEDULE"`
	Operation string   `yaml:"operation" env:"SKED_ACCRUAL_OPERATION"`
	Tags      []string `yaml:"tags" env:"SKED_ACCRUAL_TAGS" envSeparator:","`
}

// ExportConfig configures the ICS export.
type ExportConfig struct {
	ProductID    string `yaml:"product_id" env:"SKED_EXPORT_PRODUCT_ID"`
	SummaryField string `yaml:"summary_field" env:"SKED_EXPORT_SUMMARY_FIELD"`
}

// TelemetryConfig enables the OpenTelemetry metrics of the engine.
type TelemetryConfig struct {
	MetricsEnabled  bool          `yaml:"metrics_enabled" env:"SKED_METRICS_ENABLED"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"SKED_METRICS_INTERVAL"`
}

// Config is the top-level sked configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Log       LogConfig       `yaml:"log"`
	Accrual   AccrualConfig   `yaml:"accrual"`
	Export    ExportConfig    `yaml:"export"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when neither a file nor environment variables are given.
func Default() Config {
	cfg := Config{}
	cfg.Normalize()

	return cfg
}

// Load reads the YAML file at path, applies environment overrides, fills defaults and validates
// the result. A missing file is not an error: the defaults plus environment are used then.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyConfigPath
	}

	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults and environment only
	case err != nil:
		return Config{}, errors.Join(ErrReadingConfigFailed, err)
	default:
		if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
			return Config{}, errors.Join(ErrParsingConfigFailed, unmarshalErr)
		}
	}

	return finish(cfg)
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	return finish(Config{})
}

func finish(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingEnvFailed, err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Normalize fills missing values with defaults.
func (c *Config) Normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}

	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = defaultDSN
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}

	if c.Database.MinConns <= 0 {
		c.Database.MinConns = defaultMinConns
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaultConnMaxLifetime
	}

	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaultConnMaxIdleTime
	}

	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = defaultConnectTimeout
	}

	if c.Engine.Timezone == "" {
		c.Engine.Timezone = defaultTimezone
	}

	if c.Engine.MaxTemplates == 0 {
		c.Engine.MaxTemplates = sked.DefaultMaxTemplates
	}

	if c.Engine.ValueField == "" {
		c.Engine.ValueField = sked.DefaultValueField
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}

	if c.Accrual.Schedule == "" {
		c.Accrual.Schedule = defaultAccrualSchedule
	}

	c.Accrual.Operation = strings.ToLower(c.Accrual.Operation)
	if c.Accrual.Operation == "" {
		c.Accrual.Operation = defaultAccrualOperation
	}

	if c.Accrual.Tags == nil {
		c.Accrual.Tags = []string{}
	}

	if c.Export.ProductID == "" {
		c.Export.ProductID = defaultExportProductID
	}

	if c.Telemetry.MetricsInterval <= 0 {
		c.Telemetry.MetricsInterval = defaultMetricsInterval
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains(supportedDrivers, c.Database.Driver) {
		errs = append(errs, fmt.Errorf(errInvalidConfigFieldFmt, ErrUnsupportedDriver, c.Database.Driver))
	}

	if c.Database.DSN == "" {
		errs = append(errs, ErrEmptyDSN)
	}

	if c.Database.ReplicaDSN != "" && c.Database.Driver != DriverPGX {
		errs = append(errs, ErrReplicaNeedsPGX)
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if c.Engine.MaxTemplates < 0 {
		errs = append(errs, ErrInvalidMaxTemplates)
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if !slices.Contains(supportedLogFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf(errInvalidConfigFieldFmt, ErrInvalidLogFormat, c.Log.Format))
	}

	if strings.TrimSpace(c.Accrual.Schedule) == "" {
		errs = append(errs, ErrEmptyAccrualSchedule)
	}

	if !slices.Contains(supportedAccrualOps, c.Accrual.Operation) {
		errs = append(errs, fmt.Errorf(errInvalidConfigFieldFmt, ErrUnsupportedAccrualOp, c.Accrual.Operation))
	}

	return errors.Join(errs...)
}

// Location resolves Engine.Timezone.
func (c Config) Location() (*time.Location, error) {
	location, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, errors.Join(fmt.Errorf(errInvalidConfigFieldFmt, ErrInvalidTimezone, c.Engine.Timezone), err)
	}

	return location, nil
}

// SlogLevel parses Log.Level ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf(errInvalidConfigFieldFmt, ErrInvalidLogLevel, c.Log.Level)
	}

	return level, nil
}

// NewLogger builds a slog.Logger writing to w in the configured format and level.
// Call it on a validated Config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
