// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Endpoint, Backend, CMDI, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Backend   BackendConfig   `yaml:"backend"`
	CMDI      CMDIConfig      `yaml:"cmdi"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Analytics is disabled
// when Brokers is empty.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters. The shared CMDI
// cache is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LangText is a text in one language.
type LangText struct {
	Lang string `yaml:"lang"`
	Text string `yaml:"text"`
}

// DatabaseInfo is one zr:databaseInfo child, e.g. title or description.
type DatabaseInfo struct {
	Element string `yaml:"element"`
	Lang    string `yaml:"lang"`
	Text    string `yaml:"text"`
}

// ConfigInfo is one zr:configInfo child: element is default, setting or
// supports.
type ConfigInfo struct {
	Element string `yaml:"element"`
	Type    string `yaml:"type"`
	Value   string `yaml:"value"`
}

// ServerInfo describes the endpoint in explain responses.
type ServerInfo struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Database  string `yaml:"database"`
	Transport string `yaml:"transport"`
}

// Resource is a searchable collection advertised in the endpoint
// description.
type Resource struct {
	PID             string     `yaml:"pid"`
	Titles          []LangText `yaml:"titles"`
	Descriptions    []LangText `yaml:"descriptions"`
	LandingPageURIs []string   `yaml:"landingPageUris"`
	Languages       []string   `yaml:"languages"`
}

// EndpointConfig controls the SRU protocol surface.
type EndpointConfig struct {
	DefaultVersion     string         `yaml:"defaultVersion"`
	MaximumRecords     int            `yaml:"maximumRecords"`
	MaxAllowedRecords  int            `yaml:"maxAllowedRecords"`
	RateLimitPerMinute int            `yaml:"rateLimitPerMinute"`
	ServerInfo         ServerInfo     `yaml:"serverInfo"`
	DatabaseInfo       []DatabaseInfo `yaml:"databaseInfo"`
	ConfigInfo         []ConfigInfo   `yaml:"configInfo"`
	Resources          []Resource     `yaml:"resources"`
	// ResourceRefTemplate builds the ref attribute of a record from the
	// resource id, e.g. "https://example.org/api/%d".
	ResourceRefTemplate string `yaml:"resourceRefTemplate"`
}

// BackendConfig controls the PostgreSQL full-text search.
type BackendConfig struct {
	TextSearchConfig  string        `yaml:"textSearchConfig"`
	Table             string        `yaml:"table"`
	StartSel          string        `yaml:"startSel"`
	StopSel           string        `yaml:"stopSel"`
	FragmentDelimiter string        `yaml:"fragmentDelimiter"`
	MaxFragments      int           `yaml:"maxFragments"`
	MaxWords          int           `yaml:"maxWords"`
	MinWords          int           `yaml:"minWords"`
	QueryTimeout      time.Duration `yaml:"queryTimeout"`
	BreakerFailures   int           `yaml:"breakerFailures"`
	BreakerReset      time.Duration `yaml:"breakerReset"`
}

// CMDIConfig controls retrieval of CMDI metadata records.
type CMDIConfig struct {
	// URLTemplate builds the metadata URL from the CMDI pid, e.g.
	// "https://example.org/api/%s/metadata?format=application/x-cmdi+xml".
	URLTemplate string        `yaml:"urlTemplate"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AnalyticsConfig controls request event batching and the periodic
// snapshot of aggregated stats. A zero SnapshotInterval disables snapshots.
type AnalyticsConfig struct {
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the endpoint cannot serve.
func (c *Config) Validate() error {
	switch c.Endpoint.DefaultVersion {
	case "1.1", "1.2", "2.0":
	default:
		return fmt.Errorf("endpoint.defaultVersion %q: must be 1.1, 1.2 or 2.0", c.Endpoint.DefaultVersion)
	}
	if c.Endpoint.MaximumRecords < 1 {
		return fmt.Errorf("endpoint.maximumRecords must be positive, got %d", c.Endpoint.MaximumRecords)
	}
	if c.Backend.FragmentDelimiter == "" || c.Backend.StartSel == "" || c.Backend.StopSel == "" {
		return fmt.Errorf("backend.fragmentDelimiter, startSel and stopSel must be set")
	}
	if c.Backend.StartSel == c.Backend.StopSel {
		return fmt.Errorf("backend.startSel and backend.stopSel must differ")
	}
	for i, r := range c.Endpoint.Resources {
		if r.PID == "" {
			return fmt.Errorf("endpoint.resources[%d]: pid is required", i)
		}
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fcs",
			User:            "fcs",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "fcs-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "fcs-analytics-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Endpoint: EndpointConfig{
			DefaultVersion:    "2.0",
			MaximumRecords:    10,
			MaxAllowedRecords: 1000,
			ServerInfo: ServerInfo{
				Host:      "localhost",
				Port:      8080,
				Database:  "fcs",
				Transport: "http",
			},
		},
		Backend: BackendConfig{
			TextSearchConfig:  "simple",
			Table:             "full_text_search",
			StartSel:          "\x02",
			StopSel:           "\x03",
			FragmentDelimiter: "\x1e",
			MaxFragments:      100,
			MaxWords:          35,
			MinWords:          15,
			QueryTimeout:      30 * time.Second,
			BreakerFailures:   5,
			BreakerReset:      30 * time.Second,
		},
		CMDI: CMDIConfig{
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: 5 * time.Minute,
		},
	}
}

// applyEnvOverrides reads FCS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("FCS_SERVER_PORT", &cfg.Server.Port)
	setString("FCS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("FCS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("FCS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("FCS_POSTGRES_USER", &cfg.Postgres.User)
	setString("FCS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("FCS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("FCS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("FCS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("FCS_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("FCS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("FCS_LOGGING_FORMAT", &cfg.Logging.Format)
	setString("FCS_ENDPOINT_DEFAULT_VERSION", &cfg.Endpoint.DefaultVersion)
	setInt("FCS_ENDPOINT_MAXIMUM_RECORDS", &cfg.Endpoint.MaximumRecords)
	setInt("FCS_ENDPOINT_RATE_LIMIT", &cfg.Endpoint.RateLimitPerMinute)
	setString("FCS_BACKEND_TEXT_SEARCH_CONFIG", &cfg.Backend.TextSearchConfig)
	setString("FCS_CMDI_URL_TEMPLATE", &cfg.CMDI.URLTemplate)
}
