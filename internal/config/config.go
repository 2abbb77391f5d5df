// Package config loads server settings. Sources are applied in order, each
// overriding the last: built-in defaults, an optional YAML file, environment
// variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ServiceName string `yaml:"service_name"`
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`

	Log        LogConfig        `yaml:"log"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Saga       SagaConfig       `yaml:"saga"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	JaegerEndpoint string `yaml:"jaeger_endpoint"`

	// Resources are provisioned at startup. Existing counters are left alone.
	Resources []ResourceSeed `yaml:"resources"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	// Brokers empty disables escalation publishing and the reconciler.
	Brokers       []string `yaml:"brokers"`
	IncidentTopic string   `yaml:"incident_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

type SagaConfig struct {
	LedgerTimeout   time.Duration `yaml:"ledger_timeout"`
	ReleaseTimeout  time.Duration `yaml:"release_timeout"`
	ReleaseAttempts int           `yaml:"release_attempts"`
	ReleaseBackoff  time.Duration `yaml:"release_backoff"`
	EscalateTimeout time.Duration `yaml:"escalate_timeout"`
}

type ReconcilerConfig struct {
	Backoff        time.Duration `yaml:"backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	ReleaseTimeout time.Duration `yaml:"release_timeout"`
}

type ResourceSeed struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Units       int    `yaml:"units"`
}

func Default() *Config {
	return &Config{
		ServiceName: "ticket-booking",
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		Log:         LogConfig{Level: "info"},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/ticketing?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Kafka: KafkaConfig{
			IncidentTopic: "booking.compensation-failed",
			ConsumerGroup: "booking-reconciler",
		},
		Saga: SagaConfig{
			LedgerTimeout:   3 * time.Second,
			ReleaseTimeout:  2 * time.Second,
			ReleaseAttempts: 3,
			ReleaseBackoff:  50 * time.Millisecond,
			EscalateTimeout: 5 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Backoff:        time.Second,
			MaxBackoff:     time.Minute,
			ReleaseTimeout: 2 * time.Second,
		},
		Resources: []ResourceSeed{
			{ID: "concert-2026", DisplayName: "Concert 2026", Units: 100},
		},
	}
}

// Load builds the configuration from args (without the program name) and the
// given environment lookup.
func Load(args []string, getenv func(string) string) (*Config, error) {
	flagSet := pflag.NewFlagSet("ticket-booking", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to YAML config file (env TICKETING_CONFIG)")
	httpAddr := flagSet.String("http-addr", "", "HTTP listen address")
	grpcAddr := flagSet.String("grpc-addr", "", "gRPC listen address")
	logLevel := flagSet.String("log-level", "", "log level (debug, info, warn, error)")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path := *configPath
	if path == "" {
		path = getenv("TICKETING_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString("HTTP_ADDR", &c.HTTPAddr)
	setString("GRPC_ADDR", &c.GRPCAddr)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("MYSQL_DSN", &c.MySQL.DSN)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("KAFKA_INCIDENT_TOPIC", &c.Kafka.IncidentTopic)
	setString("JAEGER_ENDPOINT", &c.JaegerEndpoint)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REDIS_POOL_SIZE: %w", ErrInvalidConfig, err)
		}
		c.Redis.PoolSize = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc_addr is required"))
	}
	if c.MySQL.DSN == "" {
		errs = append(errs, errors.New("mysql.dsn is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Saga.ReleaseAttempts < 1 {
		errs = append(errs, errors.New("saga.release_attempts must be at least 1"))
	}
	if c.Saga.LedgerTimeout <= 0 || c.Saga.ReleaseTimeout <= 0 {
		errs = append(errs, errors.New("saga timeouts must be positive"))
	}
	if c.Saga.ReleaseBackoff <= 0 {
		errs = append(errs, errors.New("saga.release_backoff must be positive"))
	}
	if c.Reconciler.MaxBackoff < c.Reconciler.Backoff {
		errs = append(errs, errors.New("reconciler.max_backoff is below reconciler.backoff"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.ConsumerGroup == "" {
		errs = append(errs, errors.New("kafka.consumer_group is required with brokers"))
	}

	seen := make(map[string]bool)
	for i, r := range c.Resources {
		switch {
		case r.ID == "":
			errs = append(errs, fmt.Errorf("resources[%d]: id is required", i))
		case len(r.ID) > domain.MaxResourceIDLen:
			errs = append(errs, fmt.Errorf("resources[%d]: id longer than %d bytes", i, domain.MaxResourceIDLen))
		case len(r.DisplayName) > domain.MaxDisplayNameLen:
			errs = append(errs, fmt.Errorf("resources[%d]: display_name longer than %d bytes", i, domain.MaxDisplayNameLen))
		case seen[r.ID]:
			errs = append(errs, fmt.Errorf("resources[%d]: duplicate id %q", i, r.ID))
		case r.Units < 1:
			errs = append(errs, fmt.Errorf("resources[%d]: units must be at least 1", i))
		}
		seen[r.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
