// Package config builds the process configuration once at startup from the
// environment. Components never read the environment themselves; they receive
// the relevant values through their constructors.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslib/borrowsvc/internal/core"
)

const (
	defaultHTTPAddr          = ":5008"
	defaultPostgresHost      = "localhost"
	defaultPostgresPort      = "5432"
	defaultPostgresDatabase  = "borrows"
	defaultBrokerHost        = "localhost"
	defaultBrokerPort        = "5672"
	defaultQueueName         = "borrow_book"
	defaultStudentServiceURL = "http://user:5002"
	defaultBookServiceURL    = "http://book:5006"
	defaultGatewayTimeout    = 5 * time.Second
)

// PostgresConfig holds the connection parameters for the record store.
type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// DSN renders the Postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database,
	)
}

// BrokerConfig holds the connection parameters for the message broker.
type BrokerConfig struct {
	User     string
	Password string
	Host     string
	Port     string
}

// URL renders the AMQP connection string.
func (c BrokerConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port,
	)
}

// Config is the complete startup configuration of the borrow service.
type Config struct {
	HTTPAddr          string
	Postgres          PostgresConfig
	Broker            BrokerConfig
	QueueName         string
	BorrowLimit       int
	StudentServiceURL string
	BookServiceURL    string
	GatewayTimeout    time.Duration
}

// Load reads the configuration from the environment, applying defaults for
// everything that is not set. It fails on values that do not parse.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     envOrDefault("POSTGRES_HOST", defaultPostgresHost),
			Port:     envOrDefault("POSTGRES_PORT", defaultPostgresPort),
			Database: envOrDefault("POSTGRES_DB", defaultPostgresDatabase),
		},
		Broker: BrokerConfig{
			User:     os.Getenv("RABBITMQ_DEFAULT_USER"),
			Password: os.Getenv("RABBITMQ_DEFAULT_PASS"),
			Host:     envOrDefault("RABBITMQ_HOST", defaultBrokerHost),
			Port:     envOrDefault("RABBITMQ_PORT", defaultBrokerPort),
		},
		QueueName:         envOrDefault("QUEUE_NAME", defaultQueueName),
		BorrowLimit:       core.DefaultBorrowLimit,
		StudentServiceURL: envOrDefault("STUDENT_SERVICE_URL", defaultStudentServiceURL),
		BookServiceURL:    envOrDefault("BOOK_SERVICE_URL", defaultBookServiceURL),
		GatewayTimeout:    defaultGatewayTimeout,
	}

	if raw := os.Getenv("BORROW_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid BORROW_LIMIT %q: must be a positive integer", raw)
		}

		cfg.BorrowLimit = limit
	}

	if raw := os.Getenv("GATEWAY_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return Config{}, fmt.Errorf("invalid GATEWAY_TIMEOUT %q: must be a positive duration", raw)
		}

		cfg.GatewayTimeout = timeout
	}

	return cfg, nil
}

// PGXPoolConfig creates a pgxpool.Config for the record store database.
func (c Config) PGXPoolConfig() (*pgxpool.Config, error) {
	const defaultMaxConnections = int32(8)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(c.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}

func envOrDefault(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
