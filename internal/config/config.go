package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is assembled from the environment, optionally seeded from a .env
// file. Postgres, Redis and the price feed are all optional: an empty
// setting disables the corresponding integration.
type Config struct {
	HTTPAddr string

	PG struct {
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	PGEnabled bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	FeedURL string

	StartCash  decimal.Decimal
	MarginRate decimal.Decimal
}

// Load reads the optional env file and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")

	cfg.PG.Host = os.Getenv("PG_HOST")
	cfg.PGEnabled = cfg.PG.Host != ""
	if cfg.PGEnabled {
		cfg.PG.Port = getenv("PG_PORT", "5432")
		cfg.PG.User = getenv("PG_USER", "papertrade")
		cfg.PG.Password = os.Getenv("PG_PASSWORD")
		cfg.PG.DBName = getenv("PG_DBNAME", "papertrade")
		cfg.PG.SSLMode = getenv("PG_SSL_MODE", "disable")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	ttl, err := getenvDuration("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = ttl

	cfg.FeedURL = os.Getenv("FEED_URL")

	cfg.StartCash, err = getenvDecimal("START_CASH", "100000")
	if err != nil {
		return nil, err
	}
	cfg.MarginRate, err = getenvDecimal("MARGIN_RATE", "0.20")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN renders the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PG.User,
		c.PG.Password,
		c.PG.Host,
		c.PG.Port,
		c.PG.DBName,
		c.PG.SSLMode)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getenvDecimal(key, def string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
