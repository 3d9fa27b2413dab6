package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	PostgresURL    string        `long:"postgres-url" env:"POSTGRES_URL" description:"Postgres connection string"`
	RedisAddr      string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address"`
	HTTPAddr       string        `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`
	JaegerEndpoint string        `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint, tracing is not exported when empty"`
	SyncInterval   time.Duration `long:"sync-interval" env:"SYNC_INTERVAL" default:"1m" description:"Interval of the background ticket status synchronizer"`
	LogLevel       string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level"`
}

// Load reads the optional .env file and then flags and environment. Values
// already present in the environment win over .env.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("could not load .env: %w", err)
	}

	var cfg Config
	if _, err := flags.NewParser(&cfg, flags.Default).ParseArgs(args); err != nil {
		return Config{}, err
	}

	if cfg.PostgresURL == "" {
		return Config{}, errors.New("postgres url must be set")
	}
	if cfg.RedisAddr == "" {
		return Config{}, errors.New("redis address must be set")
	}
	if cfg.SyncInterval <= 0 {
		return Config{}, fmt.Errorf("sync interval must be positive, got %s", cfg.SyncInterval)
	}

	return cfg, nil
}

func (c Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}
