package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"raillink/app"
	"raillink/config"
	"raillink/db"
	"raillink/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		logrus.WithError(err).Fatal("Could not load config")
	}

	level, err := cfg.Level()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("Could not configure tracing")
	}

	dbConn, err := db.Open(cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("Could not connect to Postgres")
	}
	defer dbConn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	a, err := app.New(
		app.Config{
			HTTPAddr:     cfg.HTTPAddr,
			SyncInterval: cfg.SyncInterval,
		},
		dbConn,
		redisClient,
		traceProvider,
	)
	if err != nil {
		logrus.WithError(err).Fatal("Could not create app")
	}

	if err := a.Run(ctx); err != nil {
		logrus.WithError(err).Error("App stopped with error")
		os.Exit(1)
	}
}
