package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/adapter/cache"
	"github.com/quantverse/papertrade/internal/adapter/pg"
	"github.com/quantverse/papertrade/internal/api/http"
	"github.com/quantverse/papertrade/internal/config"
	"github.com/quantverse/papertrade/internal/core"
	"github.com/quantverse/papertrade/internal/feed"
	"github.com/quantverse/papertrade/internal/metrics"
	"github.com/quantverse/papertrade/internal/port"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	envFile := ""
	if _, err := os.Stat(".env"); err == nil {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()

	var repo port.Repository
	if cfg.PGEnabled {
		pgRepo, err := pg.NewPgRepo(ctx, cfg.DSN())
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Postgres")
		}
		defer pgRepo.Close()
		repo = pgRepo
		log.WithField("host", cfg.PG.Host).Info("postgres persistence enabled")
	}

	var acctCache port.Cache
	if cfg.RedisAddr != "" {
		acctCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		log.WithField("addr", cfg.RedisAddr).Info("redis account cache enabled")
	}

	met := metrics.New()
	mgr := core.NewManager(cfg.StartCash, cfg.MarginRate, repo, acctCache, log, met)

	if repo != nil {
		n, err := mgr.RestoreAll(ctx)
		if err != nil {
			log.WithError(err).Fatal("failed to restore persisted sessions")
		}
		if n > 0 {
			log.WithField("sessions", n).Info("restored persisted sessions")
		}
	}

	if cfg.FeedURL != "" {
		sess := mgr.Create(cfg.StartCash)
		log.WithFields(logrus.Fields{
			"url":     cfg.FeedURL,
			"session": sess.ID(),
		}).Info("starting price feed pump")
		go func() {
			feeder := feed.NewWSFeeder(cfg.FeedURL, log)
			if err := feed.Pump(ctx, feeder, sess, log); err != nil {
				log.WithError(err).Error("price feed stopped")
			}
		}()
	}

	server := http.NewHTTPServer(mgr, met, log)
	log.WithField("addr", cfg.HTTPAddr).Info("starting HTTP server")
	if err := server.Run(cfg.HTTPAddr); err != nil {
		log.WithError(err).Fatal("HTTP server failed")
	}
}
