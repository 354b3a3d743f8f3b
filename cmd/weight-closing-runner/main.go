// weight-closing-runner periodically fills open weight closing orders at the
// current market price. The sweep interval is WEIGHT_CLOSING_INTERVAL_SECONDS
// (default 300). Replicas coordinate through a redis lock, so running more
// than one is safe.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/models"
	"github.com/asaalabbadi2-web/goldbooks_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error(err)
			os.Exit(1)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	interval := time.Duration(intFromEnv("WEIGHT_CLOSING_INTERVAL_SECONDS", 300)) * time.Second
	provider := &workflow.RedisPriceProvider{}

	logger.WithFields(logrus.Fields{"interval": interval.String()}).Info("weight closing runner started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := workflow.RunWeightClosing(sigCtx, provider); err != nil {
			config.LogError(logger, "main", "main", "weight closing sweep failed", nil, err)
		}
		select {
		case <-sigCtx.Done():
			logger.Info("weight closing runner stopping")
			return
		case <-ticker.C:
		}
	}
}

func intFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
