// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/dayout/planner/internal/auth"
	"github.com/dayout/planner/internal/database"
	"github.com/dayout/planner/internal/handlers"
	"github.com/dayout/planner/internal/journal"
	"github.com/dayout/planner/internal/outing"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := auth.Init(); err != nil {
		logger.Fatalf("auth init failed: %v", err)
	}

	svc := outing.NewService(logger)

	// Postgres mirror and Redis journal are both optional collaborators;
	// the core runs fully in memory without them.
	ctx := context.Background()
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		store, err := database.Connect(ctx, connString)
		if err != nil {
			logger.Fatalf("database connect failed: %v", err)
		}
		defer store.Close()
		svc.Archive = store
		logger.Info("archive store connected")
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		j, err := journal.Connect(ctx, addr, getEnvInt("REDIS_DB", 0), os.Getenv("LIKE_QUEUE_NAME"))
		if err != nil {
			logger.Fatalf("journal connect failed: %v", err)
		}
		defer j.Close()
		svc.Journal = j
		logger.Info("like journal connected")
	}

	srv := handlers.NewServer(logger, svc)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("server exited: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown error: %v", err)
		}
	}
}

// getEnvInt parses an environment variable as an integer, else a default.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
