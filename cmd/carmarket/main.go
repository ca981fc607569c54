package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carmarket/internal/clock"
	"carmarket/internal/config"
	"carmarket/internal/http/handlers"
	applog "carmarket/internal/log"
	"carmarket/internal/repos"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	// Init skips the two applog frames; direct calls here need them back.
	logger := applog.Init(cfg.Env, out).WithOptions(zap.AddCallerSkip(-2))
	defer applog.Sync()

	// Users and sessions always live in SQLite, whatever STORE says.
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	deps, err := handlers.NewDeps(ctx, db, cfg, clock.NewSystem())
	cancel()
	if err != nil {
		logger.Fatal("wire services", zap.Error(err))
	}

	app := handlers.NewApp(deps, handlers.Options{AccessLog: out})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("port", cfg.Port), zap.String("store", cfg.Store))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}
