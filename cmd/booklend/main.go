package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"booklend/internal/app"
	"booklend/internal/config"
	"booklend/internal/server"
	"booklend/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		StoreBackend:    cfg.StoreBackend,
		DatabaseURL:     cfg.DatabaseURL,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		CheckoutRetries: cfg.CheckoutRetries,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{App: appCore})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("booklend server listening", "addr", addr, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
