/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"savings-intents-go/internal/api"
	"savings-intents-go/internal/auth"
	"savings-intents-go/internal/common"
	"savings-intents-go/internal/config"
	"savings-intents-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting savings intents server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("notify_backend", cfg.Notify.Backend))

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		zap.L().Fatal("Invalid auth configuration", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, logger)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Callback.SigningSecret == "" {
		zap.L().Warn("CALLBACK_SIGNING_SECRET not set, provider callbacks are not signature checked")
	}

	handlers := api.NewHandlers(
		services.Intents,
		services.Callbacks,
		services.Queries,
		services.Reconciler,
		services.Store,
		cfg.Callback.SigningSecret,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Routes(handlers, verifier, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	expiry := sweeper.New(sweeper.Config{
		Store:    services.Store,
		Intents:  services.Intents,
		Window:   cfg.Intents.ExpiryWindow,
		Interval: cfg.Intents.SweepInterval,
	})
	expiry.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		zap.L().Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
	cancel()
	expiry.Stop()

	zap.L().Info("Server stopped gracefully")
}
