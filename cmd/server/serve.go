package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"authflow/internal/account"
	"authflow/internal/auth"
	"authflow/internal/database"
	"authflow/internal/email"
	"authflow/internal/errutil"
	"authflow/internal/logging"
	"authflow/internal/observability"
	redisx "authflow/internal/redis"
	"authflow/internal/server"
	"authflow/internal/token"
)

const shutdownTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	out, closer, err := logging.Output(cfg.LogFile)
	if err != nil {
		return oops.Code("LOG_SETUP_FAILED").With("path", cfg.LogFile).Wrap(err)
	}
	defer closer.Close()
	logger := logging.Setup("authflow", version, cfg.LogFormat, out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		errutil.LogError(ctx, logger, "database unavailable", err)
		return err
	}
	defer pool.Close()

	rdb, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		errutil.LogError(ctx, logger, "redis unavailable", err)
		return err
	}
	defer rdb.Close()

	obs := observability.NewServer(cfg.MetricsAddr, observability.Readiness(
		pool.Ping,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	), logger)
	metrics := obs.Metrics()

	confirmTokens, err := token.New([]byte(cfg.TokenSecret), token.ConfirmAccount, token.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}
	resetTokens, err := token.New([]byte(cfg.TokenSecret), token.ResetPassword, token.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}

	var transport email.Transport = email.LogTransport{Logger: logger}
	if cfg.Email.Enabled() {
		transport = email.NewSender(cfg.Email)
	} else {
		logger.Warn("smtp not configured, emails will only be logged")
	}

	sessions := &auth.SessionStore{Redis: rdb}
	accounts := account.NewService(account.Deps{
		Store:         auth.NewCredentialStore(pool),
		ConfirmTokens: confirmTokens,
		ResetTokens:   resetTokens,
		Mailer:        email.NewGateway(cfg, transport, logger, email.WithCounter(metrics.EmailsSent)),
		Sessions:      sessions,
		Hasher:        auth.NewBcryptHasher(),
		Logger:        logger,
		Operations:    metrics.AccountOperations,
		SessionTTL:    cfg.SessionTTL,
	})

	api := server.NewServer(cfg, accounts, sessions, &auth.FlashStore{Redis: rdb}, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	var obsErr <-chan error
	if cfg.MetricsAddr != "" {
		if obsErr, err = obs.Start(); err != nil {
			return err
		}
	}

	srvErr := make(chan error, 1)
	go func() {
		defer close(srvErr)
		logger.Info("listening", "addr", srv.Addr, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-srvErr:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err := <-obsErr:
		runErr = oops.Code("METRICS_SERVE_FAILED").Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(shutdownCtx, logger, "http shutdown failed", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		errutil.LogError(shutdownCtx, logger, "metrics shutdown failed", err)
	}
	if runErr != nil {
		errutil.LogError(shutdownCtx, logger, "server stopped", runErr)
	}
	return runErr
}
