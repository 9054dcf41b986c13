package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memomind/internal/analysis"
	"github.com/conorfennell/memomind/internal/auth"
	"github.com/conorfennell/memomind/internal/billing"
	"github.com/conorfennell/memomind/internal/practice"
	"github.com/conorfennell/memomind/internal/ratelimit"
	"github.com/conorfennell/memomind/internal/reminder"
	"github.com/conorfennell/memomind/internal/storage"
	"github.com/conorfennell/memomind/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Address to listen on, e.g. :8080")
	serveCmd.Flags().Bool("reminders", false, "Send hourly practice reminders")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened", "path", cfg.Database.Path)

	loc, err := cfg.Practice.Location()
	if err != nil {
		return err
	}
	engine := practice.NewEngine(db, practice.WithLocation(loc))

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	gateway := analysis.NewGateway(analysis.Config{
		APIKey:    cfg.Analysis.APIKey,
		BaseURL:   cfg.Analysis.BaseURL,
		Model:     cfg.Analysis.Model,
		MaxTokens: cfg.Analysis.MaxTokens,
		Referer:   cfg.Analysis.Referer,
	})
	defer gateway.Close()
	if cfg.Analysis.APIKey == "" {
		slog.Warn("Analysis API key not set, /analyze will report ANALYSIS_NOT_CONFIGURED")
	}

	razorpay := billing.NewRazorpayClient(cfg.Billing.BaseURL, cfg.Billing.KeyID, cfg.Billing.KeySecret)
	defer razorpay.Close()
	billingService := billing.NewService(db, razorpay, billing.Config{
		KeyID:         cfg.Billing.KeyID,
		KeySecret:     cfg.Billing.KeySecret,
		PlanIDMonthly: cfg.Billing.PlanIDMonthly,
		PlanIDYearly:  cfg.Billing.PlanIDYearly,
	})

	deps := web.Deps{
		Notes:    db,
		Practice: engine,
		Analyzer: gateway,
		Billing:  billingService,
		Push:     db,
		Auth:     verifier,
		Events:   web.LogTracker{},
	}
	if cfg.RateLimit.RedisAddr != "" {
		limiter, err := ratelimit.NewFixedWindowLimiter(
			cfg.RateLimit.RedisAddr,
			cfg.RateLimit.RedisPassword,
			cfg.RateLimit.Prefix,
			cfg.RateLimit.AnalyzeLimit,
			cfg.RateLimit.Window,
		)
		if err != nil {
			return err
		}
		defer limiter.Close()
		deps.Limiter = limiter
	}

	if cfg.Reminders.Enabled {
		reminders := reminder.New(db, engine, reminder.LogNotifier{}, loc)
		if err := reminders.Start(); err != nil {
			return err
		}
		defer reminders.Stop()
		slog.Info("Reminder scheduler started", "timezone", loc.String())
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: web.NewServer(deps, web.Options{
			RequirePremium:     cfg.Analysis.RequirePremium,
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
