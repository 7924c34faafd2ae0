package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/tillbook/internal/api"
	"github.com/gyaneshwarpardhi/tillbook/internal/config"
	"github.com/gyaneshwarpardhi/tillbook/internal/engine"
	"github.com/gyaneshwarpardhi/tillbook/internal/store/memory"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/tillbook.yaml", "Path to settings YAML")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load settings ────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load settings", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	settings, err := engine.Compile(cfg)
	if err != nil {
		slog.Error("failed to compile settings", "err", err)
		os.Exit(1)
	}
	slog.Info("settings loaded",
		"timezone", cfg.Calendar.Timezone,
		"offset_minutes", cfg.Calendar.ReportingOffsetMinutes,
		"rules", len(settings.Rules))

	// ── Store + engine ────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	eng := engine.New(ctx, store, settings)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Settings) {
		if err := eng.Apply(newCfg); err != nil {
			slog.Warn("hot-reload skipped", "err", err)
		}
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("settings watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, store, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	eng.Shutdown()
	transactions, payouts, deposits := store.Counts()
	slog.Info("goodbye", "transactions", transactions, "payouts", payouts, "deposits", deposits)
}
