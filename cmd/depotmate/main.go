package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/depotmate/internal/api"
	"github.com/user/depotmate/internal/cleanup"
	"github.com/user/depotmate/internal/config"
	"github.com/user/depotmate/internal/downloader"
	"github.com/user/depotmate/internal/hub"
	"github.com/user/depotmate/internal/journal"
	"github.com/user/depotmate/internal/server"
	"github.com/user/depotmate/internal/shortcuts"
)

func main() {
	level := slog.LevelInfo
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jrnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		slog.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer jrnl.Close()

	supervisor := downloader.New(cfg.DownloaderPath, cleanup.NewWorker())
	h := hub.New(cfg.Token, supervisor.SubmitCode, supervisor.Cancel)
	go h.Run(ctx)

	repo := shortcuts.NewRepository(cfg.SteamRoot)
	apiHandler := api.NewRouter(supervisor, jrnl, h, repo, cfg.DownloadRoot, cfg.Token, cfg.Verbose)

	if cfg.PrintToken {
		fmt.Printf("\ndepotmate running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)
	}

	srv := server.New(cfg, h, apiHandler)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// A live download should not outlive the server. Cancel it and wait
	// for the process to settle so the kill-after-grace timer gets to run.
	if sess := supervisor.Current(); sess != nil {
		supervisor.Cancel()
		select {
		case <-sess.Done():
		case <-time.After(10 * time.Second):
			slog.Warn("download did not stop before exit", "session", sess.ID())
		}
	}
}
