// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Web server command for the llmui CLI.
//
// Handles "llmui serve" (the default command), which runs the local web
// UI: embedded chat page, chat API, saved chat store, search index and
// per-session event log, all shut down gracefully on SIGINT/SIGTERM.
//
// Command: serve (default)
// Aliases: server, web
//
// Examples:
//   llmui                       Serve on the configured address
//   llmui serve --port 9000     Override the listen port
//   llmui serve --host 0.0.0.0  Listen on all interfaces

package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/llmui/internal/config"
	"github.com/jeranaias/llmui/internal/index"
	"github.com/jeranaias/llmui/internal/ollama"
	"github.com/jeranaias/llmui/internal/server"
	"github.com/jeranaias/llmui/internal/session"
)

// HandleServeCommand handles the "serve" command.
func HandleServeCommand(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	// CLI flags override the config file
	if args.Host != "" {
		cfg.Server.Host = args.Host
	}
	if args.Port != 0 {
		cfg.Server.Port = args.Port
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		DefaultModel: cfg.Ollama.Model,
	})

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg, client, store)

	// Search index: the server answers /api/search without it, so a
	// failure here only loses ranked results
	idx, err := index.New(store, index.DefaultConfig(store))
	if err != nil {
		log.Printf("INDEX_UNAVAILABLE | err=%v", err)
	} else {
		defer idx.Close()
		if err := idx.StartWatching(); err != nil {
			log.Printf("INDEX_WATCH_FAILED | err=%v", err)
		}
		go func() {
			if err := idx.Rebuild(context.Background()); err != nil {
				log.Printf("INDEX_REBUILD_FAILED | err=%v", err)
			}
		}()
		srv.WithIndex(idx)
	}

	mgr := session.NewManager(session.DefaultConfig())
	if logger := openSessionLog(cfg, mgr.SessionID()); logger != nil {
		logger.LogSessionStart(cfg.Ollama.Model)
		defer logger.Close()
		srv.WithSessionLogger(logger)
	}

	// Log config file changes; a restart picks them up
	if path, pathErr := config.ConfigPath(); pathErr == nil {
		if watcher, watchErr := config.NewWatcher(path, func(newCfg *config.Config) {
			log.Printf("CONFIG_CHANGED | path=%s model=%s (restart to apply)", path, newCfg.Ollama.Model)
		}); watchErr == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	// Warn early when Ollama is down; the server still starts and the
	// UI shows the backend status
	ctx := context.Background()
	if err := client.CheckRunning(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s Ollama is not reachable at %s\n",
			WarningStyle.Render("[WARN]"), cfg.Ollama.URL)
		fmt.Fprintln(os.Stderr, DimStyle.Render("  Start it with: ollama serve"))
	}

	if !args.Quiet {
		fmt.Printf("%s http://%s\n", SuccessStyle.Render("llmui serving on"), cfg.ListenAddr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapError(err, "server failed")
		}
		return nil

	case sig := <-sigCh:
		log.Printf("SIGNAL_RECEIVED | signal=%s", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return WrapError(err, "shutdown failed")
		}
		<-errCh
		return nil
	}
}
