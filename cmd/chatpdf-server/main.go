package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"chatpdf/internal/api"
	"chatpdf/internal/app"
	"chatpdf/internal/config"
	"chatpdf/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath  = flag.String("config", "", "Path to YAML config file (optional; uses ~/.config/chatpdf/config.yaml if not provided)")
		addr     = flag.String("addr", "", "Listen address (overrides server.addr)")
		document = flag.String("document", "", "Document to ingest at startup (overrides server.document)")
	)
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *document != "" {
		cfg.Server.Document = *document
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	session, err := app.Build(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}
	defer func() {
		if err := session.Clear(); err != nil {
			logger.Error("index close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Document != "" {
		if _, err := session.Ingest(ctx, cfg.Server.Document); err != nil {
			logger.Error("startup ingest failed", "path", cfg.Server.Document, "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(session, logger.With("component", "api")).Router(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSecs) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chatpdf listening", "addr", cfg.Server.Addr, "state", session.State())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
