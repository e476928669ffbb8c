package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"chatpdf/internal/app"
	"chatpdf/internal/config"
	"chatpdf/internal/logging"
	"chatpdf/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		reset   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/chatpdf/config.yaml if not provided)")
	flag.BoolVar(&reset, "reset", false, "Delete the persisted index before ingesting")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	session, err := app.Build(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}
	defer session.Clear()

	ctx := context.Background()
	if reset {
		if err := session.Reset(ctx); err != nil {
			log.Fatalf("reset failed: %v", err)
		}
	}

	var summary string
	if len(inputs) == 0 {
		persisted, err := session.Persisted(ctx)
		if err != nil {
			log.Fatalf("index check failed: %v", err)
		}
		if !persisted {
			fmt.Println("Usage: chatpdf [--config=config.yaml] [--reset] file.pdf [more.pdf ...]")
			fmt.Println("No persisted index found; pass at least one document to ingest.")
			os.Exit(1)
		}
		if err := session.Load(ctx); err != nil {
			log.Fatalf("load failed: %v", err)
		}
		summary = "Using the persisted index."
	}
	for _, path := range inputs {
		report, err := session.Ingest(ctx, path)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		summary = fmt.Sprintf("%s: %d pages, %d chunks. %s", report.Path, report.Pages, report.Chunks, report.Summary)
	}

	m := tui.New(session, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
