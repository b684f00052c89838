package main

import (
	"context"
	"fmt"
	"os"

	"folio/internal/config"
	"folio/internal/engine"
	"folio/internal/logger"
	"folio/internal/quotes"
	"folio/internal/repository"

	"github.com/charmbracelet/glamour"
	"github.com/schollz/progressbar/v3"
)

// app is what every command works on: the configured store and an engine
// over it. Without the server's quote feed positions are valued at cost.
type app struct {
	cfg    *config.Config
	store  repository.Store
	engine *engine.Engine
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Out: os.Stderr, Service: "folioctl"})
	store, err := repository.Open(ctx, repository.NewConfig(repository.Kind(cfg.Store), cfg.DatabaseURL, cfg.SqlitePath))
	if err != nil {
		return nil, err
	}
	market := quotes.New(cfg.QuoteTTL)
	return &app{
		cfg:    cfg,
		store:  store,
		engine: engine.NewEngine(store, market, market, engine.NewEngineConfig(true, nil), log),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// printMarkdown renders md for the terminal, or prints it raw when the
// renderer fails.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Recording snapshots..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
