package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/app"
	"github.com/dokzlo13/ambience/internal/config"
	"github.com/dokzlo13/ambience/internal/reconcile"
	"github.com/dokzlo13/ambience/internal/ui"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	scanOnly := flag.Bool("scan", false, "Run one discovery, print the result and exit")
	resetHistory := flag.Bool("reset-history", false, "Clear the event history on startup")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// The terminal UI owns the screen, so its logs go to a file
	out := io.Writer(os.Stderr)
	if !*scanOnly {
		f, err := openLogFile(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		defer f.Close()
		out = f
	}
	setupLogging(out, cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors && *scanOnly)

	log.Info().Str("config", configPath).Str("store", cfg.Store.Path).Msg("Starting ambience")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *resetHistory {
		deleted, err := application.ResetHistory()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to clear event history")
		} else {
			log.Info().Int64("deleted", deleted).Msg("Cleared event history (-reset-history)")
		}
	}

	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	if *scanOnly {
		err = runScan(ctx, application, os.Stdout)
	} else {
		err = runUI(ctx, application)
	}
	if err != nil {
		log.Error().Err(err).Msg("ambience failed")
	}

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	if err != nil {
		os.Exit(1)
	}
}

func runUI(ctx context.Context, a *app.App) error {
	s := a.Services()
	model := ui.New(ctx, ui.Deps{
		Runner:  s.Runner,
		Groups:  s.Groups,
		Lights:  s.Lights,
		Control: s.Control,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Interrupted by a signal
		return nil
	}
	return err
}

func runScan(ctx context.Context, a *app.App, w io.Writer) error {
	entries, err := a.Scan(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tADDRESS\tFEATURES\tSTATE\tGROUP")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Light.ID, e.Light.Label, e.Light.Address, e.Light.Capabilities, e.State, groupOrDash(e))
	}
	return tw.Flush()
}

func groupOrDash(e reconcile.Entry) string {
	if e.Group == "" {
		return "-"
	}
	return e.Group
}

func openLogFile(cfg *config.Config) (*os.File, error) {
	path := cfg.Log.File
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.Store.Path), "ambience.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func setupLogging(out io.Writer, level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
