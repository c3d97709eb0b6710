package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"

	"github.com/bdougie/cropcurator/internal/client"
	"github.com/bdougie/cropcurator/internal/config"
	"github.com/bdougie/cropcurator/internal/frameinfo"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/storage"
	"github.com/bdougie/cropcurator/internal/tui"
)

const similarUsage = "Usage: cropcurator similar X Y W H [flags]"

func main() {
	args := os.Args[1:]
	var query *models.BBox
	if len(args) > 0 && args[0] == "similar" {
		box, err := parseBox(args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, similarUsage)
			os.Exit(2)
		}
		query = &box
		args = args[5:]
	}

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.Usage)
		os.Exit(2)
	}

	// The TUI owns the terminal, so logs go to a file unless none is given
	var out io.Writer = os.Stderr
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(
		tint.NewHandler(out, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: "15:04:05",
			NoColor:    cfg.LogPath != "",
		}),
	)
	slog.SetDefault(logger)

	ctx := context.Background()
	journal, err := storage.Open(ctx, cfg.DatabaseURL, cfg.JournalPath, config.JournalBatchSize, logger)
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	if journal != nil {
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Error("failed to close journal", "error", err)
			}
		}()
	}

	if query != nil {
		if err := printSimilar(ctx, journal, *query); err != nil {
			logger.Error("similar region lookup failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, journal, logger); err != nil {
		logger.Error("cropcurator exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, journal storage.Journal, logger *slog.Logger) error {
	api := client.New(cfg.APIBase, cfg.Timeout, logger)
	probe := frameinfo.NewService(api, config.ProbeWorkers, 0, logger)
	defer probe.Close()

	deps := tui.Deps{
		Service:    api,
		Prober:     probe,
		Downloader: storage.NewDownloadDir(cfg.DownloadDir),
		Logger:     logger,
	}
	if journal != nil {
		deps.Journal = journal
	}
	model := tui.New(deps)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(model, opts...)
	model.Attach(p)

	logger.Info("starting cropcurator", "api", cfg.APIBase, "downloads", cfg.DownloadDir)
	_, err := p.Run()
	return err
}

func parseBox(args []string) (models.BBox, error) {
	var box models.BBox
	if len(args) < 4 {
		return box, fmt.Errorf("similar needs four numbers")
	}
	for i := range box {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return box, fmt.Errorf("invalid box value %q: %w", args[i], err)
		}
		box[i] = v
	}
	return box, nil
}

func printSimilar(ctx context.Context, journal storage.Journal, box models.BBox) error {
	if journal == nil {
		return fmt.Errorf("no journal configured, pass --journal or --database")
	}
	matches, err := journal.SimilarRegions(ctx, box, 10)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DISTANCE\tVIDEO\tFRAME\tLABEL\tCROP")
	for _, m := range matches {
		fmt.Fprintf(w, "%.4f\t%s\t%d\t%s\t%s\n", m.Distance, m.VideoName, m.FrameIndex, m.Label, m.Ref)
	}
	return w.Flush()
}
