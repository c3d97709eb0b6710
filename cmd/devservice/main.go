package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/bdougie/cropcurator/internal/devservice"
	"github.com/bdougie/cropcurator/internal/models"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)

	addr := ":8000"
	videos := "reef_dive.mp4,harbor.mp4"
	frames := 120

	args := os.Args
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			if i+1 < len(args) {
				addr = args[i+1]
				i++
			}
		case "--videos":
			if i+1 < len(args) {
				videos = args[i+1]
				i++
			}
		case "--frames":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil || n <= 0 {
					fmt.Println("--frames must be a positive number")
					os.Exit(1)
				}
				frames = n
				i++
			}
		default:
			fmt.Println("Usage: devservice [--addr :8000] [--videos a.mp4,b.mp4] [--frames 120]")
			os.Exit(1)
		}
	}

	var refs []models.VideoRef
	for _, name := range strings.Split(videos, ",") {
		if name = strings.TrimSpace(name); name != "" {
			refs = append(refs, models.VideoRef{Filename: name, Path: filepath.Join("/videos", name)})
		}
	}

	app, err := devservice.NewServer(devservice.NewStore(refs, frames), logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("dev annotation service listening", "addr", addr, "videos", len(refs), "frames", frames)
	if err := app.Listen(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
