package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapshot-stitcher/internal/archive"
	"snapshot-stitcher/internal/cmdutil"
	"snapshot-stitcher/internal/env"
	"snapshot-stitcher/internal/logging"
	"snapshot-stitcher/internal/schedule"
)

func main() {
	if err := env.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	var configPath string
	var once bool
	var dryRun bool
	var skipManifest bool
	var debug bool
	var captureFlags cmdutil.CaptureFlags
	var storageFlags cmdutil.StorageFlags
	flag.StringVar(&configPath, "config", env.OrDefault("SCHEDULE_CONFIG", "schedule.yaml"), "YAML file listing the capture jobs")
	flag.BoolVar(&once, "once", env.OrDefault("ONCE", false), "Run every job once and exit")
	flag.BoolVar(&dryRun, "dry-run", env.OrDefault("DRY_RUN", false), "Print the next activations of every job and exit")
	flag.BoolVar(&skipManifest, "skip-manifest", env.OrDefault("SKIP_MANIFEST", false), "Store only the image")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logs")
	captureFlags.Register(flag.CommandLine)
	storageFlags.Register(flag.CommandLine, "/tmp")

	flag.Parse()

	log, err := logging.New(logging.Options{Development: debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	entrypointLogger := log.WithName("entrypoint")

	config, err := schedule.LoadFile(configPath)
	if err != nil {
		entrypointLogger.Error(err, "failed to load schedule")
		os.Exit(1)
	}

	if dryRun {
		now := time.Now()
		for _, job := range config.Jobs {
			for _, next := range job.Next(now, 3) {
				fmt.Printf("%s\t%s\t%s\n", job.Name, job.Request().URL, next.Format(time.RFC3339))
			}
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer, _, err := captureFlags.NewCapturer(ctx, log.WithName("capture"))
	if err != nil {
		entrypointLogger.Error(err, "failed to initialize capturer")
		os.Exit(1)
	}
	s, err := storageFlags.New(ctx)
	if err != nil {
		entrypointLogger.Error(err, "failed to create storage backend")
		os.Exit(1)
	}

	runner := &schedule.Runner{
		Capturer: capturer,
		Archiver: &archive.Archiver{Storage: s, SkipManifest: skipManifest},
		Log:      log.WithName("runner"),
	}
	scheduler, err := schedule.New(config, runner, log.WithName("cron"))
	if err != nil {
		entrypointLogger.Error(err, "failed to create scheduler")
		os.Exit(1)
	}

	if once {
		if err := scheduler.RunAll(ctx, config); err != nil {
			os.Exit(1)
		}
		return
	}

	entrypointLogger.Info("starting scheduler", "jobs", len(config.Jobs))
	scheduler.Start(ctx)
	entrypointLogger.Info("scheduler stopped")
}
