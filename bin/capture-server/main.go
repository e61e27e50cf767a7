package main

import (
	"context"
	"flag"
	"log"

	"snapshot-stitcher/internal/cmdutil"
	"snapshot-stitcher/internal/env"
	"snapshot-stitcher/internal/logging"
	"snapshot-stitcher/internal/runnable"
)

func main() {
	if err := env.Load(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	var captureFlags cmdutil.CaptureFlags
	var storageFlags cmdutil.StorageFlags
	captureFlags.Register(flag.CommandLine)
	storageFlags.Register(flag.CommandLine, "/tmp")
	flag.BoolVar(&runnable.Debug, "debug", env.OrDefault("DEBUG", false), "Text logs and pprof endpoints")

	flag.Parse()

	ctx := context.Background()

	slogger, err := logging.NewSlog(runnable.Debug, nil)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	capturer, _, err := captureFlags.NewCapturer(ctx, logging.FromSlog(slogger).WithName("capture"))
	if err != nil {
		log.Fatalf("Failed to initialize capturer: %v", err)
	}

	s, err := storageFlags.New(ctx)
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	server := runnable.NewServer(capturer, s)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
