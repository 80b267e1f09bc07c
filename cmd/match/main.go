package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/timmy/stylematch/internal/app"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/service"
)

func main() {
	// Logs go to stderr so stdout carries only the JSON result
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "stylematch-cli",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	imagePath := flag.String("image", "", "Path to the garment image")
	garmentType := flag.String("type", "", "Garment type, e.g. shirt or dress")
	garmentLayer := flag.String("layer", "", "Optional garment layer, e.g. outer")
	configPath := flag.String("config", "", "Path to config file")
	pretty := flag.Bool("pretty", true, "Indent JSON output")
	flag.Parse()

	if *imagePath == "" || *garmentType == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read image")
	}

	// Cancel the match on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	result, err := application.Match.Match(ctx, service.MatchRequest{
		Filename:     filepath.Base(*imagePath),
		Image:        data,
		GarmentType:  *garmentType,
		GarmentLayer: *garmentLayer,
	})
	if err != nil {
		appLogger.WithError(err).Error("Match failed")
		application.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		appLogger.WithError(err).Fatal("Failed to write result")
	}
}
