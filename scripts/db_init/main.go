package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/garnizeh/jobcard/internal/config"
	"github.com/garnizeh/jobcard/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// opening the store creates any missing tables
	repo, err := sqlite.Open(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	fmt.Printf("Database %s initialized successfully.\n", cfg.DatabasePath)
}
