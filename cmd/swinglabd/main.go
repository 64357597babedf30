package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"swinglab/internal/config"
	"swinglab/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (defaults to ~/.config/swinglab/config.toml)")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, resolvedPath, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists && *configPath != "" {
		log.Fatalf("config file not found: %s", resolvedPath)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "swinglabd: %v\n", err)
		os.Exit(1)
	}
}
