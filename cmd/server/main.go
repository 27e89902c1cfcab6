// Package main is the entry point for the groovectl API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/groovectl/pkg/api"
	"github.com/james-see/groovectl/pkg/config"
	"github.com/james-see/groovectl/pkg/tempo"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", "", "Config file path")
	port := fs.Int("port", 0, "Server port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctrl := tempo.New(cfg.ControllerOptions(logger)...)
	defer ctrl.Close()

	fmt.Printf("Starting groovectl API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.StartServer(ctrl, cfg.Server.Port); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
