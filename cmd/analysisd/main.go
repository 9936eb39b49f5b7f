// Package main provides the entry point for analysisd.
//
// analysisd is a background process that discovers topics in textual
// columns of registered projects:
// - Task Engine running topic-discovery and experiment jobs
// - Filesystem watcher invalidating caches on external edits
// - Project cache serving workspace/topic/vector artifacts
//
// Usage:
//
//	analysisd                  Start the service (default)
//	analysisd serve            Start the service
//	analysisd version          Show version
//	analysisd status           Show service status
//	analysisd stop             Stop the running service
//	analysisd init-config      Create example configuration file
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/analysisd/internal/app"
	"github.com/ternarybob/analysisd/internal/config"
)

var version = "dev"

var configPath string

func main() {
	args := os.Args[1:]
	command := ""
	cmdArgs := []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
		case command == "":
			command = arg
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "start":
		err = cmdServe()
	case "version", "-v", "--version":
		cmdVersion()
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop()
	case "init-config":
		err = cmdInitConfig()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`analysisd - topic discovery service

Usage:
  analysisd [flags] [command]

Commands:
  serve         Start the service (default)
  version       Show version information
  status        Show service status
  stop          Stop the running service
  init-config   Create example configuration file
  help          Show this help

Flags:
  --config PATH   Path to configuration file (default: ~/.analysisd/config.toml)

Environment:
  GEMINI_API_KEY      API key for the embedding transformer (optional)
  ANALYSISD_CONFIG    Path to configuration file (alternative to --config)
  ANALYSISD_DATA_DIR  Override data directory
  ANALYSISD_WORKERS   Override the task engine's worker pool size`)
}

func cmdVersion() {
	fmt.Printf("analysisd version %s\n", version)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ANALYSISD_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if envDataDir := os.Getenv("ANALYSISD_DATA_DIR"); envDataDir != "" {
		cfg.Service.DataDir = envDataDir
	}
	return cfg, nil
}

func cmdServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if running, pid := app.IsRunning(cfg); running {
		return fmt.Errorf("analysisd already running (PID %d)", pid)
	}

	a := app.New(cfg)
	if err := a.Start(); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	fmt.Printf("analysisd v%s started, data dir %s\n", version, cfg.Service.DataDir)

	a.Wait()
	return nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := app.IsRunning(cfg)
	if running {
		fmt.Printf("analysisd: running (PID %d)\n", pid)
		fmt.Printf("Data: %s\n", cfg.Service.DataDir)
	} else {
		fmt.Println("analysisd: stopped")
	}
	return nil
}

func cmdStop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := app.IsRunning(cfg)
	if !running {
		fmt.Println("analysisd is not running")
		return nil
	}

	fmt.Printf("Stopping analysisd (PID %d)...\n", pid)
	if err := app.StopRunning(cfg); err != nil {
		return err
	}

	fmt.Println("analysisd stopped")
	return nil
}

func cmdInitConfig() error {
	path := getConfigPath()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.WriteExampleConfig(path); err != nil {
		return err
	}

	fmt.Printf("Created example configuration: %s\n", path)
	return nil
}
