// Cortexd is the cortex journaling daemon.
//
// It serves the journal over HTTP, or as an MCP server on stdio.
//
// Usage:
//
//	# Serve HTTP on the configured port (default 9191)
//	cortexd
//
//	# Use an explicit config file
//	cortexd -config ~/.config/cortex/config.yaml
//
//	# Serve MCP on stdio
//	cortexd mcp
//
//	# Configure via environment
//	CORTEX_ANALYSIS_BASE_URL=https://api.example.com CORTEX_STORAGE_DRIVER=memory cortexd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const (
	modeServe = "serve"
	modeMCP   = "mcp"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/cortex/config.yaml)")
	flag.Parse()
	args := flag.Args()

	mode := modeServe
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		case modeServe, modeMCP:
			mode = args[0]
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  cortexd [-config path]         Serve the HTTP API\n")
			fmt.Fprintf(os.Stderr, "  cortexd [-config path] mcp     Serve MCP on stdio\n")
			fmt.Fprintf(os.Stderr, "  cortexd version                Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, mode); err != nil {
		log.Fatalf("cortexd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("cortexd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}
