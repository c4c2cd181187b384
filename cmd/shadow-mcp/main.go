package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironsheep/shadow-tools-mcp/internal/config"
	"github.com/ironsheep/shadow-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "shadow-mcp - MCP server for document shadow removal")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: shadow-mcp [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --version, -v    Print version information")
	fmt.Fprintln(out, "  --help, -h       Print this help message")
	fmt.Fprintln(out, "  -config FILE     YAML configuration file")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables:")
	fmt.Fprintf(out, "  %s=FILE      Configuration file when -config is not given\n", config.EnvConfig)
	fmt.Fprintf(out, "  %s=debug  Override log.level\n", config.EnvLogLevel)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(out, "Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("shadow-mcp %s (server %s)\n", Version, server.Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "help":
			flag.CommandLine.SetOutput(os.Stdout)
			usage()
			return
		}
	}

	flag.Usage = usage
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadow-mcp: %v\n", err)
		os.Exit(2)
	}

	// stdout is the MCP channel
	logger := cfg.Logger(os.Stderr)
	logger.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("commit", GitCommit).
		Msg("starting shadow MCP server")

	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
