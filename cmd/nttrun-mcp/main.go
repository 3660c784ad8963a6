// Package main provides the nttrun-mcp binary: an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/nttrun/pkg/config"
	"github.com/ormasoftchile/nttrun/pkg/logging"
	nmcp "github.com/ormasoftchile/nttrun/pkg/mcp"
)

var version = "dev"

func main() {
	cfg, err := config.Discover(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the MCP stream; logs go to stderr.
	log, err := logging.New(os.Stderr, cfg.LogLevel(), cfg.LogFormat())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s := nmcp.NewServer(version, &nmcp.Handlers{Config: cfg, Log: log})
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
