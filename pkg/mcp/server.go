// Package mcp exposes suite listing and test runs as MCP tools for AI
// agents.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the nttrun tools registered.
func NewServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"nttrun",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("nttrun/list",
			mcp.WithDescription("List the tests of a suite, optionally filtered"),
			mcp.WithString("source", mcp.Description("Suite source; defaults to suite.source from nttrun.yaml")),
			mcp.WithString("where", mcp.Description(`Selection expression, e.g. module == "m1" && hasTag("@smoke")`)),
			mcp.WithArray("tags", mcp.Description("Tag regular expressions every selected test must match"),
				mcp.Items(map[string]any{"type": "string"})),
		),
		h.HandleList,
	)

	s.AddTool(
		mcp.NewTool("nttrun/run",
			mcp.WithDescription("Run tests against an engine and report their verdicts"),
			mcp.WithString("source", mcp.Description("Suite source; defaults to suite.source from nttrun.yaml")),
			mcp.WithArray("tests", mcp.Description("Test names to run; all selected tests when empty"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("where", mcp.Description("Selection expression")),
			mcp.WithArray("tags", mcp.Description("Tag regular expressions every selected test must match"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("params", mcp.Description("Parameters as name=kind:value, e.g. count=int:3"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("engine", mcp.Description("Engine address host:port; defaults to engine.address")),
			mcp.WithNumber("concurrency", mcp.Description("Parallel runs")),
			mcp.WithString("timeout", mcp.Description("Per-run timeout, e.g. 30s")),
			mcp.WithBoolean("fail_fast", mcp.Description("Stop after the first failing test")),
		),
		h.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("nttrun/schema",
			mcp.WithDescription("Export the JSON Schema of suite listings"),
		),
		h.HandleSchema,
	)

	return s
}
