// Command mcpserve exposes the same local tool set agentcli uses — shell,
// file read/write/list, grep, find — over an MCP server on stdio, so an
// external MCP client can drive them directly instead of going through the
// orchestrator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nrcarlson/mcpcore/mcp"
	"github.com/nrcarlson/mcpcore/tool"
	"github.com/nrcarlson/mcpcore/tools/fstools"
	"github.com/nrcarlson/mcpcore/tools/search"
	"github.com/nrcarlson/mcpcore/tools/shell"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	denied := []string{".git"}
	fsys := fstools.NewOSFS(cwd)

	registry := mcp.NewRegistry()
	tools := []tool.Tool{
		fstools.NewReadFileTool(fsys, denied),
		fstools.NewWriteFileTool(fsys, denied),
		fstools.NewListDirTool(fsys, denied),
		shell.New(shell.DefaultConfig()),
		search.NewGrepTool(cwd, denied),
		search.NewFindTool(cwd, denied),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	server, err := mcp.NewServer(registry, mcp.Implementation{
		Name:    "mcpcore",
		Version: "dev",
	}, mcp.WithInstructions("Local filesystem, shell, and search tools rooted at the current working directory."))
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	return server.Serve(context.Background(), os.Stdin, os.Stdout)
}
