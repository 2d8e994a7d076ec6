// Command agentcli is a terminal front end for the agent runtime: flag
// parsing, client/tool/bus construction, and a REPL for --interactive. It
// renders plain text to stdout rather than driving a full TUI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/nrcarlson/mcpcore/bus"
	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/journal"
	"github.com/nrcarlson/mcpcore/llmclient"
	"github.com/nrcarlson/mcpcore/orchestrator"
	"github.com/nrcarlson/mcpcore/tool"
	"github.com/nrcarlson/mcpcore/tools/fstools"
	"github.com/nrcarlson/mcpcore/tools/search"
	"github.com/nrcarlson/mcpcore/tools/shell"
)

const defaultModel = "claude-sonnet-4-5"

// Config holds the application configuration, mapping 1:1 onto the CLI
// surface.
type Config struct {
	Prompt       string
	InputFile    string
	Interactive  bool
	Model        string
	Region       string
	NoStreaming  bool
	Yes          bool
	SystemPrompt string
	JournalFile  string
}

func main() {
	if err := run(parseFlags(os.Args[1:]), os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func parseFlags(args []string) *Config {
	var cfg Config
	fs := flag.NewFlagSet("agentcli", flag.ContinueOnError)

	fs.StringVar(&cfg.Prompt, "prompt", "", "single prompt to send (positional arg also accepted)")
	fs.StringVar(&cfg.InputFile, "input", "", "file of prompts, one per line, processed in batch")
	fs.BoolVar(&cfg.Interactive, "interactive", false, "start an interactive REPL")
	fs.StringVar(&cfg.Model, "model", defaultModel, "model name (provider is auto-detected from the name)")
	fs.StringVar(&cfg.Region, "region", "", "region hint, passed through for providers that use it")
	fs.BoolVar(&cfg.NoStreaming, "no-streaming", false, "disable streaming responses")
	fs.BoolVar(&cfg.Yes, "yes", false, "assume yes to any confirmation a tool would otherwise require")
	fs.StringVar(&cfg.SystemPrompt, "system", "You are a helpful assistant with access to local tools.", "system prompt")
	fs.StringVar(&cfg.JournalFile, "journal", "", "append-only plain text transcript file (empty disables it)")
	_ = fs.Parse(args)

	if cfg.Prompt == "" && fs.NArg() > 0 {
		cfg.Prompt = strings.Join(fs.Args(), " ")
	}
	return &cfg
}

// newClientFunc is a variable so tests can substitute a scripted client.
var newClientFunc = func(cfg *Config) (llmclient.Client, error) {
	return llmclient.NewClient(llmclient.Config{Model: cfg.Model, Streaming: !cfg.NoStreaming})
}

func run(cfg *Config, stdin io.Reader, stdout, stderr io.Writer) error {
	if cfg.Region != "" {
		logging.For("agentcli").Warn("region flag set but no configured provider uses it", "region", cfg.Region)
	}

	client, err := newClientFunc(cfg)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	registry := tool.NewRegistry()
	if err := registerTools(registry, cfg); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	b := bus.New()

	orch := orchestrator.NewOrchestrator(client, registry, b, orchestrator.Config{
		Streaming:    !cfg.NoStreaming,
		SystemPrompt: cfg.SystemPrompt,
	})
	orch.Wire(b)

	printer := newPrinter(stdout, cfg)
	b.Model.RegisterHandler(printer.handle)

	if cfg.JournalFile != "" {
		f, err := os.OpenFile(cfg.JournalFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open journal file: %w", err)
		}
		defer f.Close()
		journal.New(f).Wire(b)
	}

	b.StartDistribution()
	defer b.Shutdown()

	switch {
	case cfg.Interactive:
		return runInteractive(orch, printer, stdin, stdout)
	case cfg.InputFile != "":
		return runBatchFile(orch, printer, cfg.InputFile, stdout)
	case cfg.Prompt != "":
		return runOnce(orch, printer, cfg.Prompt, stdout)
	default:
		return runBatchStdin(orch, printer, stdin, stdout)
	}
}

func registerTools(registry *tool.Registry, cfg *Config) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	fsys := fstools.NewOSFS(cwd)
	denied := []string{".git"}

	if err := registry.Register(fstools.NewReadFileTool(fsys, denied)); err != nil {
		return err
	}
	if err := registry.Register(fstools.NewWriteFileTool(fsys, denied)); err != nil {
		return err
	}
	if err := registry.Register(fstools.NewListDirTool(fsys, denied)); err != nil {
		return err
	}
	if err := registry.Register(shell.New(shell.DefaultConfig())); err != nil {
		return err
	}
	if err := registry.Register(search.NewGrepTool(cwd, denied)); err != nil {
		return err
	}
	if err := registry.Register(search.NewFindTool(cwd, denied)); err != nil {
		return err
	}
	return nil
}

func runOnce(orch *orchestrator.Orchestrator, p *printer, prompt string, stdout io.Writer) error {
	if err := orch.ProcessUserMessage(context.Background(), prompt); err != nil {
		return fmt.Errorf("process message: %w", err)
	}
	p.waitIdle()
	return nil
}

func runBatchFile(orch *orchestrator.Orchestrator, p *printer, path string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	return runBatchStdin(orch, p, f, stdout)
}

func runBatchStdin(orch *orchestrator.Orchestrator, p *printer, in io.Reader, stdout io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := orch.ProcessUserMessage(context.Background(), line); err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
			continue
		}
		p.waitIdle()
	}
	return scanner.Err()
}

func runInteractive(orch *orchestrator.Orchestrator, p *printer, stdin io.Reader, stdout io.Writer) error {
	fmt.Fprintln(stdout, "Chat started. Type 'exit' or 'quit' to end the conversation.")
	fmt.Fprintln(stdout, "---")

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout, "\nGoodbye!")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			fmt.Fprintln(stdout, "Goodbye!")
			return nil
		}
		if line == "" {
			continue
		}

		fmt.Fprint(stdout, "\nAssistant: ")
		if err := orch.ProcessUserMessage(context.Background(), line); err != nil {
			fmt.Fprintf(stdout, "\nerror: %v\n", err)
			continue
		}
		p.waitIdle()
		fmt.Fprintln(stdout)
	}
}
