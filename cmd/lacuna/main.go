// ABOUTME: CLI entrypoint for the lacuna pipeline runner with run, tui, and serve modes.
// ABOUTME: Wires together the LLM client, engine, HTTP server, and terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/seam-research/lacuna/config"
	"github.com/seam-research/lacuna/llm"
	"github.com/seam-research/lacuna/pipeline"
	"github.com/seam-research/lacuna/server"
	"github.com/seam-research/lacuna/tui"
)

var version = "dev"

type cliConfig struct {
	serveMode   bool
	tuiMode     bool
	configPath  string
	addr        string
	pipelineKnd string
	corpusPath  string
	showVersion bool
	goal        string
}

func main() {
	loadDotEnv(".env")

	cfg := parseFlags()
	if cfg.showVersion {
		fmt.Printf("lacuna %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("lacuna", flag.ContinueOnError)
	fs.BoolVar(&cfg.serveMode, "serve", false, "Start HTTP server mode")
	fs.BoolVar(&cfg.tuiMode, "tui", false, "Run with interactive terminal UI")
	fs.StringVar(&cfg.configPath, "config", "lacuna.yaml", "Path to YAML config file")
	fs.StringVar(&cfg.addr, "addr", "", "Listen address for server mode (overrides config)")
	fs.StringVar(&cfg.pipelineKnd, "pipeline", pipeline.KindGapFinder, "Pipeline kind: gap_finder or discovery")
	fs.StringVar(&cfg.corpusPath, "corpus", "", "Path to a JSON document corpus for fetch steps")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lacuna [flags] \"research goal\"\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.goal = fs.Arg(0)
	}
	return cfg
}

func run(cli cliConfig) int {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if cli.addr != "" {
		cfg.Addr = cli.addr
	}

	engine, err := buildEngine(cfg, cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if cli.serveMode {
		return runServe(cfg, engine)
	}

	if cli.goal == "" {
		fmt.Fprintln(os.Stderr, "error: a research goal is required outside server mode")
		return 2
	}

	if cli.tuiMode {
		return runTUI(cfg, engine, cli)
	}
	return runOnce(engine, cli)
}

// buildEngine assembles the engine from config, the environment, and the
// optional corpus file. A missing API key is fatal for run modes but only a
// warning for serve mode, where runs fail individually with a typed error.
func buildEngine(cfg config.Config, cli cliConfig) (*pipeline.Engine, error) {
	var client *llm.Client
	c, err := llm.FromEnv()
	if err != nil {
		if !cli.serveMode {
			return nil, fmt.Errorf("no LLM backend: %w (set OPENAI_API_KEY)", err)
		}
		log.Printf("component=main action=no_llm_backend error=%v", err)
	} else {
		client = c
	}

	var searcher pipeline.Searcher
	if cli.corpusPath != "" {
		fs, err := loadCorpus(cli.corpusPath)
		if err != nil {
			return nil, err
		}
		searcher = fs
	}

	return pipeline.NewEngine(pipeline.EngineConfig{
		Client:           client,
		Searcher:         searcher,
		Thresholds:       cfg.Thresholds,
		SupportThreshold: cfg.SupportThreshold,
		Model:            cfg.Model,
		EventBuffer:      cfg.EventBuffer,
	}), nil
}

func runServe(cfg config.Config, engine *pipeline.Engine) int {
	srv, err := server.NewServer(server.Config{Addr: cfg.Addr, Engine: engine})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runOnce executes a single run in the foreground, logging events as they
// arrive and printing the final report to stdout.
func runOnce(engine *pipeline.Engine, cli cliConfig) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := engine.Start(ctx, cli.goal, cli.pipelineKnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	for evt := range run.Events() {
		switch evt.Type {
		case pipeline.EventContentFragment:
			if text, ok := evt.Data["text"].(string); ok {
				fmt.Print(text)
			}
		case pipeline.EventStepStarted:
			fmt.Fprintf(os.Stderr, "\n── %v (%s)\n", evt.Data["name"], evt.StepID)
		case pipeline.EventLoopTriggered:
			fmt.Fprintf(os.Stderr, "\n↺ loop %d → %v: %v\n", evt.Iteration, evt.Data["target"], evt.Data["feedback"])
		case pipeline.EventRunFailed:
			fmt.Fprintf(os.Stderr, "\nrun failed (%v): %v\n", evt.Data["kind"], evt.Data["error"])
		}
	}

	outcome := run.Outcome()
	fmt.Fprintf(os.Stderr, "\noutcome: %s (loops used: %d)\n", outcome, run.Iteration())

	if report, ok := run.Context().Get("report"); ok {
		if md, ok := report.(string); ok && md != "" {
			fmt.Println(md)
		}
	}

	switch outcome {
	case pipeline.OutcomeCompleted, pipeline.OutcomeApproved:
		return 0
	default:
		return 1
	}
}

func runTUI(cfg config.Config, engine *pipeline.Engine, cli cliConfig) int {
	pipe, ok := pipeline.ByKind(cli.pipelineKnd)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown pipeline kind %q\n", cli.pipelineKnd)
		return 2
	}

	run, err := engine.Start(context.Background(), cli.goal, cli.pipelineKnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	model := tui.NewAppModel(run, pipe, cfg.Thresholds)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	switch run.Outcome() {
	case pipeline.OutcomeCompleted, pipeline.OutcomeApproved:
		return 0
	default:
		return 1
	}
}
