package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/ulid/v2"

	"github.com/kalrav/shipgrid/pkg/api"
	"github.com/kalrav/shipgrid/pkg/config"
	"github.com/kalrav/shipgrid/pkg/logging"
	"github.com/kalrav/shipgrid/pkg/status"
	"github.com/kalrav/shipgrid/pkg/terminal"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	handled, code := dispatchSubcommand(os.Args[1:])
	if !handled {
		printHelp()
		code = 1
	}
	os.Exit(code)
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "optimize":
		return true, runCommand(runOptimizeCommand, args[1:])
	case "link":
		return true, runCommand(runLinkCommand, args[1:])
	case "unlink":
		return true, runCommand(runUnlinkCommand, args[1:])
	case "status":
		return true, runCommand(runStatusCommand, args[1:])
	case "validate":
		return true, runCommand(runValidateCommand, args[1:])
	case "shipping-cost":
		return true, runCommand(runShippingCostCommand, args[1:])
	case "categories":
		return true, runCommand(runCategoriesCommand, args[1:])
	case "history":
		return true, runCommand(runHistoryCommand, args[1:])
	case "results":
		return true, runCommand(runResultsCommand, args[1:])
	default:
		if args[0] != "" && args[0][0] == '-' {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'shipgrid --help' for usage.")
		return true, 1
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	baseURL     string
	token       string
	jsonOutput  bool
	quiet       bool
	networkLogs bool
}

// register attaches the shared flags to a subcommand's flag set.
func (g *globalOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "path to config file (default ~/.shipgrid/config.yaml)")
	fs.StringVar(&g.baseURL, "base-url", "", "API base URL override")
	fs.StringVar(&g.token, "token", "", "API token override")
	fs.BoolVar(&g.jsonOutput, "json", false, "print machine-readable JSON output")
	fs.BoolVar(&g.quiet, "quiet", false, "suppress non-essential output")
	fs.BoolVar(&g.networkLogs, "network-logs", false, "log HTTP requests/responses to JSONL")
}

// app bundles the dependencies a subcommand needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	client *api.Client
	status *status.Cache
	out    *terminal.Writer
}

// newApp loads configuration, applies flag overrides, and wires the client
// and logger.
func newApp(g *globalOptions) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.baseURL != "" {
		cfg.API.BaseURL = g.baseURL
	}
	if g.token != "" {
		cfg.API.Token = g.token
	}
	if g.networkLogs {
		cfg.API.NetworkLogs = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := ulid.Make().String()
	logger, err := logging.NewLogger(cfg.Logging.Dir, runID)
	if err != nil {
		// Logging is best-effort; the CLI still works without a log dir.
		logger = logging.NewNopLogger()
	}
	if cfg.Logging.Debug {
		logger.SetMinLevel(logging.LevelDebug)
	}

	token := cfg.ResolveToken()
	retry := api.DefaultRetryConfig()
	retry.MaxRetries = cfg.API.MaxRetries
	client := api.NewClientWithOptions(token, cfg.API.BaseURL, api.ClientOptions{
		NetworkLogsEnabled: cfg.API.NetworkLogs,
		NetworkLogDir:      cfg.Logging.Dir,
		RetryConfig:        &retry,
		Timeout:            cfg.API.Timeout,
	})

	out := terminal.New()
	out.SetQuiet(g.quiet)

	if token != "" && api.TokenExpiresWithin(token, 0) {
		out.Warn("your API token looks expired; requests may fail with 401")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		status: status.NewCache(client, logger),
		out:    out,
	}, nil
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printVersion() {
	fmt.Printf("shipgrid %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`shipgrid - Meesho listing image optimizer

Usage:
  shipgrid <command> [flags]

Commands:
  optimize <image>   Upload an image and stream optimized variants
  link               Link your Meesho seller account (browser login)
  unlink             Remove the stored Meesho link
  status             Show link and session status
  validate           Check whether the stored session is still valid
  shipping-cost      Estimate Meesho fees for a price and category
  categories         List product categories
  history            List recently processed images
  results <id>       Show results for one processed image
  version            Show version information
  help               Show this help

Global flags (accepted by every command):
  --config PATH      Config file (default ~/.shipgrid/config.yaml)
  --base-url URL     API base URL override
  --token TOKEN      API token override (or set SHIPGRID_API_TOKEN)
  --json             Machine-readable JSON output
  --quiet            Suppress non-essential output
  --network-logs     Log HTTP traffic to JSONL

Examples:
  shipgrid optimize saree.jpg --weight 450 --dims 30x25x3
  shipgrid link
  shipgrid link --manual
  shipgrid shipping-cost --price 499 --sscat 1023
`)
}
