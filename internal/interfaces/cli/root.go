// Package cli implements the sirdash command line. Read commands run either
// against an API server (--server) or directly against the configured feed
// and stores.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/internal/config"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/client"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const annotationSkipInit = "sirdash/skip-init"

type cliContextKey struct{}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	Output     string
	NoColor    bool
	Timeout    time.Duration
	Server     string
	Token      string
}

// CLIContext carries the initialized configuration through the command tree.
// The infrastructure and the backend are opened on first use.
type CLIContext struct {
	Options *RootOptions
	Config  *config.Config
	Logger  logging.Logger
	Printer *Printer

	infra   *app.Infrastructure
	backend Backend
}

// rootDeps lets tests substitute the backend.
type rootDeps struct {
	backend Backend
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	return newRootCommand(rootDeps{})
}

func newRootCommand(deps rootDeps) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sirdash",
		Short: "SIR incident dashboard",
		Long: "sirdash shows the open RAL and REC incidents of the SIR feed grouped by\n" +
			"cluster and region, prepares the feed from CSV exports and sends the\n" +
			"WhatsApp summary.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationSkipInit] != "" {
				return nil
			}
			cliCtx, err := newCLIContext(cmd, opts)
			if err != nil {
				return err
			}
			cliCtx.backend = deps.backend
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./sirdash.yaml, ~/.sirdash/config.yaml, /etc/sirdash/config.yaml)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the configuration")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.Output, "output", "o", FormatTable, "output format (table, json, yaml)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", time.Minute, "operation timeout")
	pf.StringVar(&opts.Server, "server", os.Getenv("SIRDASH_SERVER"), "API server base URL; empty reads the feed directly")
	pf.StringVar(&opts.Token, "token", os.Getenv("SIRDASH_TOKEN"), "bearer token sent to the API server")

	cmd.AddCommand(
		newBoardCmd(),
		newClusterCmd(),
		newTypesCmd(),
		newSnapshotCmd(),
		newHistoryCmd(),
		newTrendCmd(),
		newTransitionsCmd(),
		newRefreshCmd(),
		newIngestCmd(),
		newNotifyCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newCLIContext(cmd *cobra.Command, opts *RootOptions) (*CLIContext, error) {
	printer, err := NewPrinter(cmd.OutOrStdout(), opts.Output, opts.NoColor)
	if err != nil {
		return nil, err
	}
	cfg, err := initConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &CLIContext{Options: opts, Config: cfg, Logger: logger, Printer: printer}, nil
}

// initConfig loads the dotenv file and the first configuration file found.
// Without any file the configuration comes from the environment alone.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return nil, err
		}
	}
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./sirdash.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".sirdash", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/sirdash/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.Load("")
}

// initLogger logs to stderr so that stdout stays parseable.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLI context not initialized")
	}
	return cliCtx, nil
}

// Infra opens the configured backends once per invocation.
func (c *CLIContext) Infra(ctx context.Context) (*app.Infrastructure, error) {
	if c.infra != nil {
		return c.infra, nil
	}
	infra, err := app.Open(ctx, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	c.infra = infra
	return infra, nil
}

// Backend returns the API client when --server is set and a local backend
// otherwise.
func (c *CLIContext) Backend(ctx context.Context) (Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	if c.Options.Server != "" {
		b, err := client.NewClient(c.Options.Server,
			client.WithToken(c.Options.Token),
			client.WithHTTPClient(&http.Client{Timeout: c.Options.Timeout}),
			client.WithLogger(sdkLogger{c.Logger}),
			client.WithUserAgent("sirdash-cli/"+Version),
		)
		if err != nil {
			return nil, err
		}
		c.backend = b
		return b, nil
	}
	infra, err := c.Infra(ctx)
	if err != nil {
		return nil, err
	}
	b, err := newLocalBackend(infra)
	if err != nil {
		return nil, err
	}
	c.backend = b
	return b, nil
}

// Close releases whatever Infra opened.
func (c *CLIContext) Close() {
	if c.infra != nil {
		c.infra.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

type runFunc func(ctx context.Context, cliCtx *CLIContext, args []string) error

// runE bounds fn by --timeout and releases the CLIContext afterwards.
func runE(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		defer cliCtx.Close()

		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if cliCtx.Options.Timeout > 0 {
			ctx, cancel = context.WithTimeout(cmd.Context(), cliCtx.Options.Timeout)
		} else {
			ctx, cancel = context.WithCancel(cmd.Context())
		}
		defer cancel()
		return fn(ctx, cliCtx, args)
	}
}

// sdkLogger routes SDK logging into the CLI logger.
type sdkLogger struct {
	l logging.Logger
}

func (s sdkLogger) Debugf(format string, args ...interface{}) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Infof(format string, args ...interface{})  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Errorf(format string, args ...interface{}) { s.l.Error(fmt.Sprintf(format, args...)) }

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipInit: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sirdash %s\ncommit: %s\nbuilt: %s\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// PrintError writes err to the command's stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}
