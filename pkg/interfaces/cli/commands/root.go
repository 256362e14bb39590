package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/picktrack/pkg/interfaces/cli/output"
)

// Exit codes
const (
	ExitOK                   = 0
	ExitError                = 1
	ExitUsage                = 2
	ExitConfirmationRequired = 3
	ExitNotFound             = 4
)

// ExitCode maps an error returned by the root command to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, entities.ErrConfirmationRequired):
		return ExitConfirmationRequired
	case errors.Is(err, entities.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, errUsage):
		return ExitUsage
	default:
		return ExitError
	}
}

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// App is the state shared by every subcommand
type App struct {
	envFile   string
	format    string
	outputDir string
	verbose   bool

	cfg    *config.Config
	logger *zap.Logger

	// newStore is replaced in tests
	newStore func(ctx context.Context) (repositories.Store, func(), error)
	store    repositories.Store
	close    func()
}

// NewRootCommand builds the picktrack command tree
func NewRootCommand() *cobra.Command {
	app := &App{}
	app.newStore = app.openStore
	return app.rootCommand()
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "picktrack",
		Short:         "Explode tool BOMs into pick lists and keep recorded picks consistent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "Environment file to load before reading settings")
	flags.StringVar(&a.format, "format", "text", "Output format: text, json, csv")
	flags.StringVar(&a.outputDir, "output", "", "Write results to this directory instead of stdout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(
		a.importCommand(),
		a.reconcileCommand(),
		a.auditCommand(),
		a.progressCommand(),
		a.pickCommand(),
		a.unpickCommand(),
		a.migrateCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *App) setup() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.verbose && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *App) teardown() {
	if a.close != nil {
		a.close()
		a.close = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// storeFor opens the configured store on first use
func (a *App) storeFor(ctx context.Context) (repositories.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, closeFn, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store, a.close = store, closeFn
	return store, nil
}

func (a *App) openStore(ctx context.Context) (repositories.Store, func(), error) {
	switch a.cfg.StoreDriver {
	case config.DriverPostgres:
		opts := []postgres.Option{postgres.WithPageSize(a.cfg.PageSize), postgres.WithLogger(a.logger)}
		if override := a.cfg.QtyOnOrderOverride(); override != nil {
			opts = append(opts, postgres.WithQtyOnOrder(*override))
		}
		store, err := postgres.Open(ctx, a.cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		a.logger.Warn("using the in-memory store; nothing is persisted after exit")
		caps := repositories.Capabilities{QtyOnOrder: true}
		if override := a.cfg.QtyOnOrderOverride(); override != nil {
			caps.QtyOnOrder = *override
		}
		return memory.NewStore(memory.WithPageSize(a.cfg.PageSize), memory.WithCapabilities(caps)), func() {}, nil
	}
}

func (a *App) printer(cmd *cobra.Command) (*output.Printer, error) {
	return output.New(cmd.OutOrStdout(), output.Config{
		Format:    a.format,
		OutputDir: a.outputDir,
		Verbose:   a.verbose,
	})
}

// resolveOrder accepts an order ID or SO number
func (a *App) resolveOrder(ctx context.Context, ref string) (*entities.Order, error) {
	store, err := a.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.ResolveOrder(ctx, store.Orders(), ref)
}

// Main runs the CLI and returns the process exit code
func Main(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
