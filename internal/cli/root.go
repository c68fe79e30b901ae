// Package cli implements licensectl, the operator command line for keydesk.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keydesk/keydesk/internal/cache"
	"github.com/keydesk/keydesk/internal/config"
	"github.com/keydesk/keydesk/internal/console"
	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/license"
	"github.com/keydesk/keydesk/internal/licensekey"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
)

var (
	version = "dev"
	commit  = "none"
)

// Store is the persistence licensectl needs.
type Store interface {
	InsertLicenses(ctx context.Context, rows []model.License) ([]model.License, error)
	GetLicenseByKey(ctx context.Context, key string) (*model.License, error)
	FindAdmin(ctx context.Context, userID string) (*model.AdminRecord, error)
	CreateAdmin(ctx context.Context, userID string) (*model.AdminRecord, error)
	DeleteAdmin(ctx context.Context, userID string) error
	ListAdmins(ctx context.Context) ([]model.AdminRecord, error)
}

// app carries configuration and resource constructors shared by commands.
// Tests replace the constructors with in-memory fakes.
type app struct {
	loadConfig  func() (*config.CLIConfig, error)
	openStore   func(ctx context.Context, cfg *config.CLIConfig) (Store, func(), error)
	openRevoker func(ctx context.Context, cfg *config.CLIConfig) (identity.Revoker, func(), error)
	migrate     func(ctx context.Context, databaseURL string) error

	cfg    *config.CLIConfig
	logger *slog.Logger
	output string
}

func defaultApp() *app {
	return &app{
		loadConfig: config.LoadCLI,
		openStore: func(ctx context.Context, cfg *config.CLIConfig) (Store, func(), error) {
			if err := cfg.RequireDatabase(); err != nil {
				return nil, nil, err
			}
			repo, err := repository.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, nil, err
			}
			return repo, repo.Close, nil
		},
		openRevoker: func(ctx context.Context, cfg *config.CLIConfig) (identity.Revoker, func(), error) {
			if cfg.RedisURL == "" {
				return nil, func() {}, nil
			}
			c, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				return nil, nil, err
			}
			return c, func() { _ = c.Close() }, nil
		},
		migrate: repository.Migrate,
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, defaultApp(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if a.output == "json" {
			_ = printJSON(stdout, map[string]string{
				"error": err.Error(),
				"code":  errorCode(err),
			})
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "licensectl",
		Short:         "Operate the keydesk license store",
		Long:          "Issue license keys, manage administrators and maintain the keydesk database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "plain", "Output format (plain, json)")

	rootCmd.AddCommand(newIssueCmd(a))
	rootCmd.AddCommand(newAdminsCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newTokenCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// errorCode maps an error to the code the HTTP API would use for it.
func errorCode(err error) string {
	switch {
	case errors.Is(err, console.ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, license.ErrInvalidCount):
		return "INVALID_COUNT"
	case errors.Is(err, license.ErrUniquenessViolation):
		return "KEY_COLLISION"
	case errors.Is(err, license.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, licensekey.ErrInvalidKeyFormat):
		return "INVALID_KEY"
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrTokenExpired), errors.Is(err, errMissingToken):
		return "UNAUTHORIZED"
	case errors.Is(err, repository.ErrAdminExists):
		return "ADMIN_EXISTS"
	case errors.Is(err, repository.ErrAdminNotFound), errors.Is(err, repository.ErrLicenseNotFound):
		return "NOT_FOUND"
	default:
		return "ERROR"
	}
}
