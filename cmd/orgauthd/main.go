package main

import (
	"database/sql"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orgauth/config"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orgauthd",
	Short: "Account, organization and project authorization service",
	Long: `orgauthd serves the account, organization and project JSON API.
Settings come from an optional YAML file and ORGAUTH_ environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (env: ORGAUTH_*)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err and, for validation errors, one line per field.
func reportError(err error) {
	fmt.Fprintln(os.Stderr, err)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", name, fields[name])
	}
}

func loadConfig() (*config.Config, *config.SlogLogger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, config.NewLogger(os.Stderr, cfg.Log), nil
}

func openDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
