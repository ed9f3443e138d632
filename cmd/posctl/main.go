// Command posctl inspects and repairs POS transactions from an operator shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"
	"go-pos-ws/pkg/config"
	"go-pos-ws/pkg/database"
	"go-pos-ws/pkg/logger"
	"go-pos-ws/pkg/redis"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "posctl",
	Short:         "Operator tools for the POS cart engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(showCmd, completeCmd, settingsCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// backend is the service graph a command works against.
type backend struct {
	pos      *service.Service
	settings service.SettingsService
	closers  []io.Closer
}

func (b *backend) Close(ctx context.Context) error {
	err := b.pos.Shutdown(ctx)
	for _, c := range b.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

type dbCloser struct{ close func() error }

func (c dbCloser) Close() error { return c.close() }

func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := logger.ParseLevel("warn")
	if verbose {
		level = logger.ParseLevel("debug")
	}
	log := logger.New(logger.Options{ServiceName: "posctl", Level: level, Format: "console", Output: os.Stderr})
	loc, _ := cfg.App.Location()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	b := &backend{closers: []io.Closer{dbCloser{close: sqlDB.Close}}}

	// Changes reach connected tills only through Redis.
	var publisher service.Publisher
	var cache service.SettingsCache
	var cacheKey string
	if cfg.Redis.Enabled() {
		client, err := redis.New(ctx, cfg.Redis, log)
		if err != nil {
			return nil, multierr.Append(err, sqlDB.Close())
		}
		publisher, cache, cacheKey = client, client, client.SettingsKey()
		b.closers = append(b.closers, client)
	}

	settingRepo := repository.NewSettingRepo(db)
	b.settings = service.NewSettingsService(settingRepo, cache, cacheKey, cfg.Redis.SettingsCacheTTL, log)
	b.pos = service.NewService(service.Options{
		Catalog:   service.NewCatalogService(repository.NewProductRepo(db), db, publisher, log),
		Settings:  b.settings,
		Store:     repository.NewTransactionRepo(db),
		Publisher: publisher,
		Logger:    log,
		Location:  loc,
	})
	return b, nil
}

// withBackend runs fn against a freshly opened backend and closes it after.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	return multierr.Append(fn(ctx, b), b.Close(ctx))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
