package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netcop-updater/internal/database"
	"netcop-updater/internal/services/catalog"
	"netcop-updater/internal/services/notify"
	"netcop-updater/internal/services/tclass"
	"netcop-updater/internal/services/tracker"
	"netcop-updater/internal/services/updater"
)

const defaultConfigFile = "config.yaml"

func main() {
	if err := execute(os.Args, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// execute runs the CLI with the provided args and output writers
func execute(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stderr)
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "netcop-updater",
		Short:         "Keeps the traffic class database in sync with the signature repository",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "path to the configuration file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Check for a new signature version and apply it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config: %v\n", err)
				return err
			}

			logger, err := setupLogging(cfg.Logging, logOut)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to setup logging: %v\n", err)
				return err
			}
			defer logger.Sync()

			if _, err := runUpdate(cmd.Context(), cfg, logger); err != nil {
				logger.Error("Update failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	root.AddCommand(run)

	return root
}

// runUpdate wires the services from cfg and performs one update cycle
func runUpdate(ctx context.Context, cfg *Config, logger *zap.Logger) (*updater.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Updater.RunTimeout)
	defer cancel()

	store, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if cfg.Updater.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Redis.Enabled {
		redisClient := notify.NewRedisClient(cfg.Redis)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, update events disabled", zap.Error(err))
		} else {
			notifier = notify.NewRedis(redisClient, logger, cfg.Redis)
		}
	}

	client := catalog.New(cfg.Catalog, logger)
	versions := tracker.New(cfg.Updater.VersionFile, client, logger)
	svc := updater.New(versions, client, store, tclass.New(logger), notifier, logger)

	return svc.Run(ctx)
}
