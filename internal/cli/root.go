// Package cli implements the messagecore command line: serve, demo and seed.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"messagecore/internal/config"
)

// RootOptions holds global flags shared by every command.
type RootOptions struct {
	EnvFiles  []string
	LogLevel  string
	LogFormat string
	Storage   string
	Snapshot  string

	cfg config.Config
}

// Config returns the configuration resolved by the root command.
func (o *RootOptions) Config() config.Config { return o.cfg }

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "messagecore",
		Short: "messagecore - a hooked CRUD service for messages",
		Long: `messagecore serves a "messages" resource through a service facade with
before/after hooks, mutation events and pluggable record stores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override MESSAGECORE_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override MESSAGECORE_LOG_FORMAT (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Storage, "storage", "", "override MESSAGECORE_STORAGE_DRIVER (memory|sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&opts.Snapshot, "snapshot", "", "JSON file the memory store is restored from and saved to")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func (o *RootOptions) resolve() error {
	cfg, err := config.Load(o.EnvFiles...)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.Storage != "" {
		cfg.Storage.Driver = o.Storage
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.cfg = cfg
	return nil
}
