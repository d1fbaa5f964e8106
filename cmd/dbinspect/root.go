package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safing/dbdriver/database"
	"github.com/safing/dbdriver/log"
)

// rootOptions holds the flags shared by all commands.
type rootOptions struct {
	ConfigPath  string
	Path        string
	StorageType string
	LogLevel    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dbinspect",
		Short: "Inspect and maintain a store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.ParseLevel(opts.LogLevel)
			if level == 0 {
				return fmt.Errorf("invalid log level %q", opts.LogLevel)
			}
			log.SetLogLevel(level)
			log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "store config file (yaml or json)")
	cmd.PersistentFlags().StringVarP(&opts.Path, "path", "p", "", "store location, used instead of a config file")
	cmd.PersistentFlags().StringVar(&opts.StorageType, "type", "", "storage engine of the store at --path (bbolt, badger, sqlite)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log", "warning", "log level (trace, debug, info, warning, error, critical)")

	cmd.AddCommand(newBucketsCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newPurgeCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// open opens the store selected by the flags.
func (opts *rootOptions) open() (*database.Driver, error) {
	var cfg database.Config
	switch {
	case opts.ConfigPath != "" && opts.Path != "":
		return nil, errors.New("--config and --path are mutually exclusive")
	case opts.ConfigPath != "":
		loaded, err := database.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case opts.Path != "":
		cfg = database.Config{
			Path:        opts.Path,
			StorageType: opts.StorageType,
		}
	default:
		return nil, errors.New("either --config or --path is required")
	}

	log.Debugf("dbinspect: opening %s", cfg.Path)
	return database.Open(cfg)
}
