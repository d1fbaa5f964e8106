package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safing/dbdriver/database/storage"
	"github.com/safing/dbdriver/formats/dsd"
	"github.com/safing/dbdriver/info"
	"github.com/safing/dbdriver/log"
)

func newBucketsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List the record types of the store with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.open()
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			return d.ReadRaw(func(snap storage.Snapshot) error {
				buckets, err := snap.Buckets()
				if err != nil {
					return err
				}
				for _, bucket := range buckets {
					var count int
					err := snap.ForEach(bucket, func(string, []byte) error {
						count++
						return nil
					})
					if err != nil {
						return fmt.Errorf("failed to count %s: %w", bucket, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", bucket, count)
				}
				return nil
			})
		},
	}
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <type>",
		Short: "Print all records of a type as JSON, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.open()
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			return d.ReadRaw(func(snap storage.Snapshot) error {
				return snap.ForEach(args[0], func(key string, data []byte) error {
					js, err := dsd.ToJSON(data)
					if err != nil {
						log.Warningf("dbinspect: skipping %s/%s: %s", args[0], key, err)
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, js)
					return nil
				})
			})
		},
	}
}

func newPurgeCommand(opts *rootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all records of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete all records without --yes")
			}

			d, err := opts.open()
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			if err := d.RemoveAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted all records")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deleting all records")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), info.FullVersion())
		},
	}
}
