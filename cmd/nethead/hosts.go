package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nethead/internal/codec"
	"nethead/internal/config"
	"nethead/internal/domain"
	"nethead/internal/loader"
	"nethead/internal/relay"
	"nethead/internal/service"
)

type hostsOptions struct {
	dbPath string
	output *enumValue
}

func newHostsCmd(root *rootOptions) *cobra.Command {
	opts := &hostsOptions{output: newEnumValue("table", "table", "yaml", "json")}

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Inspect and seed the mote directory",
		Long: `Works on the persistent (sqlite) directory the bridge uses. The in-memory
backend only lives inside a running serve process.`,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from config)")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List hosts and their services",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd.Context(), root, opts, func(ctx context.Context, svc *service.DirectoryService) error {
				listing, err := svc.Listing(ctx)
				if err != nil {
					return err
				}
				if opts.output.String() == "table" {
					return writeTable(cmd.OutOrStdout(), listing)
				}
				exp, err := codec.ExporterFor(opts.output.String())
				if err != nil {
					return err
				}
				return exp.Export(listing, cmd.OutOrStdout())
			})
		},
	}
	list.Flags().VarP(opts.output, "output", "o", "output format: table, yaml, json")

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Register the motes listed in a YAML inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := loader.LoadYAML(args[0])
			if err != nil {
				return err
			}
			return withDirectory(cmd.Context(), root, opts, func(ctx context.Context, svc *service.DirectoryService) error {
				result, err := svc.ImportHosts(ctx, hosts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d hosts (%d already registered)\n", result.HostsCreated, result.HostsExisting)
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the registered motes as a YAML inventory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd.Context(), root, opts, func(ctx context.Context, svc *service.DirectoryService) error {
				listing, err := svc.Listing(ctx)
				if err != nil {
					return err
				}
				hosts := make([]domain.Host, 0, len(listing.Hosts))
				for _, entry := range listing.Hosts {
					hosts = append(hosts, entry.Host)
				}
				data, err := loader.ExportYAML(hosts)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(args[0], data, 0644)
			})
		},
	}

	cmd.AddCommand(list, importCmd, export)
	return cmd
}

// withDirectory opens the sqlite directory for the duration of fn
func withDirectory(ctx context.Context, root *rootOptions, opts *hostsOptions, fn func(context.Context, *service.DirectoryService) error) error {
	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Directory.Backend = config.BackendSQLite
		cfg.Directory.Path = opts.dbPath
	}
	if cfg.Directory.Backend != config.BackendSQLite {
		return errors.New("hosts commands need the sqlite directory backend (set directory.backend or --db)")
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	dir, err := openDirectory(cfg.Directory)
	if err != nil {
		return err
	}
	defer dir.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	svc := service.NewDirectoryService(dir, relay.LogSink{Logger: logger}, logger)
	return fn(ctx, svc)
}

func writeTable(out io.Writer, listing *codec.Listing) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tSERVICES\tREGISTERED")
	fmt.Fprintln(w, "----\t-------\t--------\t----------")

	for _, entry := range listing.Hosts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			entry.Host.Name,
			entry.Host.Address,
			len(entry.Services),
			entry.Host.CreatedAt.Local().Format(time.DateTime))
	}

	return w.Flush()
}
