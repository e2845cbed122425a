package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"nethead/internal/config"
)

// rootOptions holds flags shared by every command
type rootOptions struct {
	configPath string
	logLevel   string
}

// loadConfig reads --config when given, otherwise searches the default
// locations. Flag overrides are applied by the caller.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if o.configPath != "" {
		cfg, path, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, path, err
		}
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nethead",
		Short: "nethead bridges sensor motes to a Nagios-style monitoring backend",
		Long: `nethead accepts CoAP registrations (/nh/lo) and neighbor signal-strength
telemetry (/nh/rss) from wireless sensor motes, keeps a directory of motes and
their per-neighbor services, and relays every reading as a passive check result.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: search $NETHEAD_CONFIG, ./nethead.yaml, XDG, /etc)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newHostsCmd(opts),
		newNameCmd(),
		newConfigCmd(opts),
	)
	return cmd
}

// changedFlags lists the flags set on the command line as name=value
func changedFlags(cmd *cobra.Command) []string {
	var set []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set = append(set, f.Name+"="+f.Value.String())
	})
	return set
}

// enumValue is a string flag restricted to a fixed set of values
type enumValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*enumValue)(nil)

func newEnumValue(def string, allowed ...string) *enumValue {
	return &enumValue{value: def, allowed: allowed}
}

func (e *enumValue) String() string { return e.value }

func (e *enumValue) Set(v string) error {
	for _, a := range e.allowed {
		if v == a {
			e.value = v
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(e.allowed, ", "))
}

func (e *enumValue) Type() string { return "string" }
