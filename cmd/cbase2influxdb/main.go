package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/state"

	// Import all available connectors to register them
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/destinations"
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/sources"
)

var version = "0.1.0"

// envPrefix is the prefix of environment variables mirroring the flags,
// e.g. CBASE2INFLUXDB_DRY_RUN=true
const envPrefix = "CBASE2INFLUXDB"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "cbase2influxdb <config-file>",
		Short: "Sync CBASE PV forecasts into InfluxDB",
		Long: `cbase2influxdb fetches photovoltaic production forecasts from the CBASE API
and writes them to InfluxDB, once or on a cron schedule.

Examples:
  cbase2influxdb /app/config.yaml
  cbase2influxdb /app/config.yaml --dry-run --log-level debug
  cbase2influxdb --csv-file forecast.csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			if v.GetString("csv-file") != "" {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{
				DryRun:    v.GetBool("dry-run"),
				CSVFile:   v.GetString("csv-file"),
				Schedule:  v.GetString("schedule"),
				Once:      v.GetBool("once"),
				LogLevel:  v.GetString("log-level"),
				LogFormat: v.GetString("log-format"),
				Stdout:    cmd.OutOrStdout(),
			}
			if len(args) == 1 {
				opts.ConfigPath = args[0]
			}
			return runSync(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.Bool("dry-run", false, "Fetch and transform, then log the line protocol instead of writing to InfluxDB")
	flags.String("csv-file", "", "Parse a local forecast CSV and print the points as JSON instead of calling the API")
	flags.String("schedule", "", "Cron expression overriding sync.schedule (e.g. \"@every 1h\", \"5 * * * *\")")
	flags.Bool("once", false, "Run a single sync even when a schedule is configured")
	flags.String("log-level", "", "Log level (debug, info, warn, error); overrides observability.log_level")
	flags.String("log-format", "", "Log format (json, console); overrides observability.log_format")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newValidateCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "validate <config-file>",
		Short:         "Load and validate a configuration file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "status <config-file>",
		Short:         "Show the outcome of the last sync run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if cfg.Sync.StateFile == "" {
				return errors.New(errors.ErrorTypeConfig, "sync.state_file is not configured")
			}
			st, err := state.NewStore(cfg.Sync.StateFile).Load()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cbase2influxdb v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
