package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joshsymonds/linkharvest/internal/config"
	"github.com/joshsymonds/linkharvest/internal/runtime"
)

const defaultEnvFile = ".env"

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	verbose    bool

	credentials string
	token       string
	output      string
	label       string
	pattern     string
	pageSize    int
	rps         int
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "linkharvest",
		Short: "Collect tracking links from unread Gmail notifications",
		Long: `linkharvest reads every unread message under a Gmail label, extracts the
tracking link from each body, marks the messages read, and writes one link per
thread as a JSON array.

Running without a subcommand is the same as "linkharvest run".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvestCmd(cmd, opts)
		},
	}
	root.Version = version
	root.SetVersionTemplate(`{{printf "linkharvest version %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "TOML config file (default "+config.DefaultFile+" if present)")
	flags.StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file with LINKHARVEST_* overrides")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.credentials, "credentials", "", "OAuth client credentials file")
	flags.StringVar(&opts.token, "token", "", "stored OAuth token file")
	flags.StringVar(&opts.output, "output", "", "file receiving the JSON url array")
	flags.StringVar(&opts.label, "label", "", "Gmail label to harvest")
	flags.StringVar(&opts.pattern, "pattern", "", "url regular expression; group 1 is the url when present")
	flags.IntVar(&opts.pageSize, "page-size", 0, "Gmail list page size (0 = API default, <=500)")
	flags.IntVar(&opts.rps, "rps", 0, "max Gmail requests per second (0 = unlimited)")

	root.AddCommand(newRunCmd(opts), newAuthCmd(opts), newVersionCmd())
	return root
}

// loadConfig resolves defaults, the config file, the environment (optionally
// seeded from the dotenv file), then explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("credentials") {
		cfg.CredentialsFile = opts.credentials
	}
	if flags.Changed("token") {
		cfg.TokenFile = opts.token
	}
	if flags.Changed("output") {
		cfg.OutputFile = opts.output
	}
	if flags.Changed("label") {
		cfg.Label = opts.label
	}
	if flags.Changed("pattern") {
		cfg.Pattern = opts.pattern
	}
	if flags.Changed("page-size") {
		cfg.PageSize = opts.pageSize
	}
	if flags.Changed("rps") {
		cfg.RPS = opts.rps
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile exports the dotenv file without overriding variables that are
// already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func newLogger(opts *options) *slog.Logger {
	return runtime.NewLogger(opts.verbose)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkharvest version %s\n", version)
		},
	}
}
