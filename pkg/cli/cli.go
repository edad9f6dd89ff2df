package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/version"
)

// Options are the flags shared by every command.
type Options struct {
	Debug      bool
	ConfigPath string
	EnvFile    string
}

// bind registers the persistent flags, with environment fallbacks.
func (o *Options) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&o.Debug, "debug", getEnvBool("DEBUG", false),
		"Enable debug level logging and gin debug mode")
	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", getEnvString(config.PathEnv, ""),
		"Path to the YAML configuration file (default "+config.DefaultPath+", optional)")
	cmd.PersistentFlags().StringVar(&o.EnvFile, "env-file", getEnvString("CONTACT_API_ENV_FILE", ".env"),
		"Path to a .env file exported before the configuration is read; missing files are ignored")
}

// loadConfig reads the .env file and then the configuration.
func (o *Options) loadConfig() (config.Config, error) {
	if o.EnvFile != "" {
		if err := config.LoadDotEnv(o.EnvFile); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(o.ConfigPath)
}

func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "contact-api",
		Short:         "Contact form and newsletter notification API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.bind(root)

	root.AddCommand(
		newServeCommand(opts),
		newVerifyMailCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newServeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()
			writer := cmd.OutOrStdout()

			switch outputFormat {
			case "", "json":
				encoder := json.NewEncoder(writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "yaml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("failed to marshal to YAML: %w", err)
				}
				_, _ = fmt.Fprint(writer, string(data))
				return nil
			case "text":
				_, _ = fmt.Fprintln(writer, info.String())
				return nil
			default:
				return fmt.Errorf("unknown output format %q (json, yaml, text)", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json, yaml, text")
	return cmd
}

// getEnvString returns the value of an environment variable, or the provided default if it is unset or blank.
func getEnvString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
