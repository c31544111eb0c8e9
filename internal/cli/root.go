// Package cli provides the command-line interface for gpas.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gpas-dev/gpas-go/internal/client"
	"github.com/gpas-dev/gpas-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	environmentName string
	tokenPath       string
	jsonMessages    bool
	debug           bool

	// Global config and logger
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	environment config.Environment
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gpas",
	Short: "Upload pathogen sequencing reads for analysis",
	Long: `gpas validates batches of pathogen sequencing reads, removes host
reads locally, and uploads the cleaned files to the analysis service.

A batch is described by an upload CSV; decontamination happens on your
machine before anything leaves it. Processed samples can be tracked and
their outputs downloaded with the status and download commands.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.Level()
		if debug {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		environment, err = config.ParseEnvironment(environmentName)
		if err != nil {
			return usageErrorf("%v", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// loadToken parses the --token file when one was supplied.
func loadToken() (*config.Token, error) {
	if tokenPath == "" {
		return nil, nil
	}
	return config.LoadToken(tokenPath)
}

// newClient builds the remote client for the selected environment.
func newClient(token *config.Token) *client.Client {
	return client.New(client.Options{
		Environment: environment,
		Token:       token,
		Logger:      logger,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&environmentName, "environment", string(config.DefaultEnvironment), "environment to use (dev, staging or prod)")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token", "", "path of auth token (available from the portal)")
	rootCmd.PersistentFlags().BoolVar(&jsonMessages, "json-messages", false, "emit progress messages as JSON on stdout")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "emit verbose debug messages to stderr")

	// Add subcommands
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(downloadCmd)
}
