package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/volsync/internal/app"
	"github.com/firefly-engineering/volsync/internal/config"
	"github.com/firefly-engineering/volsync/internal/errors"
	"github.com/firefly-engineering/volsync/internal/logging"
	"github.com/firefly-engineering/volsync/internal/system"
)

var (
	verbose        bool
	jsonOutput     bool
	settingsPath   string
	discoveredPath string
	skipSync       bool
)

var rootCmd = &cobra.Command{
	Use:   "volsync [config-file]",
	Short: "Prepare synchronized volumes at container start",
	Long: `volsync prepares every synchronized volume of a container before the
process supervisor starts.

For each volume declared in the config file or discovered through its
.magic mount it:
  - resolves the user, uid, ignore rules and unison options
  - creates or adjusts the OS user
  - writes a supervisor program file
  - runs an initial unison sync and hands the files to the user

Missing values fall back to SYNC_USER, SYNC_UID, SYNC_IGNORE and
SYNC_UNISON_DEFAULTS.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
	RunE: runSync,
}

// Execute runs the root command and reports a failure to the operator.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default $"+config.SettingsEnvVar+" or "+config.DefaultSettingsPath+")")
	rootCmd.Flags().StringVar(&discoveredPath, "discovered", "", "Discovered volumes file (default "+config.DefaultDiscoveredPath+")")
	rootCmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Write configuration without running the initial sync")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func runSync(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if discoveredPath != "" {
		settings.DiscoveredPath = discoveredPath
	}

	configPath := ""
	if len(args) == 1 {
		configPath = args[0]
	}

	a := app.New(
		app.WithSettings(settings),
		app.WithSkipSync(skipSync),
	)
	result, err := a.Run(cmd.Context(), configPath)
	if err != nil {
		return err
	}

	displayResult(result)
	return nil
}

// loadSettings reads the settings file named by --settings, then
// $VOLSYNC_SETTINGS, then the default path.
func loadSettings() (*config.Settings, error) {
	path := settingsPath
	if path == "" {
		path = os.Getenv(config.SettingsEnvVar)
	}
	if path == "" {
		path = config.DefaultSettingsPath
	}

	settings, err := config.LoadSettings(system.DefaultFS(), path)
	if err != nil {
		return nil, errors.ConfigError("failed to load settings", err)
	}
	logging.Debug("settings loaded", "path", path)
	return settings, nil
}
