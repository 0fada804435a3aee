package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bizadmin/internal/config"
	"bizadmin/internal/display"
	apperrors "bizadmin/internal/errors"
	"bizadmin/internal/logging"
)

var cfgFile string

// Global flags
var (
	verbose     bool
	quiet       bool
	noColor     bool
	theme       string
	tableStyle  string
	logLevel    string
	logFile     string
	autoApprove bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bizadmin",
	Short: "Backup and restore for the business admin MySQL database",
	Long: `bizadmin creates, lists, restores and deletes SQL backups of the business
admin MySQL database. Backups can be compressed, encrypted, mirrored to S3,
GCS or Azure and taken automatically on a schedule by the HTTP server.

Examples:
  # Create a backup using ~/.bizadmin.yaml
  bizadmin backup create

  # List backups as JSON
  bizadmin backup list --format json

  # Restore a backup, dropping existing tables first
  bizadmin backup restore backup-2024-05-01T10-20-30-123Z.sql --overwrite

  # Serve the backup API with the auto backup scheduler
  bizadmin serve --config /etc/bizadmin.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the user-facing reason for err, and the full chain in
// verbose mode
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", apperrors.FormatUserError(err))
	if verbose {
		fmt.Fprintf(w, "Details: %v\n", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bizadmin.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVar(&noColor, "no-color", false, "disable color output")
	flags.StringVar(&theme, "theme", "dark", "color theme (dark, light, plain, auto)")
	flags.StringVar(&tableStyle, "table-style", display.DefaultTableStyle.Name, "table style (default, compact)")
	flags.StringVar(&logLevel, "log-level", "", "log level (quiet, normal, verbose, debug)")
	flags.StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")
	flags.BoolVarP(&autoApprove, "yes", "y", false, "skip confirmation prompts")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.file", flags.Lookup("log-file"))

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	loader := config.NewLoader(viper.GetViper())
	cobra.CheckErr(loader.Setup(cfgFile))
	cobra.CheckErr(loader.ReadInConfig())

	if verbose && loader.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", loader.ConfigFileUsed())
	}
}

// loadConfig unmarshals and validates the configuration. Flags that change
// the log level win over the file.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.NewLoader(viper.GetViper()).Load()
	if err != nil {
		return nil, err
	}

	switch {
	case logLevel != "":
	case verbose:
		cfg.Log.Level = string(logging.LogLevelVerbose)
	case quiet:
		cfg.Log.Level = string(logging.LogLevelQuiet)
	}
	return cfg, nil
}

// newLogger builds the structured logger for cfg. Logs go to stderr so they
// never mix with command output.
func newLogger(cfg *config.AppConfig) (*logging.Logger, error) {
	loggerConfig := cfg.LoggerConfig()
	loggerConfig.Output = os.Stderr
	return logging.NewLogger(loggerConfig)
}

// newPrinter builds the display printer from the global flags
func newPrinter(cmd *cobra.Command) *display.Printer {
	return display.NewPrinter(display.Config{
		ColorEnabled: !noColor,
		Theme:        theme,
		TableStyle:   tableStyle,
		Quiet:        quiet,
		Writer:       cmd.OutOrStdout(),
	})
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for bizadmin",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bizadmin version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
}
