package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bizadmin/internal/config"
)

var (
	configForce  bool
	configOutput string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate and inspect configuration",
	Long: `Generate a sample configuration file or inspect the effective configuration.

Every key can also be set through a BIZADMIN_ environment variable, with dots
replaced by underscores (backup.max_backups becomes BIZADMIN_BACKUP_MAX_BACKUPS).

Examples:
  # Print a sample configuration
  bizadmin config init

  # Write the sample to ~/.bizadmin.yaml
  bizadmin config init --output ~/.bizadmin.yaml

  # Show the configuration after file, environment and flags are merged
  bizadmin config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a sample configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configOutput == "" {
			return config.WriteSample(cmd.OutOrStdout(), config.Sample())
		}
		if err := config.WriteSampleFile(configOutput, configForce); err != nil {
			return err
		}
		newPrinter(cmd).Success(fmt.Sprintf("Configuration written to %s", configOutput))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		masked := *cfg
		masked.Database.Password = maskSecret(masked.Database.Password)
		masked.Backup.EncryptionKey = maskSecret(masked.Backup.EncryptionKey)
		masked.Backup.Mirror.S3.SecretKey = maskSecret(masked.Backup.Mirror.S3.SecretKey)
		masked.Backup.Mirror.Azure.AccountKey = maskSecret(masked.Backup.Mirror.Azure.AccountKey)
		masked.HTTP.APIToken = maskSecret(masked.HTTP.APIToken)
		return newPrinter(cmd).PrintYAML(masked)
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the supported environment variables",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.EnvironmentVariables(), "\n"))
	},
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)

	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "write the sample to a file instead of stdout")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}
