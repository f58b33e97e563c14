// Package cmd implements the command-line interface for the dashboard
// scheduler.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdjobs "github.com/jonesrussell/godash/cmd/jobs"
	cmdmigrate "github.com/jonesrussell/godash/cmd/migrate"
	cmdscheduler "github.com/jonesrussell/godash/cmd/scheduler"
	cmdusers "github.com/jonesrussell/godash/cmd/users"
	"github.com/jonesrussell/godash/internal/config"
)

// version is set at build time.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// rootCmd represents the root command.
	rootCmd = &cobra.Command{
		Use:   "godash",
		Short: "A cron-driven job scheduler",
		Long:  `A cron-driven job scheduler for recurring shell and SQL tasks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available.
	_ = godotenv.Load()

	// Parse flags ahead of command dispatch so --config is known before
	// the configuration is read.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("godash version %s\n", version)
		},
	})

	rootCmd.AddCommand(cmdscheduler.Command())
	rootCmd.AddCommand(cmdjobs.Command())
	rootCmd.AddCommand(cmdusers.Command())
	rootCmd.AddCommand(cmdmigrate.Command())
}

// initConfig reads the config file and environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config.SetDefaults()

	// The config file is optional; env vars and defaults cover the
	// rest.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}
