package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debugMode  bool
	logFormat  string
)

// rootCmd represents the base command for the inboxtagger application
var rootCmd = &cobra.Command{
	Use:   "inboxtagger",
	Short: "Ingests and classifies unread Gmail messages",
	Long: `inboxtagger fetches the unread messages of a connected Gmail account,
stores the ones it has not seen before and classifies up to 20 of them per run
with a language model. Each classified message gets one of nine labels under
the "Amurex" prefix.

It can run as:
  - An HTTP service (serve)
  - A one-shot run for a single account (process)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxtagger version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file. Can also use INBOXTAGGER_CONFIG env var.")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides log.format)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
}
