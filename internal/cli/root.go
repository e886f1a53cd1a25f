// Package cli implements the active24dns maintenance commands. The
// primary integration path is the library provider driven by the host
// ACME client; these commands cover manual testing and operational
// cleanup against the same API and configuration.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"active24dns/internal/config"
)

var (
	credentialsPath string
	logLevel        string
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "active24dns",
	Short: "Active24 DNS-01 challenge tooling",
	Long:  "Manage Active24 DNS-01 challenge records: publish, verify, and clean up challenge TXT records.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level, err := logrus.ParseLevel(logLevel); err == nil {
			logrus.SetLevel(level)
		}
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&credentialsPath, "credentials", "c", "", "Path to the INI credentials file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug/info/warn/error)")
}

// loadConfig loads configuration from the --credentials file when given,
// falling back to environment variables
func loadConfig() (*config.Config, error) {
	if credentialsPath != "" {
		return config.LoadFromINI(credentialsPath)
	}
	return config.Load()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
