// Command crmctl administers a CRM session deployment: user accounts in the
// users database and the per-device markers in the session database.
package main

import (
	"os"

	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "crmctl",
	Short:         "Administer CRM session accounts and markers",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.AddCommand(usersCmd, markersCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("crmctl failed")
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.New()
}
