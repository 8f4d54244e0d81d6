package main

import (
	"fmt"
	"sort"

	"github.com/jrsteele09/crm-session/internal/storage"
	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/markers/boltstore"
	"github.com/spf13/cobra"
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Inspect and reset durable session markers",
	Long: `Inspect and reset the durable markers kept per browser profile.

The session database is locked by a running server; stop it first.

Examples:
  crmctl markers show
  crmctl markers clear-loop 6f1c2d0e-...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var markersShowCmd = &cobra.Command{
	Use:   "show [device-id]",
	Short: "Show the durable markers of one or every device",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := storage.OpenSessions(c)
		if err != nil {
			return err
		}
		defer db.Close()

		devices := args
		if len(devices) == 0 {
			if devices, err = boltstore.Devices(db); err != nil {
				return err
			}
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No devices found.")
			return nil
		}

		for _, device := range devices {
			values, err := boltstore.New(db, boltstore.Bucket(device)).List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", device)
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, string(k))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", k, values[markers.Key(k)])
			}
		}
		return nil
	},
}

var markersClearLoopCmd = &cobra.Command{
	Use:   "clear-loop <device-id>",
	Short: "Re-arm the loop circuit breaker for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := storage.OpenSessions(c)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := markers.ClearLoopBroken(cmd.Context(), boltstore.New(db, boltstore.Bucket(args[0]))); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared loop markers for %s\n", args[0])
		return nil
	},
}

func init() {
	markersCmd.AddCommand(markersShowCmd, markersClearLoopCmd)
}
