package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jrsteele09/crm-session/identity/local"
	"github.com/jrsteele09/crm-session/token"
	"github.com/jrsteele09/crm-session/users"
	"github.com/jrsteele09/crm-session/users/sqliterepo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage CRM user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var (
	addEmail    string
	addName     string
	addRole     string
	addPassword string
	listLimit   int
)

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user account",
	Long: `Register a user account that can sign in with the local identity provider.

Examples:
  crmctl users add --email dana@example.com --name "Dana Reyes" --role sales_agent --password 'Sup3r$ecret'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := users.ParseRole(addRole)
		if err != nil {
			return err
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := sqliterepo.Open(c.GetUsersDBPath())
		if err != nil {
			return errors.Wrap(err, "open users database")
		}
		defer store.Close()

		issuer, err := token.NewIssuer([]byte(c.GetTokenSecret()), token.WithIssuerName(c.GetTokenIssuer()))
		if err != nil {
			return err
		}
		provider, err := local.NewProvider(store, issuer)
		if err != nil {
			return err
		}
		defer provider.Close()

		user, err := provider.Register(cmd.Context(), addEmail, addPassword, addName, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) as %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := sqliterepo.Open(c.GetUsersDBPath())
		if err != nil {
			return errors.Wrap(err, "open users database")
		}
		defer store.Close()

		list, err := store.List(cmd.Context(), 0, listLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tDISABLED")
		for _, u := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Name, u.Role, u.Disabled)
		}
		return w.Flush()
	},
}

func setDisabledCmd(use, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := sqliterepo.Open(c.GetUsersDBPath())
			if err != nil {
				return errors.Wrap(err, "open users database")
			}
			defer store.Close()

			if err := store.SetDisabled(cmd.Context(), args[0], disabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: disabled=%t\n", args[0], disabled)
			return nil
		},
	}
}

func init() {
	usersAddCmd.Flags().StringVar(&addEmail, "email", "", "Sign-in email")
	usersAddCmd.Flags().StringVar(&addName, "name", "", "Display name")
	usersAddCmd.Flags().StringVar(&addRole, "role", string(users.RoleSalesAgent), "CRM role (admin, sales_agent, operations_manager, operator)")
	usersAddCmd.Flags().StringVar(&addPassword, "password", "", "Initial password")
	_ = usersAddCmd.MarkFlagRequired("email")
	_ = usersAddCmd.MarkFlagRequired("password")

	usersListCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum users to list")

	usersCmd.AddCommand(
		usersAddCmd,
		usersListCmd,
		setDisabledCmd("disable", "Stop a user from signing in", true),
		setDisabledCmd("enable", "Allow a disabled user to sign in again", false),
	)
}
