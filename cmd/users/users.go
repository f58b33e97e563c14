// Package users implements the users subcommands.
package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/godash/cmd/common"
)

// Command returns the users command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(registerCommand())
	return cmd
}

func registerCommand() *cobra.Command {
	var (
		username string
		password string
	)
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			h, err := deps.Handler()
			if err != nil {
				return err
			}

			user, err := h.Register(cmd.Context(), username, args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("user %q registered\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (min 8 characters)")
	return cmd
}
