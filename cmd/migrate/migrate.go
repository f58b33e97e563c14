// Package migrate implements the migrate subcommand.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/godash/cmd/common"
	"github.com/jonesrussell/godash/internal/store"
)

// Command returns the migrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := store.Migrate(cmd.Context(), deps.DB); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}
