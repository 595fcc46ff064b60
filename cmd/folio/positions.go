package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/output"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Manage saved reading positions",
}

var positionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reading positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := svcs.Positions.List(ctx)
		if err != nil {
			return err
		}
		return output.Print(records)
	},
}

var positionsRmCmd = &cobra.Command{
	Use:   "rm <document-id>",
	Short: "Delete a saved reading position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := svcs.Library.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if err := svcs.Positions.Delete(ctx, doc.ID); err != nil {
			return err
		}
		fmt.Printf("deleted position for %s\n", doc.Title)
		return nil
	},
}

func init() {
	positionsCmd.AddCommand(positionsListCmd)
	positionsCmd.AddCommand(positionsRmCmd)
	rootCmd.AddCommand(positionsCmd)
}
