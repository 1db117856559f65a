package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

// DeleteResult is the response for the delete command.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	c := newClient()
	res := DeleteResult{Deleted: make([]string, 0, len(args))}
	for _, id := range args {
		if err := c.DeleteDocument(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		res.Deleted = append(res.Deleted, id)
		if humanOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
	}
	if humanOutput {
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), res)
}
