package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild both indices from the document store",
	Long: `Refit the keyword vocabulary over the whole corpus and rebuild the
semantic index. Documents whose content changed since their last
embedding are re-embedded; the rest reuse stored vectors.

Searches keep using the previous indices until the new ones are swapped in.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	rep, err := newClient().Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	if !humanOutput {
		return outputJSON(cmd.OutOrStdout(), rep)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents (%d re-embedded), vocabulary %d terms, generation %d, %.0f ms\n",
		rep.DocumentsIndexed, rep.Reembedded, rep.VocabularySize, rep.Generation, rep.DurationMs)
	return nil
}
