package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and search statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	st, err := newClient().Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !humanOutput {
		return outputJSON(out, st)
	}

	idx, s := st.Index, st.Search
	fmt.Fprintf(out, "Index\n")
	fmt.Fprintf(out, "  documents:   %d\n", idx.CorpusSize)
	fmt.Fprintf(out, "  vocabulary:  %d (max %d, ngrams %d-%d)\n", idx.VocabularySize, idx.MaxFeatures, idx.NGramRange[0], idx.NGramRange[1])
	fmt.Fprintf(out, "  semantic:    %s, dim %d, trained %t, tombstones %d\n", idx.IndexType, idx.EmbeddingDimension, idx.IVFTrained, idx.Tombstones)
	fmt.Fprintf(out, "  generation:  %d (built %s)\n", idx.Generation, idx.BuiltAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Search\n")
	fmt.Fprintf(out, "  searches:    %d (cache hits %d, degraded %d, failed %d)\n", s.Searches, s.CacheHits, s.Degraded, s.Failed)
	fmt.Fprintf(out, "  avg time:    %.2f ms\n", s.AvgElapsedMs)
	return nil
}
