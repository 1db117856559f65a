package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hybridex/internal/client"
)

var (
	searchType  string
	searchLimit int
	searchAlpha float64
)

func init() {
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "Search type: hybrid, semantic or keyword (server default: hybrid)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results to return (server default when 0)")
	searchCmd.Flags().Float64Var(&searchAlpha, "alpha", 0, "Semantic weight in [0, 1] for hybrid search")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank documents for a query",
	Long: `Run a hybrid, semantic or keyword search.

Examples:
  hybridexctl search "neural networks"
  hybridexctl search "sql joins" --type keyword -n 5
  hybridexctl search "cloud storage" --alpha 0.3 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	params := client.SearchParams{Query: args[0], Type: searchType, Limit: searchLimit}
	if cmd.Flags().Changed("alpha") {
		params.Alpha = &searchAlpha
	}

	res, err := newClient().Search(cmd.Context(), params)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !humanOutput {
		return outputJSON(out, res)
	}

	fmt.Fprintf(out, "%d results for %q (%s, alpha %.2f, %.1f ms)\n", len(res.Results), res.Query, res.SearchType, res.Alpha, res.ElapsedMs)
	if res.Degraded {
		fmt.Fprintf(out, "degraded: %s\n", res.DegradedReason)
	}
	for i, r := range res.Results {
		fmt.Fprintf(out, "\n%d. [%.3f] %s  %s\n", i+1, r.FusedScore, r.ID, r.Title)
		fmt.Fprintf(out, "   semantic %.3f  keyword %.3f\n", r.SemanticScore, r.KeywordScore)
		fmt.Fprintf(out, "   %s\n", truncate(r.Content, snippetMaxLen))
	}
	return nil
}
