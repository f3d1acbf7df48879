package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secondbrain/retrieval/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var (
		userID     string
		topK       int
		threshold  float64
		hybrid     bool
		hyde       bool
		expand     bool
		variations int
		rerank     bool
		provider   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a retrieval query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			res := app.pipeline.Retrieve(cmd.Context(), query, userID, search.RetrieveOptions{
				TopK:                topK,
				SimilarityThreshold: threshold,
				MinRelevance:        app.cfg.Rerank.MinRelevance,
				VariationCount:      variations,
				HybridSearch:        hybrid,
				HyDE:                hyde,
				QueryExpansion:      expand,
				Reranking:           rerank,
				Analytics:           app.cfg.Analytics.Enabled,
				RerankingProvider:   provider,
			})

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			out := cmd.OutOrStdout()
			if len(res.Results) == 0 {
				fmt.Fprintln(out, "No results.")
			}
			for _, r := range res.Results {
				fmt.Fprintf(out, "%2d. [%.3f] %s\n", r.FinalRank, r.FinalScore, r.Title)
				if snippet, ok := r.Metadata["snippet"]; ok {
					fmt.Fprintf(out, "    %s\n", snippet)
				}
			}
			if res.LogID != "" {
				fmt.Fprintf(out, "\nlog: %s\n", res.LogID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "default", "Owner of the searched chunks")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (0 = config default)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum cosine similarity")
	cmd.Flags().BoolVar(&hybrid, "hybrid", true, "Combine lexical and semantic search")
	cmd.Flags().BoolVar(&hyde, "hyde", false, "Expand with a hypothetical document")
	cmd.Flags().BoolVar(&expand, "expand", false, "Expand with query variations")
	cmd.Flags().IntVar(&variations, "variations", 3, "Requested phrasing count for expansion")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank candidates with the LLM")
	cmd.Flags().StringVar(&provider, "rerank-provider", "", "Reranker: llm, http, or none")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
