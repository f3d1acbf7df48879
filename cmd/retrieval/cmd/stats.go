package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	var (
		userID     string
		sinceDays  int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query performance statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			var since time.Time
			if sinceDays > 0 {
				since = time.Now().AddDate(0, 0, -sinceDays)
			}

			stats := app.recorder.PerformanceStats(cmd.Context(), userID, since)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queries:              %d\n", stats.QueryCount)
			fmt.Fprintf(out, "Avg total:            %.1fms\n", stats.AvgTotalMs)
			fmt.Fprintf(out, "Avg embedding:        %.1fms\n", stats.AvgEmbeddingMs)
			fmt.Fprintf(out, "Avg vector search:    %.1fms\n", stats.AvgVectorSearchMs)
			fmt.Fprintf(out, "Avg lexical search:   %.1fms\n", stats.AvgLexicalSearchMs)
			fmt.Fprintf(out, "Avg rerank:           %.1fms\n", stats.AvgRerankMs)
			fmt.Fprintf(out, "Avg retrieved/final:  %.1f / %.1f\n", stats.AvgRetrievedCount, stats.AvgFinalCount)
			fmt.Fprintf(out, "Feedback:             %d (%d positive, rate %.2f)\n",
				stats.WithFeedback, stats.PositiveFeedback, stats.PositiveFeedbackRate)
			if stats.CosineFeedbackCorrelation != nil {
				fmt.Fprintf(out, "Cosine correlation:   %.3f\n", *stats.CosineFeedbackCorrelation)
			}
			if stats.RerankFeedbackCorrelation != nil {
				fmt.Fprintf(out, "Rerank correlation:   %.3f\n", *stats.RerankFeedbackCorrelation)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "default", "Owner of the aggregated logs")
	cmd.Flags().IntVar(&sinceDays, "since", 0, "Only include logs from the last N days (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}
