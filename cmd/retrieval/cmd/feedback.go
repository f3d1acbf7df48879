package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newFeedbackCmd creates the feedback command.
func newFeedbackCmd() *cobra.Command {
	var (
		category string
		comment  string
	)

	cmd := &cobra.Command{
		Use:   "feedback <log-id> <label>",
		Short: "Attach feedback to a logged query",
		Long: `Attach a feedback label to a previously logged query.
The label "positive" marks a query whose results were useful; any other
label counts as negative in correlation analysis.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.recorder.RecordFeedback(cmd.Context(), args[0], args[1], category, comment)
			fmt.Fprintln(cmd.OutOrStdout(), "Feedback recorded.")
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Optional feedback category")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional free-form comment")

	return cmd
}
