package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"local_rag/internal/app"
)

var (
	ingestForce bool
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the documents of the data directory",
	Long: `Chunks, embeds and stores every new or changed document of the data
directory and removes the records of deleted ones. Documents that fail are
reported and retried on the next run.`,
	Args:    cobra.NoArgs,
	PreRunE: checkEmbedder,
	RunE:    runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest unchanged documents")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and re-ingest on changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application.SetProgress(app.DefaultProgressEnabled())

	report, err := application.Ingest(ctx, app.IngestOptions{Force: ingestForce})
	if err != nil {
		return err
	}
	printReport(cmd, report)

	if ingestWatch {
		return application.Watch(ctx)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *app.IngestReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d documents (%d unchanged, %d removed)\n", report.Documents, report.Skipped, report.Removed)
	fmt.Fprintf(out, "Wrote %d of %d chunks\n", report.Written, report.Chunks)
	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintf(out, "%d failures:\n", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  - %v\n", f)
	}
}
