package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"local_rag/internal/app"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	queryTopK    int
	queryFormat  string
	queryContext bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Find the chunks most similar to a question",
	Long: `Embeds the question and prints the most similar chunks of the index,
best first. Without a question, questions are read from stdin one per line.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: checkEmbedder,
	RunE:    runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to return (default TOP_K)")
	queryCmd.Flags().StringVar(&queryFormat, "format", formatText, "output format: text, json or yaml")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "print the chunks as a prompt context block")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	switch queryFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q", queryFormat)
	}
	topK := queryTopK
	if topK == 0 {
		topK = application.Config().TopK
	}

	if len(args) == 1 {
		return answer(cmd.Context(), cmd.OutOrStdout(), args[0], topK)
	}
	return queryLoop(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), topK)
}

// queryLoop answers one question per input line until EOF or cancellation.
// A failing question is logged and does not end the loop.
func queryLoop(ctx context.Context, in io.Reader, out io.Writer, topK int) error {
	log.Println("Enter a question (one per line). Ctrl+C to exit.")

	scanner := bufio.NewScanner(in)
	const maxLineSize = 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down")
			return nil
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("stdin error: %w", err)
				}
				return nil
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := answer(ctx, out, line, topK); err != nil {
				log.Printf("❌ Search error: %v", err)
			}
		}
	}
}

func answer(ctx context.Context, out io.Writer, question string, topK int) error {
	results, err := application.Query(ctx, question, topK)
	if err != nil {
		return err
	}
	if queryContext {
		_, err := io.WriteString(out, app.BuildContext(results, application.Config().MaxContextChars))
		return err
	}
	return printResults(out, results)
}

func printResults(out io.Writer, results []app.Result) error {
	switch queryFormat {
	case formatJSON:
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		return enc.Close()
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "No results found.")
		return err
	}
	for i, r := range results {
		title := r.Source
		if r.Section != "" {
			title += " › " + r.Section
		}
		fmt.Fprintf(out, "  [%d] %s #%d (%.2f)\n", i+1, title, r.ChunkIndex, r.Similarity)
		for _, line := range strings.Split(strings.TrimSpace(r.Content), "\n") {
			fmt.Fprintf(out, "      %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}
