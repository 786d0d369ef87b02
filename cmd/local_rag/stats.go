package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the size of the index",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every record and the index metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Index reset.")
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", formatText, "output format: text, json or yaml")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := application.Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch statsFormat {
	case formatJSON:
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case formatYAML:
		data, err := yaml.Marshal(stats)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	case formatText:
		if stats.Namespace != "" {
			fmt.Fprintf(out, "Namespace: %s\n", stats.Namespace)
		}
		fmt.Fprintf(out, "Data directory: %s\n", stats.DataPath)
		fmt.Fprintf(out, "Records: %d\n", stats.Records)
		fmt.Fprintf(out, "Files: %d\n", len(stats.Files))
		for _, f := range stats.Files {
			fmt.Fprintf(out, "  %s (%d chunks, %d bytes, %s)\n", f.Path, f.Chunks, f.Size, f.LastModified.Format("2006-01-02 15:04:05"))
		}
	default:
		return fmt.Errorf("unknown format %q", statsFormat)
	}
	return nil
}
