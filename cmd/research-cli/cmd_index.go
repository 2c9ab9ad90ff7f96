package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var queryK int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the local document index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show indexed documents and chunk counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := bootService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		info := svc.Info()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Folder:    %s\n", info.FilesDir)
		fmt.Fprintf(out, "Documents: %d\n", len(info.Documents))
		fmt.Fprintf(out, "Chunks:    %d\n", info.Chunks)
		for _, d := range info.Documents {
			fmt.Fprintf(out, "  - %s\n", d)
		}
		if len(info.Skipped) > 0 {
			fmt.Fprintf(out, "Skipped:   %d\n", len(info.Skipped))
			for _, s := range info.Skipped {
				fmt.Fprintf(out, "  - %s (%s)\n", s.Name, s.Reason)
			}
		}
		for _, p := range info.Providers {
			fmt.Fprintf(out, "Provider %s: enabled=%t max_items=%d\n", p.Name, p.Enabled, p.MaxItems)
		}
		return nil
	},
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a bare BM25 lookup against the local index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := bootService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := svc.Query(strings.Join(args, " "), queryK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching chunks.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tSOURCE\tPAGE\tTEXT")
		for _, r := range results {
			fmt.Fprintf(tw, "%.3f\t%s\t%d\t%s\n", r.Score, r.Chunk.SourceID, r.Chunk.PageIndex, preview(r.Chunk.Text, 60))
		}
		return tw.Flush()
	},
}

func init() {
	indexQueryCmd.Flags().IntVarP(&queryK, "k", "k", 4, "number of chunks to return")
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexQueryCmd)
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
