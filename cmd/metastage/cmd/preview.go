package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch and display the staged change preview",
	Long: `Preview fetches one page of the staged change preview and prints it
grouped by entity type. Use --query to filter, --start to page, and
--format for machine-readable output.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("query", "", "search filter")
	previewCmd.Flags().Int("start", 0, "page offset")
	previewCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	query, _ := cmd.Flags().GetString("query")
	start, _ := cmd.Flags().GetInt("start")
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	if query != "" {
		err = sess.SearchNow(ctx, query)
	} else if start > 0 {
		err = sess.SetPage(ctx, start)
	} else {
		err = sess.Refresh(ctx)
	}
	if err != nil && !errors.IsStale(err) {
		return err
	}

	snap := sess.Snapshot()
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Groups)
	case "yaml":
		out, err := yaml.Marshal(snap.Groups)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	case "table":
		printGroups(snap.Groups)
		fmt.Println()
		for _, group := range snap.Groups {
			fmt.Printf("%s: %d total (ready %d, conflict %d, new %d, skipped %d)\n",
				group.Label, group.Total,
				group.StatusCounts[preview.StatusReady],
				group.StatusCounts[preview.StatusConflict],
				group.StatusCounts[preview.StatusNew],
				group.StatusCounts[preview.StatusSkipped])
		}
		fmt.Printf("Showing %d of %d entities (start %d)\n",
			countRows(snap.Groups), snap.Total, snap.Start)
		return nil
	default:
		return errors.NewValidationError("format", format, "must be table, json, or yaml")
	}
}

func printGroups(groups []preview.EntityGroup) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tSTATUS\tASPECTS\tURN")
	for _, group := range groups {
		for _, row := range group.Rows {
			printRow(w, group.Label, row, 0)
		}
	}
	_ = w.Flush()
}

func printRow(w *tabwriter.Writer, label string, row *preview.EntityRow, depth int) {
	name := strings.Repeat("  ", depth) + row.Name
	urn := row.URN
	if row.Placeholder {
		urn = "(context only)"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", label, name, row.Status, len(row.Aspects), urn)
	for _, child := range row.Children {
		printRow(w, label, child, depth+1)
	}
}

func countRows(groups []preview.EntityGroup) int {
	total := 0
	var walk func(rows []*preview.EntityRow)
	walk = func(rows []*preview.EntityRow) {
		for _, row := range rows {
			total++
			walk(row.Children)
		}
	}
	for _, group := range groups {
		walk(group.Rows)
	}
	return total
}
