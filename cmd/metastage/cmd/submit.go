package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/metastage/pkg/draft"
	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/session"
)

// draftTarget is the slice of the session that override application needs.
type draftTarget interface {
	Snapshot() session.Snapshot
	UpdateDraft(urn string, partial draft.Draft) bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the staged change preview",
	Long: `Submit fetches the current preview, optionally layers draft overrides
from a YAML file on top, and commits the compiled patch set in one batch.

The overrides file maps entity URNs to partial drafts:

    urn:li:dataset:orders:
      description: "Orders fact table"
      aspects:
        deprecation: null   # explicit remove

With --dry-run the compiled patches are printed instead of submitted.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().String("drafts", "", "YAML file of per-URN draft overrides")
	submitCmd.Flags().Bool("dry-run", false, "print the compiled patches without submitting")

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	draftsFile, _ := cmd.Flags().GetString("drafts")
	if draftsFile != "" {
		if err := applyDraftsFile(sess, draftsFile); err != nil {
			return err
		}
	}

	patches := sess.Changes()
	if len(patches) == 0 {
		fmt.Println("Nothing to submit: the preview matches the current metadata.")
		return nil
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		out, err := yaml.Marshal(patches)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	result, err := sess.Submit(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted %d operations across %d entities.\n",
		result.Operations, len(result.URNs))
	return nil
}

// applyDraftsFile layers overrides from a YAML file onto the session.
// Overrides for URNs not present in the fetched preview are rejected rather
// than silently dropped.
func applyDraftsFile(sess draftTarget, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.NewConfigError("drafts", "reading overrides file", err)
	}

	var overrides map[string]draft.Draft
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return errors.WrapParse("yaml", err)
	}

	baseline := sess.Snapshot().Baseline
	for urn, partial := range overrides {
		if _, ok := baseline[urn]; !ok {
			return errors.NewNotFoundError("entity", urn)
		}
		sess.UpdateDraft(urn, partial)
	}
	return nil
}
