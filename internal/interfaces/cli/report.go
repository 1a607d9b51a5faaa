package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	appinvoicing "github.com/dandroos/node-invoicer/internal/application/invoicing"
)

// PrintReport writes a human readable summary of a run
func PrintReport(w io.Writer, r *appinvoicing.Report) error {
	if r == nil {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	if r.Number != "" {
		fmt.Fprintf(tw, "Invoice number:\t%s\n", r.Number)
	}
	if r.Filename != "" {
		fmt.Fprintf(tw, "File:\t%s\n", r.Filename)
	}
	if r.ArtifactPath != "" {
		fmt.Fprintf(tw, "Path:\t%s\n", r.ArtifactPath)
	}
	if r.Failed() {
		fmt.Fprintf(tw, "State:\tFailed at %s\n", r.FailedStage)
	} else {
		fmt.Fprintf(tw, "State:\t%s\n", r.State)
	}
	if r.OrphanedLedgerRecord {
		fmt.Fprintf(tw, "WARNING:\tinvoice %s is recorded in the ledger but no document was produced\n", r.Number)
	}

	for _, s := range r.Steps {
		if s.Err != nil {
			fmt.Fprintf(tw, "  %s:\t%s (%v)\n", s.Step, s.Status, s.Err)
		} else {
			fmt.Fprintf(tw, "  %s:\t%s\n", s.Step, s.Status)
		}
	}
	return tw.Flush()
}
