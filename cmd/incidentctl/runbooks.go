package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	// runbooks command flags
	rbTopK       int
	rbOutputJSON bool
)

func init() {
	runbooksCmd.AddCommand(runbooksSuggestCmd)
	runbooksSuggestCmd.Flags().IntVar(&rbTopK, "top-k", 3, "Maximum number of runbooks to return")
	runbooksSuggestCmd.Flags().BoolVar(&rbOutputJSON, "json", false, "Output results as JSON")
}

var runbooksCmd = &cobra.Command{
	Use:   "runbooks",
	Short: "Work with the runbook corpus",
}

var runbooksSuggestCmd = &cobra.Command{
	Use:   "suggest [file]",
	Short: "Suggest runbooks for an error",
	Long: `Suggest runbooks matching an error without invoking the reasoning engine.

The error text is read from a file argument, or from stdin when the
argument is omitted or "-".

Examples:
  # Suggest runbooks for a captured error
  incidentctl runbooks suggest crash.log

  # Suggest from stdin, limit results
  kubectl logs api-7f9 | incidentctl runbooks suggest - --top-k 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunbooksSuggest,
}

// runRunbooksSuggest handles the runbooks suggest command
func runRunbooksSuggest(cmd *cobra.Command, args []string) error {
	content, err := readInput(args)
	if err != nil {
		return err
	}

	var resp RunbookResponse
	req := RunbookRequest{ErrorMessage: string(content), TopK: rbTopK}
	if err := postJSON("/api/v1/runbooks/suggest", req, &resp); err != nil {
		return err
	}

	if rbOutputJSON {
		return printJSON(resp)
	}

	if resp.TotalMatched == 0 {
		fmt.Println("No matching runbooks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tFILE\tTITLE")
	for _, m := range resp.Results {
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", m.Relevance, m.Filename, m.Title)
	}
	return w.Flush()
}
