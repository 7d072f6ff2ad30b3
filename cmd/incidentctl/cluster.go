package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chOutputJSON bool

func init() {
	clusterCmd.AddCommand(clusterHealthCmd)
	clusterHealthCmd.Flags().BoolVar(&chOutputJSON, "json", false, "Output results as JSON")
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect cluster state through incidentd",
}

var clusterHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show cluster-wide node health",
	Long: `Show node readiness, pressure conditions, and collector warnings
as seen by the incidentd server.

Examples:
  incidentctl cluster health
  incidentctl cluster health --json`,
	RunE: runClusterHealth,
}

// runClusterHealth handles the cluster health command
func runClusterHealth(cmd *cobra.Command, args []string) error {
	var resp ClusterHealthResponse
	if err := getJSON("/api/v1/cluster/health", &resp); err != nil {
		return err
	}

	if chOutputJSON {
		return printJSON(resp)
	}

	fmt.Printf("Cluster Status: %s\n", resp.ClusterStatus)
	fmt.Printf("Nodes Ready:    %d/%d\n", resp.ReadyNodes, resp.TotalNodes)

	if len(resp.NodeIssues) > 0 {
		fmt.Printf("\nNode Issues:\n")
		for _, issue := range resp.NodeIssues {
			conds := "none"
			if len(issue.Conditions) > 0 {
				conds = strings.Join(issue.Conditions, ", ")
			}
			fmt.Printf("  - %s (ready=%s, conditions: %s)\n", issue.Name, issue.Status, conds)
		}
	}

	for _, warning := range resp.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}

	return nil
}
