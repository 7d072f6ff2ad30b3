package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// diagnose command flags
	dgPod           string
	dgDeployment    string
	dgNamespace     string
	dgClusterHealth bool
	dgOutputJSON    bool
)

func init() {
	diagnoseCmd.Flags().StringVar(&dgPod, "pod", "", "Pod to inspect for live cluster context")
	diagnoseCmd.Flags().StringVar(&dgDeployment, "deployment", "", "Deployment to inspect for live cluster context")
	diagnoseCmd.Flags().StringVarP(&dgNamespace, "namespace", "n", "default", "Kubernetes namespace")
	diagnoseCmd.Flags().BoolVar(&dgClusterHealth, "cluster-health", false, "Include a namespace health overview")
	diagnoseCmd.Flags().BoolVar(&dgOutputJSON, "json", false, "Output results as JSON")
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [file]",
	Short: "Diagnose an error from a file or stdin",
	Long: `Diagnose an error using the incidentd server.

The error text is read from a file argument, or from stdin when the
argument is omitted or "-".

Examples:
  # Diagnose a captured error log
  incidentctl diagnose crash.log

  # Diagnose from stdin
  kubectl logs api-7f9 | incidentctl diagnose -

  # Include live pod state in the diagnosis
  incidentctl diagnose crash.log --pod api-7f9 -n prod

  # Output as JSON
  incidentctl diagnose crash.log --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiagnose,
}

// runDiagnose handles the diagnose command
func runDiagnose(cmd *cobra.Command, args []string) error {
	content, err := readInput(args)
	if err != nil {
		return err
	}

	req := DiagnoseRequest{
		ErrorMessage:         string(content),
		PodName:              dgPod,
		DeploymentName:       dgDeployment,
		Namespace:            dgNamespace,
		IncludeClusterHealth: dgClusterHealth,
	}

	var resp DiagnoseResponse
	if err := postJSON("/api/v1/diagnose", req, &resp); err != nil {
		return err
	}

	if dgOutputJSON {
		return printJSON(resp)
	}

	printDiagnosis(&resp)
	return nil
}

// readInput returns error text from the file argument or stdin.
func readInput(args []string) ([]byte, error) {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, fmt.Errorf("no error text to diagnose")
	}
	return content, nil
}

func printDiagnosis(resp *DiagnoseResponse) {
	fmt.Printf("Request:    %s\n", resp.RequestID)
	fmt.Printf("Severity:   %s\n", resp.Severity)
	fmt.Printf("Category:   %s\n", resp.ErrorCategory)
	fmt.Printf("Root Cause: %s\n", resp.RootCause)
	fmt.Printf("\n%s\n", resp.Explanation)

	if len(resp.FixCommands) > 0 {
		fmt.Printf("\nFix Commands:\n")
		for _, fc := range resp.FixCommands {
			fmt.Printf("  [%s] %s\n", fc.RiskLevel, fc.Command)
			if fc.Description != "" {
				fmt.Printf("        %s\n", fc.Description)
			}
		}
	}

	if len(resp.PreventionTips) > 0 {
		fmt.Printf("\nPrevention Tips:\n")
		for _, tip := range resp.PreventionTips {
			fmt.Printf("  - %s\n", tip)
		}
	}

	if len(resp.RelatedRunbooks) > 0 {
		fmt.Printf("\nRelated Runbooks:\n")
		for _, rb := range resp.RelatedRunbooks {
			fmt.Printf("  - %s (%s, score %.2f)\n", rb.Title, rb.Filename, rb.RelevanceScore)
		}
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
