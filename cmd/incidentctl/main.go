// Package main implements the incidentctl CLI for manual operations
// against the incidentd HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the incidentd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "incidentctl",
	Short: "CLI for incidentd HTTP server operations",
	Long: `incidentctl is a command-line interface for interacting with the incidentd HTTP server.
It provides commands for diagnosing errors, suggesting runbooks, and checking health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "incidentd server URL")
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(runbooksCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(healthCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check incidentd server health",
	Long: `Check the health status of the incidentd HTTP server.

Examples:
  # Check health
  incidentctl health

  # Check health on a different server
  incidentctl health --server http://localhost:9000`,
	RunE: runHealth,
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var resp HealthResponse
	if err := getJSON("/health", &resp); err != nil {
		return err
	}

	fmt.Printf("Server Status:  %s\n", resp.Status)
	fmt.Printf("Server URL:     %s\n", serverURL)
	fmt.Printf("Version:        %s\n", resp.Version)
	fmt.Printf("K8s Connected:  %t\n", resp.K8sConnected)
	fmt.Printf("LLM Configured: %t\n", resp.LLMConfigured)

	return nil
}
