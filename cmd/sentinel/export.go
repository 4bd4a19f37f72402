package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a scenario and export its audit artifacts as JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "artifacts.json", "Output file for exported artifacts")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	level := "WARN"
	if verbose {
		level = "DEBUG"
	}
	c, err := buildCore(level)
	if err != nil {
		return err
	}
	defer c.shutdown()

	workflowID, err := runScenario(c, "approve")
	if err != nil {
		return err
	}

	artifacts := c.ledger.ExportArtifacts(workflowID)
	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeJSON(f, artifacts); err != nil {
		return err
	}
	fmt.Printf("exported %d events for workflow %s to %s\n",
		len(artifacts.AuditChain), workflowID, exportOut)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
