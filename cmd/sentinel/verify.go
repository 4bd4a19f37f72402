package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <artifacts.json>",
	Short: "Verify the hash-chain linkage of an exported artifact file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// runVerify checks position and linkage of an export. Content hashes are
// re-verified by the owning ledger; an export file alone lets an auditor
// confirm the chain structure offline.
func runVerify(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var artifacts contracts.AuditArtifacts
	if err := json.Unmarshal(raw, &artifacts); err != nil {
		return fmt.Errorf("decoding artifacts: %w", err)
	}

	var problems []string
	for i, entry := range artifacts.AuditChain {
		e := entry.Event
		if e == nil {
			problems = append(problems, fmt.Sprintf("entry %d: missing event", i))
			continue
		}
		if e.ChainPosition != i {
			problems = append(problems, fmt.Sprintf("entry %d: chain position %d", i, e.ChainPosition))
		}
		if len(e.EventHash) != 64 {
			problems = append(problems, fmt.Sprintf("entry %d: hash is not 64 hex chars", i))
		}
		if i > 0 && e.PreviousEventHash != artifacts.AuditChain[i-1].Event.EventHash {
			problems = append(problems, fmt.Sprintf("entry %d: previous hash does not match entry %d", i, i-1))
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Println("FAIL:", p)
		}
		return fmt.Errorf("chain structure invalid: %d problem(s)", len(problems))
	}
	fmt.Printf("chain structure valid: %d events, integrity report valid=%v\n",
		len(artifacts.AuditChain), artifacts.Integrity.Valid)
	return nil
}
