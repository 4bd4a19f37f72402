package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/sentinel/core/pkg/auth"
	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/config"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/governance"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
	"github.com/veritas-labs/sentinel/core/pkg/observability"
	"github.com/veritas-labs/sentinel/core/pkg/orchestrator"
	"github.com/veritas-labs/sentinel/core/pkg/sink"
	"github.com/veritas-labs/sentinel/core/pkg/skills"
	"github.com/veritas-labs/sentinel/core/pkg/store"
	"github.com/veritas-labs/sentinel/core/pkg/validation"
	"github.com/veritas-labs/sentinel/core/pkg/workflow"
)

var demoDecision string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a full workflow scenario end to end",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoDecision, "decision", "approve",
		"Governance decision to apply (approve, approve_with_restrictions, block)")
	rootCmd.AddCommand(demoCmd)
}

// core bundles the wired components for CLI use.
type core struct {
	cfg       *config.Config
	machine   *workflow.Machine
	gate      *governance.Gate
	orch      *orchestrator.Orchestrator
	ledger    *ledger.Ledger
	bus       *bus.Bus
	telemetry *observability.Provider
	verifier  *auth.Verifier
	decls     []skills.Declaration
}

// buildCore wires the components from environment configuration. Flags
// override env; a non-empty levelOverride overrides the configured log
// level. With APPROVER_TOKEN_SECRET set, governance decisions are
// processed through signed approver assertions; with
// CAPABILITY_DECLARATIONS_DIR set, the skill matrix is loaded from YAML
// declarations instead of the built-in one.
func buildCore(levelOverride string) (*core, error) {
	cfg := config.Load()
	if sinkPath != "" {
		cfg.SinkPath = sinkPath
	}
	if archivePath != "" {
		cfg.ArchivePath = archivePath
	}
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}

	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	telemetry, err := observability.New(context.Background(), &observability.Config{
		ServiceName:  "sentinel-core",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TelemetryEnabled,
		Insecure:     true,
		BatchTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	matrix := skills.NewMatrix()
	var decls []skills.Declaration
	if cfg.DeclarationsDir != "" {
		matrix, decls, err = skills.LoadDeclarations(cfg.DeclarationsDir)
		if err != nil {
			return nil, err
		}
	}

	notifications := bus.New()
	led := ledger.New(sink.NewDocumentSink(cfg.SinkPath), notifications)
	validator, err := validation.New(matrix)
	if err != nil {
		return nil, err
	}
	machine := workflow.NewMachine(store.NewMemoryRegistry(), led, validator, notifications)
	gate := governance.NewGate(machine, governance.DefaultRules(), notifications)

	var verifier *auth.Verifier
	if cfg.ApproverSecret != "" {
		verifier, err = auth.NewVerifier([]byte(cfg.ApproverSecret))
		if err != nil {
			return nil, err
		}
		gate = gate.WithVerifier(verifier)
	}
	orch := orchestrator.New(machine, gate, notifications)

	return &core{
		cfg:       cfg,
		machine:   machine,
		gate:      gate,
		orch:      orch,
		ledger:    led,
		bus:       notifications,
		telemetry: telemetry,
		verifier:  verifier,
		decls:     decls,
	}, nil
}

// shutdown closes the ledger and flushes telemetry.
func (c *core) shutdown() {
	c.ledger.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.telemetry.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	level := ""
	if verbose {
		level = "DEBUG"
	}
	c, err := buildCore(level)
	if err != nil {
		return err
	}
	defer c.shutdown()

	workflowID, err := runScenario(c, demoDecision)
	if err != nil {
		return err
	}

	final, err := c.machine.GetWorkflow(workflowID)
	if err != nil {
		return err
	}
	integrity := c.ledger.VerifyChainIntegrity(workflowID)
	fmt.Printf("final state: %s, chain length %d, chain valid: %v\n",
		final.CurrentState, integrity.ChainLength, integrity.Valid)

	if final.CurrentState == contracts.StateTerminated {
		archive, err := store.OpenSQLiteArchive(c.cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()
		if err := archive.ArchiveChain(context.Background(), c.ledger.GetChain(workflowID)); err != nil {
			return err
		}
		fmt.Printf("chain archived to %s\n", c.cfg.ArchivePath)
	}
	return nil
}

// runScenario drives one workflow from creation through a governance
// decision and returns its id.
func runScenario(c *core, decision string) (string, error) {
	ctx := context.Background()
	w, err := c.machine.CreateWorkflow(ctx)
	if err != nil {
		return "", err
	}
	fmt.Printf("workflow %s created\n", w.WorkflowID)

	if err := c.analysisPhase(ctx, w.WorkflowID); err != nil {
		return "", err
	}
	if err := c.governancePhase(ctx, w.WorkflowID, decision); err != nil {
		return "", err
	}
	return w.WorkflowID, nil
}

// analysisPhase moves the workflow to GOVERNANCE_PENDING, collecting the
// three specialist outputs along the way.
func (c *core) analysisPhase(ctx context.Context, id string) (err error) {
	ctx, finish := c.telemetry.StartOperation(ctx, "scenario.analysis", id)
	defer func() { finish(err) }()

	for _, state := range []contracts.WorkflowState{contracts.StateIncidentIngested, contracts.StateAnalyzing} {
		if err = c.machine.TransitionTo(ctx, id, state); err != nil {
			return err
		}
	}
	if _, err = c.orch.CoordinateParallelAnalysis(ctx, id); err != nil {
		return err
	}

	for _, cand := range demoCandidates() {
		output, warnings, addErr := c.machine.AddAgentOutput(ctx, id, cand)
		if addErr != nil {
			err = fmt.Errorf("adding %s output: %w", cand.Role, addErr)
			return err
		}
		for _, warning := range warnings {
			fmt.Printf("  warning (%s): %s\n", cand.Role, warning)
		}
		if _, err = c.orch.ProcessAgentOutputCompletion(ctx, id, output); err != nil {
			return err
		}
		fmt.Printf("output accepted: role=%s confidence=%.2f\n", output.Role, output.Confidence)
	}

	readiness, rcaErr := c.orch.CoordinateRCATransition(id)
	if rcaErr != nil {
		err = rcaErr
		return err
	}
	if !readiness.CanTransition {
		err = fmt.Errorf("RCA blocked: %v", readiness.Blockers)
		return err
	}
	for _, state := range []contracts.WorkflowState{contracts.StateRCAComplete, contracts.StateGovernancePending} {
		if err = c.machine.TransitionTo(ctx, id, state); err != nil {
			return err
		}
	}
	return nil
}

// governancePhase runs the gate and processes the requested decision,
// signed when an approver verifier is configured.
func (c *core) governancePhase(ctx context.Context, id, decision string) (err error) {
	ctx, finish := c.telemetry.StartOperation(ctx, "scenario.governance", id)
	defer func() { finish(err) }()

	req, gateErr := c.orch.CoordinateGovernanceGate(ctx, id, orchestrator.GateContext{
		AffectedServices: []string{"checkout", "database"},
	})
	if gateErr != nil {
		err = gateErr
		return err
	}
	fmt.Printf("governance request %s: action=%q risk=%s conflicts=%v\n",
		req.RequestID, req.ProposedAction, req.BlastRadius.RiskLevel, req.PolicyConflicts)

	for _, role := range contracts.AnalysisRoles() {
		for _, constraint := range skills.CheckConstraint(c.decls, role, req.ProposedAction) {
			fmt.Printf("  declared constraint (%s/%s): %s\n", role, constraint.Capability, constraint.Rule)
		}
	}

	iface, ifaceErr := c.gate.GetApprovalInterface(req.RequestID)
	if ifaceErr != nil {
		err = ifaceErr
		return err
	}
	fmt.Printf("available decisions: %v\n", iface.AvailableDecisions)

	approver := contracts.Approver{ID: "demo-operator", Role: "incident-commander"}
	var result *governance.DecisionResult
	if c.verifier != nil {
		assertion, mintErr := c.verifier.MintAssertion(approver, 5*time.Minute)
		if mintErr != nil {
			err = mintErr
			return err
		}
		result, err = c.gate.ProcessSignedDecision(ctx, req.RequestID,
			contracts.DecisionTag(decision), "demo scenario decision", assertion, nil)
	} else {
		result, err = c.gate.ProcessDecision(ctx, req.RequestID,
			contracts.DecisionTag(decision), "demo scenario decision", approver, nil)
	}
	if err != nil {
		return err
	}
	if result.WorkflowTerminated {
		fmt.Println("workflow terminated by governance block")
		return nil
	}
	err = c.machine.TransitionTo(ctx, id, contracts.StateActionProposed)
	return err
}

func demoCandidates() []validation.Candidate {
	now := time.Now().UTC().Format(time.RFC3339)
	return []validation.Candidate{
		{
			Role:       string(contracts.RoleReliability),
			SkillsUsed: []string{"metrics-analysis", "log-analysis"},
			Findings: contracts.Findings{
				Summary:      "Checkout latency spike correlates with the 14:02 deploy",
				Evidence:     []string{"p99 latency tripled at 14:02", "deploy of checkout v2.14 at 14:01"},
				Correlations: []string{"deploy window matches latency inflection"},
				Recommendations: []string{
					"rollback deploy of checkout v2.14",
				},
			},
			Confidence:       0.86,
			Timestamp:        now,
			ProcessingTimeMs: 1250,
			DataSources:      []string{"prometheus", "deploy-log"},
		},
		{
			Role:       string(contracts.RoleSecurity),
			SkillsUsed: []string{"access-log-analysis", "ioc-matching"},
			Findings: contracts.Findings{
				Summary:      "No indicators of compromise in the incident window",
				Evidence:     []string{"access logs show no anomalous principals", "IOC feeds have no matches"},
				Correlations: []string{"latency spike not correlated with auth traffic"},
			},
			Confidence:       0.78,
			Timestamp:        now,
			ProcessingTimeMs: 2100,
			DataSources:      []string{"access-logs", "ioc-feed"},
		},
		{
			Role:       string(contracts.RoleCompliance),
			SkillsUsed: []string{"policy-lookup", "change-control-review"},
			Findings: contracts.Findings{
				Summary:      "Deploy followed change control; no data-handling impact identified",
				Evidence:     []string{"change ticket CHG-4411 approved", "no customer data paths in the deploy diff"},
				Correlations: []string{"change window matches deploy record"},
			},
			Confidence:       0.81,
			Timestamp:        now,
			ProcessingTimeMs: 900,
			DataSources:      []string{"change-db"},
		},
	}
}
