package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
)

func governancePendingWorkflow(t *testing.T, f *fixture) string {
	t.Helper()
	w, err := f.machine.CreateWorkflow(context.Background())
	require.NoError(t, err)
	advanceTo(t, f, w.WorkflowID, contracts.StateGovernancePending)
	return w.WorkflowID
}

func approveDecision() contracts.GovernanceDecision {
	return contracts.GovernanceDecision{
		Decision:  contracts.DecisionApprove,
		Rationale: "rollback is reversible and scoped to one service",
		Approver:  contracts.Approver{ID: "op-1", Role: "incident-commander"},
	}
}

func TestAddGovernanceDecisionApprove(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)
	ctx := context.Background()

	w, err := f.machine.AddGovernanceDecision(ctx, id, approveDecision(), []string{"critical-service-protection"})
	require.NoError(t, err)

	// Approval alone does not advance the state.
	assert.Equal(t, contracts.StateGovernancePending, w.CurrentState)
	require.NotNil(t, w.Decision)
	assert.Equal(t, contracts.DecisionApprove, w.Decision.Decision)
	assert.Equal(t, testNow, w.Decision.DecidedAt)

	chain := f.ledger.GetChain(id)
	last := chain[len(chain)-1]
	assert.Equal(t, contracts.EventGovernanceDecision, last.EventType)
	assert.Equal(t, "op-1", last.Actor)
	require.NotNil(t, last.ContextCapture)
	require.NotNil(t, last.ContextCapture.Governance)
	assert.Equal(t, "standard", last.ContextCapture.Governance.DecisionCompliance)
	assert.Equal(t, "authorized", last.ContextCapture.Governance.ApproverAuthority)
	assert.Equal(t, []string{"critical-service-protection"}, last.ContextCapture.Governance.PolicyConflicts)

	// The gated edge now opens.
	require.NoError(t, f.machine.TransitionTo(ctx, id, contracts.StateActionProposed))
}

func TestAddGovernanceDecisionBlockTerminates(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)
	ctx := context.Background()

	d := contracts.GovernanceDecision{
		Decision:  contracts.DecisionBlock,
		Rationale: "blast radius includes the payment database",
		Approver:  contracts.Approver{ID: "op-2", Role: "security-officer"},
	}
	w, err := f.machine.AddGovernanceDecision(ctx, id, d, nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.StateTerminated, w.CurrentState)

	chain := f.ledger.GetChain(id)
	last := chain[len(chain)-1]
	assert.Equal(t, contracts.EventWorkflowTermination, last.EventType)
	assert.Equal(t, "op-2", last.Actor)
	require.NotNil(t, last.ContextCapture.Termination)
	assert.Equal(t, "governance_blocked", last.ContextCapture.Termination.CompletionStatus)
	assert.Contains(t, last.ContextCapture.Termination.ResidualRisks,
		"remediation blocked by governance: blast radius includes the payment database")
	assert.True(t, f.ledger.VerifyChainIntegrity(id).Valid)
}

func TestAddGovernanceDecisionIrrevocable(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)
	ctx := context.Background()

	_, err := f.machine.AddGovernanceDecision(ctx, id, approveDecision(), nil)
	require.NoError(t, err)

	second := approveDecision()
	second.Decision = contracts.DecisionBlock
	_, err = f.machine.AddGovernanceDecision(ctx, id, second, nil)
	assert.ErrorIs(t, err, ErrDecisionExists)
}

func TestAddGovernanceDecisionWrongState(t *testing.T) {
	f := newFixture(t)
	w, err := f.machine.CreateWorkflow(context.Background())
	require.NoError(t, err)

	_, err = f.machine.AddGovernanceDecision(context.Background(), w.WorkflowID, approveDecision(), nil)
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestAddGovernanceDecisionValidation(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*contracts.GovernanceDecision)
		want   string
	}{
		{
			name:   "unknown tag",
			mutate: func(d *contracts.GovernanceDecision) { d.Decision = "escalate" },
			want:   "unknown tag",
		},
		{
			name:   "blank rationale",
			mutate: func(d *contracts.GovernanceDecision) { d.Rationale = "   " },
			want:   "rationale",
		},
		{
			name:   "missing approver",
			mutate: func(d *contracts.GovernanceDecision) { d.Approver.ID = "" },
			want:   "approver",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := approveDecision()
			tc.mutate(&d)
			_, err := f.machine.AddGovernanceDecision(ctx, id, d, nil)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Errors[0], tc.want)
		})
	}

	// None of the rejected attempts consumed the single decision slot.
	_, err := f.machine.AddGovernanceDecision(ctx, id, approveDecision(), nil)
	assert.NoError(t, err)
}

func TestApproveWithRestrictionsRecorded(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)

	d := approveDecision()
	d.Decision = contracts.DecisionApproveWithRestrictions
	d.Restrictions = []string{"one replica at a time", "notify release owner"}

	w, err := f.machine.AddGovernanceDecision(context.Background(), id, d, nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.StateGovernancePending, w.CurrentState)
	assert.Equal(t, d.Restrictions, w.Decision.Restrictions)

	last := f.ledger.GetChain(id)[f.ledger.ChainLength(id)-1]
	assert.Equal(t, "restricted", last.ContextCapture.Governance.DecisionCompliance)
}

func TestAddGovernanceDecisionRolledBackWhenLedgerRefuses(t *testing.T) {
	f := newFixture(t)
	id := governancePendingWorkflow(t, f)
	ctx := context.Background()

	f.ledger.Close()
	w, err := f.machine.AddGovernanceDecision(ctx, id, approveDecision(), nil)
	require.ErrorIs(t, err, ledger.ErrLedgerClosed)
	assert.Nil(t, w)

	after, err := f.machine.GetWorkflow(id)
	require.NoError(t, err)
	assert.Nil(t, after.Decision)
	assert.Equal(t, contracts.StateGovernancePending, after.CurrentState)
}
