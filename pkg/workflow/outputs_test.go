package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
)

func analyzingWorkflow(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()
	w, err := f.machine.CreateWorkflow(ctx)
	require.NoError(t, err)
	require.NoError(t, f.machine.TransitionTo(ctx, w.WorkflowID, contracts.StateIncidentIngested))
	require.NoError(t, f.machine.TransitionTo(ctx, w.WorkflowID, contracts.StateAnalyzing))
	return w.WorkflowID
}

func TestAddAgentOutput(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)

	out, warnings, err := f.machine.AddAgentOutput(context.Background(), id, candidateFor(contracts.RoleReliability, 0.85))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, out)
	assert.Equal(t, contracts.RoleReliability, out.Role)
	assert.True(t, out.Validation.AllValid())

	chain := f.ledger.GetChain(id)
	last := chain[len(chain)-1]
	assert.Equal(t, contracts.EventAgentOutput, last.EventType)
	assert.Equal(t, "reliability", last.Actor)
	require.NotNil(t, last.ContextCapture)
	require.NotNil(t, last.ContextCapture.Output)
	assert.Equal(t, 2, last.ContextCapture.Output.EvidenceCount)
}

func TestAddAgentOutputOutsideAnalyzing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, err := f.machine.CreateWorkflow(ctx)
	require.NoError(t, err)

	_, _, err = f.machine.AddAgentOutput(ctx, w.WorkflowID, candidateFor(contracts.RoleReliability, 0.85))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongState)

	var wse *WrongStateError
	require.ErrorAs(t, err, &wse)
	assert.Equal(t, contracts.StateIdle, wse.Current)
	assert.Equal(t, contracts.StateAnalyzing, wse.Expected)
}

func TestAddAgentOutputDuplicateRole(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)
	ctx := context.Background()

	_, _, err := f.machine.AddAgentOutput(ctx, id, candidateFor(contracts.RoleSecurity, 0.8))
	require.NoError(t, err)

	_, _, err = f.machine.AddAgentOutput(ctx, id, candidateFor(contracts.RoleSecurity, 0.9))
	assert.ErrorIs(t, err, ErrDuplicateRole)

	w, err := f.machine.GetWorkflow(id)
	require.NoError(t, err)
	require.Len(t, w.Outputs, 1)
	assert.Equal(t, 0.8, w.Outputs[0].Confidence)
}

func TestAddAgentOutputRejectionStoresNothing(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)
	before := f.ledger.ChainLength(id)

	bad := candidateFor(contracts.RoleReliability, 0.85)
	bad.SkillsUsed = []string{"threat-intelligence"}

	_, _, err := f.machine.AddAgentOutput(context.Background(), id, bad)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Contains(t, ve.Errors[0], "unauthorized tags")

	w, err := f.machine.GetWorkflow(id)
	require.NoError(t, err)
	assert.Empty(t, w.Outputs)
	assert.Equal(t, before, f.ledger.ChainLength(id))
}

func TestAddAgentOutputLowConfidenceWarning(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)

	out, warnings, err := f.machine.AddAgentOutput(context.Background(), id, candidateFor(contracts.RoleCompliance, 0.2))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Low confidence level (0.2) — findings may be unreliable", warnings[0])

	// The low-confidence output is stored; warnings are advisory.
	w, err := f.machine.GetWorkflow(id)
	require.NoError(t, err)
	assert.Len(t, w.Outputs, 1)
}

func TestAnalysisCompletion(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)
	ctx := context.Background()

	complete, err := f.machine.IsAnalysisComplete(id)
	require.NoError(t, err)
	assert.False(t, complete)

	for i, role := range contracts.AnalysisRoles() {
		_, _, err := f.machine.AddAgentOutput(ctx, id, candidateFor(role, 0.8))
		require.NoError(t, err)

		complete, err = f.machine.IsAnalysisComplete(id)
		require.NoError(t, err)
		assert.Equal(t, i == len(contracts.AnalysisRoles())-1, complete)
	}

	ok, err := f.machine.CanTransitionToRCAComplete(id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCorrelateAgentOutputs(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)
	ctx := context.Background()

	_, _, err := f.machine.AddAgentOutput(ctx, id, candidateFor(contracts.RoleReliability, 0.8))
	require.NoError(t, err)

	summary, err := f.machine.CorrelateAgentOutputs(id)
	require.NoError(t, err)
	assert.True(t, summary.RoleCompletion[contracts.RoleReliability])
	assert.False(t, summary.RoleCompletion[contracts.RoleSecurity])
	assert.False(t, summary.RoleCompletion[contracts.RoleCompliance])
	assert.False(t, summary.ReadyForRCA)
	assert.Equal(t, []string{"log-analysis", "metrics-analysis"}, summary.SkillsUsed)
	require.Len(t, summary.Evidence, 1)
	assert.Equal(t, contracts.RoleReliability, summary.Evidence[0].Role)

	for _, role := range []contracts.Role{contracts.RoleSecurity, contracts.RoleCompliance} {
		_, _, err := f.machine.AddAgentOutput(ctx, id, candidateFor(role, 0.8))
		require.NoError(t, err)
	}

	summary, err = f.machine.CorrelateAgentOutputs(id)
	require.NoError(t, err)
	assert.True(t, summary.ReadyForRCA)
	assert.Len(t, summary.Evidence, 3)
}

func TestAddAgentOutputRolledBackWhenLedgerRefuses(t *testing.T) {
	f := newFixture(t)
	id := analyzingWorkflow(t, f)
	ctx := context.Background()

	f.ledger.Close()
	out, _, err := f.machine.AddAgentOutput(ctx, id, candidateFor(contracts.RoleReliability, 0.85))
	require.ErrorIs(t, err, ledger.ErrLedgerClosed)
	assert.Nil(t, out)

	after, err := f.machine.GetWorkflow(id)
	require.NoError(t, err)
	assert.Empty(t, after.Outputs)
}
