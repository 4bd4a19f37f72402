package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/governance"
	"github.com/veritas-labs/sentinel/core/pkg/workflow"
)

// CoordinateGovernanceGate opens (or returns) the governance request for a
// workflow in GOVERNANCE_PENDING. The incident context is assembled by
// purely structural means: summaries are collected, confidences averaged,
// correlations counted, and frequent terms extracted. extra carries
// caller-supplied context the core cannot derive, such as the affected
// service list and business-hours flag.
func (o *Orchestrator) CoordinateGovernanceGate(ctx context.Context, workflowID string, extra GateContext) (*governance.Request, error) {
	w, err := o.machine.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if w.CurrentState != contracts.StateGovernancePending {
		return nil, &workflow.WrongStateError{
			WorkflowID: workflowID,
			Current:    w.CurrentState,
			Expected:   contracts.StateGovernancePending,
		}
	}

	if existing, ok := o.gate.PendingRequest(workflowID); ok {
		return existing, nil
	}

	incident := assembleIncidentContext(w, extra)
	action := recommendAction(w)
	return o.gate.CreateRequest(ctx, workflowID, action, incident)
}

// GateContext is caller-supplied context for governance assembly.
type GateContext struct {
	AffectedServices []string
	BusinessHours    *bool
}

func assembleIncidentContext(w *contracts.Workflow, extra GateContext) governance.IncidentContext {
	var (
		summaries    []string
		confidence   float64
		correlations int
		evidence     []string
	)
	for _, o := range w.Outputs {
		summaries = append(summaries, fmt.Sprintf("[%s] %s", o.Role, o.Findings.Summary))
		confidence += o.Confidence
		correlations += len(o.Findings.Correlations)
		evidence = append(evidence, o.Findings.Evidence...)
	}
	avg := 0.0
	if len(w.Outputs) > 0 {
		avg = math.Round(confidence/float64(len(w.Outputs))*100) / 100
	}

	terms := frequentTerms(evidence, 5)
	summary := fmt.Sprintf("%d specialist findings; recurring terms: %s",
		len(summaries), strings.Join(terms, ", "))
	if len(terms) == 0 {
		summary = fmt.Sprintf("%d specialist findings", len(summaries))
	}

	return governance.IncidentContext{
		Summary:           summary,
		AffectedServices:  extra.AffectedServices,
		FindingSummaries:  summaries,
		FrequentTerms:     terms,
		AverageConfidence: avg,
		CorrelationCount:  correlations,
		BusinessHours:     extra.BusinessHours,
	}
}

// stopWords are excluded from frequent-term extraction.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "with": {}, "from": {}, "by": {},
	"is": {}, "was": {}, "are": {}, "were": {}, "has": {}, "have": {},
}

// frequentTerms extracts the top-n recurring words across evidence lines.
// A term must appear at least twice to count as recurring.
func frequentTerms(evidence []string, n int) []string {
	counts := make(map[string]int)
	for _, line := range evidence {
		for _, word := range strings.Fields(strings.ToLower(line)) {
			word = strings.Trim(word, ".,;:()[]\"'")
			if len(word) < 3 {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			counts[word]++
		}
	}
	type freq struct {
		word  string
		count int
	}
	var ranked []freq
	for w, c := range counts {
		if c >= 2 {
			ranked = append(ranked, freq{w, c})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, f := range ranked {
		out[i] = f.word
	}
	return out
}

// actionHints maps coarse keywords in recommendations and evidence to a
// recommended action. Coordination-level matching only; the orchestrator
// proposes a label, the governance gate and a human judge it.
var actionHints = []struct {
	keyword string
	action  string
}{
	{"deploy", "rollback the most recent deployment"},
	{"rollback", "rollback the most recent deployment"},
	{"memory", "restart the affected service"},
	{"leak", "restart the affected service"},
	{"certificate", "rotate the affected certificate"},
	{"credential", "rotate the affected credentials"},
	{"capacity", "scale out the affected service"},
	{"saturation", "scale out the affected service"},
}

func recommendAction(w *contracts.Workflow) string {
	var text strings.Builder
	for _, o := range w.Outputs {
		for _, r := range o.Findings.Recommendations {
			text.WriteString(strings.ToLower(r))
			text.WriteByte(' ')
		}
		for _, e := range o.Findings.Evidence {
			text.WriteString(strings.ToLower(e))
			text.WriteByte(' ')
		}
	}
	corpus := text.String()
	for _, hint := range actionHints {
		if strings.Contains(corpus, hint.keyword) {
			return hint.action
		}
	}
	return "isolate the affected component and continue investigation"
}
