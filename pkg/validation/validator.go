// Package validation implements the output validator/factory. A candidate
// output is checked against three contracts: JSON schema shape, the role's
// skill-authorization set, and confidence bounds. Only a fully valid
// candidate yields an AgentOutput; a failed validation yields the error list
// and no output, so "no output" and "errors present" are the same signal.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/skills"
)

// Candidate is an unvalidated specialist result as supplied by an external
// producer. Timestamp is the raw ISO-8601 string from the wire.
type Candidate struct {
	Role             string             `json:"role"`
	SkillsUsed       []string           `json:"skills_used"`
	Findings         contracts.Findings `json:"findings"`
	Confidence       float64            `json:"confidence"`
	Timestamp        string             `json:"timestamp"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	DataSources      []string           `json:"data_sources"`
}

// Result carries either the assembled output or the validation errors,
// never both. Warnings are advisory and may accompany success.
type Result struct {
	Output   *contracts.AgentOutput `json:"output,omitempty"`
	Errors   []string               `json:"errors,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

// Valid reports whether validation produced an output.
func (r Result) Valid() bool {
	return r.Output != nil && len(r.Errors) == 0
}

// lowConfidenceThreshold marks results that pass but warrant review.
const lowConfidenceThreshold = 0.3

// maxClockSkew is how far in the future a timestamp may sit before a
// clock-skew warning is attached.
const maxClockSkew = 5 * time.Minute

// hedgingPhrases trip the prose-quality warning. Findings are expected to be
// structured evidence, not first-person narrative.
var hedgingPhrases = []string{
	"i think", "i believe", "i guess", "i feel",
	"maybe", "probably", "it seems", "not sure",
}

// Validator checks candidates and assembles accepted outputs.
type Validator struct {
	matrix *skills.Matrix
	schema *jsonschema.Schema
	clock  func() time.Time
}

// New creates a Validator over the given authorization matrix.
func New(matrix *skills.Matrix) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("output.schema.json", strings.NewReader(outputSchema)); err != nil {
		return nil, fmt.Errorf("validation: adding schema resource: %w", err)
	}
	schema, err := compiler.Compile("output.schema.json")
	if err != nil {
		return nil, fmt.Errorf("validation: compiling output schema: %w", err)
	}
	return &Validator{matrix: matrix, schema: schema, clock: time.Now}, nil
}

// WithClock overrides the clock for deterministic tests.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate runs every check and, on success, assembles the immutable output
// with its validation triple and derived skills-utilization metadata.
func (v *Validator) Validate(c Candidate) Result {
	var res Result

	schemaOK := v.checkSchema(c, &res)
	skillsOK := v.checkSkills(c, &res)
	confidenceOK := v.checkConfidence(c, &res)
	ts := v.checkTimestamp(c, &res)
	v.checkFindingsProse(c, &res)

	if len(res.Errors) > 0 {
		return res
	}

	role := contracts.Role(c.Role)
	authorized, _ := v.matrix.Authorized(role)
	unique := uniqueTags(c.SkillsUsed)

	res.Output = &contracts.AgentOutput{
		Role:             role,
		SkillsUsed:       unique,
		Findings:         c.Findings,
		Confidence:       c.Confidence,
		Timestamp:        ts,
		ProcessingTimeMs: c.ProcessingTimeMs,
		DataSources:      append([]string(nil), c.DataSources...),
		Utilization: contracts.SkillsUtilization{
			TagsUsed:      len(unique),
			TagsAvailable: len(authorized),
			Rate:          v.matrix.UtilizationRate(role, c.SkillsUsed),
		},
		Validation: contracts.ValidationResult{
			SkillsValid:     skillsOK,
			ConfidenceValid: confidenceOK,
			SchemaCompliant: schemaOK,
		},
	}
	return res
}

func (v *Validator) checkSchema(c Candidate, res *Result) bool {
	raw, err := json.Marshal(c)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("schema: cannot serialize candidate: %v", err))
		return false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("schema: cannot decode candidate: %v", err))
		return false
	}
	if err := v.schema.Validate(doc); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("schema: %v", err))
		return false
	}
	return true
}

func (v *Validator) checkSkills(c Candidate, res *Result) bool {
	role := contracts.Role(c.Role)
	invalid, err := v.matrix.Validate(role, c.SkillsUsed)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return false
	}
	if len(invalid) > 0 {
		authorized, _ := v.matrix.Authorized(role)
		sort.Strings(invalid)
		res.Errors = append(res.Errors, fmt.Sprintf(
			"skills: role %q used unauthorized tags %v; authorized set is %v",
			role, invalid, authorized))
		return false
	}
	if len(c.SkillsUsed) == 0 {
		res.Warnings = append(res.Warnings, "skills: empty skill list")
	}
	if len(uniqueTags(c.SkillsUsed)) < len(c.SkillsUsed) {
		res.Warnings = append(res.Warnings, "skills: duplicate tags reported")
	}
	return true
}

func (v *Validator) checkConfidence(c Candidate, res *Result) bool {
	if math.IsNaN(c.Confidence) || math.IsInf(c.Confidence, 0) {
		res.Errors = append(res.Errors, fmt.Sprintf("confidence: %v is not a finite number", c.Confidence))
		return false
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		res.Errors = append(res.Errors, fmt.Sprintf("confidence: %v outside [0,1]", c.Confidence))
		return false
	}
	if c.Confidence < lowConfidenceThreshold {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Low confidence level (%v) — findings may be unreliable", c.Confidence))
	}
	return true
}

// checkTimestamp parses the ISO-8601 timestamp. A timestamp more than five
// minutes in the future produces a clock-skew warning, not a rejection.
func (v *Validator) checkTimestamp(c Candidate, res *Result) time.Time {
	ts, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("timestamp: %q is not ISO-8601: %v", c.Timestamp, err))
		return time.Time{}
	}
	if ts.After(v.clock().Add(maxClockSkew)) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"timestamp: %s is more than %s in the future (clock skew?)", c.Timestamp, maxClockSkew))
	}
	if c.ProcessingTimeMs >= 0 && c.ProcessingTimeMs < 10 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"processing time %dms is unusually short", c.ProcessingTimeMs))
	}
	return ts
}

// checkFindingsProse flags first-person or hedging phrasing in the summary.
// Quality warning only: the core never rejects on prose.
func (v *Validator) checkFindingsProse(c Candidate, res *Result) {
	text := strings.ToLower(norm.NFC.String(c.Findings.Summary))
	for _, phrase := range hedgingPhrases {
		if strings.Contains(text, phrase) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"findings: summary contains hedging phrase %q; prefer structured evidence", phrase))
		}
	}
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
