package contracts

import "time"

// Role identifies one of the fixed specialist analysis participants.
type Role string

const (
	RoleReliability Role = "reliability"
	RoleSecurity    Role = "security"
	RoleCompliance  Role = "compliance"
)

// AnalysisRoles returns the three roles that must each contribute exactly
// one accepted output before a workflow can leave ANALYZING.
func AnalysisRoles() []Role {
	return []Role{RoleReliability, RoleSecurity, RoleCompliance}
}

// Findings is the structured analysis record a specialist reports.
// The core transports and validates findings; it never interprets them.
type Findings struct {
	Summary         string   `json:"summary"`
	Evidence        []string `json:"evidence"`
	Correlations    []string `json:"correlations"`
	Recommendations []string `json:"recommendations,omitempty"`
}

func (f Findings) clone() Findings {
	cp := f
	cp.Evidence = append([]string(nil), f.Evidence...)
	cp.Correlations = append([]string(nil), f.Correlations...)
	cp.Recommendations = append([]string(nil), f.Recommendations...)
	return cp
}

// SkillsUtilization is derived at validation time from the role's
// authorized capability set.
type SkillsUtilization struct {
	TagsUsed      int     `json:"tags_used"`
	TagsAvailable int     `json:"tags_available"`
	Rate          float64 `json:"rate"` // tags_used / tags_available, in [0,1]
}

// ValidationResult is the triple every accepted output carries.
type ValidationResult struct {
	SkillsValid     bool `json:"skills_valid"`
	ConfidenceValid bool `json:"confidence_valid"`
	SchemaCompliant bool `json:"schema_compliant"`
}

// AllValid reports whether every validation dimension passed.
func (v ValidationResult) AllValid() bool {
	return v.SkillsValid && v.ConfidenceValid && v.SchemaCompliant
}

// AgentOutput is a specialist's accepted analysis result. Immutable once
// accepted; rejected candidates are never stored.
type AgentOutput struct {
	Role             Role              `json:"role"`
	SkillsUsed       []string          `json:"skills_used"`
	Findings         Findings          `json:"findings"`
	Confidence       float64           `json:"confidence"`
	Timestamp        time.Time         `json:"timestamp"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	DataSources      []string          `json:"data_sources"`
	Utilization      SkillsUtilization `json:"skills_utilization"`
	Validation       ValidationResult  `json:"validation"`
}
