// Package skills implements the skill-authorization matrix: the static
// mapping from specialist role to the capability tags that role may report
// having used. The matrix is a pure lookup; it holds no workflow state.
package skills

import (
	"fmt"
	"sort"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// Matrix maps roles to their authorized capability-tag sets.
type Matrix struct {
	byRole map[contracts.Role]map[string]struct{}
}

// NewMatrix returns the default authorization matrix for the three
// analysis roles.
func NewMatrix() *Matrix {
	m := &Matrix{byRole: make(map[contracts.Role]map[string]struct{})}
	m.register(contracts.RoleReliability,
		"metrics-analysis",
		"log-analysis",
		"distributed-tracing",
		"deployment-history",
		"infrastructure-topology",
		"slo-evaluation",
	)
	m.register(contracts.RoleSecurity,
		"threat-intelligence",
		"vulnerability-scan",
		"access-log-analysis",
		"ioc-matching",
		"auth-audit",
		"network-forensics",
	)
	m.register(contracts.RoleCompliance,
		"policy-lookup",
		"regulatory-mapping",
		"data-classification",
		"retention-audit",
		"change-control-review",
	)
	return m
}

func (m *Matrix) register(role contracts.Role, tags ...string) {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	m.byRole[role] = set
}

// Authorized returns the sorted authorized tag set for a role.
// ok is false for unknown roles.
func (m *Matrix) Authorized(role contracts.Role) ([]string, bool) {
	set, ok := m.byRole[role]
	if !ok {
		return nil, false
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, true
}

// AuthorizedCount returns the size of a role's authorized set.
func (m *Matrix) AuthorizedCount(role contracts.Role) int {
	return len(m.byRole[role])
}

// Validate checks that every used tag belongs to the role's authorized set.
// It returns the offending tags; the result is empty iff the set is valid.
func (m *Matrix) Validate(role contracts.Role, used []string) (invalid []string, err error) {
	set, ok := m.byRole[role]
	if !ok {
		return nil, fmt.Errorf("skills: unknown role %q", role)
	}
	for _, t := range used {
		if _, authorized := set[t]; !authorized {
			invalid = append(invalid, t)
		}
	}
	return invalid, nil
}

// UtilizationRate returns |unique used| / |authorized| for a role, bounded
// to [0,1]. Duplicate tags are counted once.
func (m *Matrix) UtilizationRate(role contracts.Role, used []string) float64 {
	set, ok := m.byRole[role]
	if !ok || len(set) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(used))
	for _, t := range used {
		unique[t] = struct{}{}
	}
	rate := float64(len(unique)) / float64(len(set))
	if rate > 1 {
		rate = 1
	}
	return rate
}

// Roles returns the roles known to the matrix, sorted.
func (m *Matrix) Roles() []contracts.Role {
	roles := make([]contracts.Role, 0, len(m.byRole))
	for r := range m.byRole {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
