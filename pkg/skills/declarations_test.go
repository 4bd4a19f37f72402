package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

func writeDecl(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDeclarations(t *testing.T) {
	dir := t.TempDir()
	writeDecl(t, dir, "reliability.yaml", `
role: reliability
version: 1.2.0
skills:
  - metrics-analysis
  - log-analysis
constraints:
  - capability: restart
    rule: production restarts require a change ticket
`)
	writeDecl(t, dir, "security.yaml", `
role: security
version: 0.9.1
skills:
  - ioc-matching
`)
	writeDecl(t, dir, "notes.txt", "ignored")

	m, decls, err := LoadDeclarations(dir)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	tags, ok := m.Authorized(contracts.RoleReliability)
	require.True(t, ok)
	assert.Equal(t, []string{"log-analysis", "metrics-analysis"}, tags)

	invalid, err := m.Validate(contracts.RoleSecurity, []string{"ioc-matching", "log-analysis"})
	require.NoError(t, err)
	assert.Equal(t, []string{"log-analysis"}, invalid)
}

func TestLoadDeclarationsRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	writeDecl(t, dir, "bad.yaml", `
role: reliability
version: not-a-version
skills: [metrics-analysis]
`)
	_, _, err := LoadDeclarations(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}

func TestLoadDeclarationsRequiresSkills(t *testing.T) {
	dir := t.TempDir()
	writeDecl(t, dir, "empty.yaml", `
role: compliance
version: 1.0.0
skills: []
`)
	_, _, err := LoadDeclarations(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no skills")
}

func TestLoadDeclarationsEmptyDir(t *testing.T) {
	_, _, err := LoadDeclarations(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no declarations")
}

func TestCheckConstraint(t *testing.T) {
	decls := []Declaration{
		{
			Role:    "reliability",
			Version: "1.0.0",
			Skills:  []string{"deployment-history"},
			Constraints: []Constraint{
				{Capability: "restart", Rule: "requires change ticket"},
				{Capability: "rollback", Rule: "notify release owner"},
			},
		},
	}

	matched := CheckConstraint(decls, contracts.RoleReliability, "Rollback checkout to v2.13")
	require.Len(t, matched, 1)
	assert.Equal(t, "notify release owner", matched[0].Rule)

	assert.Empty(t, CheckConstraint(decls, contracts.RoleSecurity, "rollback checkout"))
	assert.Empty(t, CheckConstraint(decls, contracts.RoleReliability, "observe dashboards"))
}
