package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// Declaration is the externally supplied capability declaration for one role.
// The core consumes only the name→tag-set lookup and the constraint check;
// authoring and distribution of these files belongs to the provider.
type Declaration struct {
	Role        string       `yaml:"role" json:"role"`
	Version     string       `yaml:"version" json:"version"`
	Skills      []string     `yaml:"skills" json:"skills"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// Constraint is a textual restriction on how a role may use a capability.
type Constraint struct {
	Capability string `yaml:"capability" json:"capability"`
	Rule       string `yaml:"rule" json:"rule"`
}

// LoadDeclarations reads every *.yaml file in dir and builds a Matrix from
// the declared tag sets. Declaration versions must be valid semver.
func LoadDeclarations(dir string) (*Matrix, []Declaration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("skills: reading declarations dir: %w", err)
	}

	m := &Matrix{byRole: make(map[contracts.Role]map[string]struct{})}
	var decls []Declaration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		decl, err := loadDeclaration(path)
		if err != nil {
			return nil, nil, err
		}
		m.register(contracts.Role(decl.Role), decl.Skills...)
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil, nil, fmt.Errorf("skills: no declarations found in %s", dir)
	}
	return m, decls, nil
}

func loadDeclaration(path string) (Declaration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Declaration{}, fmt.Errorf("skills: reading %s: %w", path, err)
	}
	var decl Declaration
	if err := yaml.Unmarshal(raw, &decl); err != nil {
		return Declaration{}, fmt.Errorf("skills: parsing %s: %w", path, err)
	}
	if decl.Role == "" {
		return Declaration{}, fmt.Errorf("skills: %s: missing role", path)
	}
	if len(decl.Skills) == 0 {
		return Declaration{}, fmt.Errorf("skills: %s: declaration for %q has no skills", path, decl.Role)
	}
	if _, err := semver.NewVersion(decl.Version); err != nil {
		return Declaration{}, fmt.Errorf("skills: %s: invalid version %q: %w", path, decl.Version, err)
	}
	return decl, nil
}

// CheckConstraint reports whether any declared constraint matches the given
// action text for the role. Matching is a plain case-insensitive substring
// check; the declaration format owns anything richer.
func CheckConstraint(decls []Declaration, role contracts.Role, action string) (matched []Constraint) {
	lower := strings.ToLower(action)
	for _, d := range decls {
		if contracts.Role(d.Role) != role {
			continue
		}
		for _, c := range d.Constraints {
			if c.Capability != "" && strings.Contains(lower, strings.ToLower(c.Capability)) {
				matched = append(matched, c)
			}
		}
	}
	return matched
}
