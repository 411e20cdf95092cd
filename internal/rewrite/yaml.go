package rewrite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the textual form of a rule as written in rule files.
type RuleSpec struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type RulesConfig struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Load reads a yaml rule file and compiles its rules.
func Load(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse compiles the rules of a yaml document.
func Parse(data []byte) ([]*Rule, error) {
	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return Compile(cfg.Rules)
}

// Compile turns specs into rules, keeping their order. Rule names must be
// unique.
func Compile(specs []RuleSpec) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", spec.Name)
		}
		seen[spec.Name] = true
		r, err := NewRule(spec.Name, spec.Pattern, spec.Replacement)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

var defaultSpecs = []RuleSpec{
	{Name: "map-fusion", Pattern: "(map ?f (map ?g ?x))", Replacement: "(map (compose ?f ?g) ?x)"},
	{Name: "filter-fusion", Pattern: "(filter ?p (filter ?q ?x))", Replacement: "(filter (and ?p ?q) ?x)"},
	{Name: "filter-push-map", Pattern: "(filter (lift ?p) (map ?f ?x))", Replacement: "(map ?f (filter ?p ?x))"},
	{Name: "normalize-idem", Pattern: "(normalize (normalize ?x))", Replacement: "(normalize ?x)"},
	{Name: "add-comm", Pattern: "(+ ?a ?b)", Replacement: "(+ ?b ?a)"},
	{Name: "mul-comm", Pattern: "(* ?a ?b)", Replacement: "(* ?b ?a)"},
}

// DefaultSpecs returns a copy of the built-in rule set.
func DefaultSpecs() []RuleSpec {
	out := make([]RuleSpec, len(defaultSpecs))
	copy(out, defaultSpecs)
	return out
}

// DefaultRules compiles the built-in rule set.
func DefaultRules() []*Rule {
	rules, err := Compile(defaultSpecs)
	if err != nil {
		panic(err)
	}
	return rules
}
