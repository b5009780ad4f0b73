package checker

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/aegis/internal/model"
)

// TermRule is one terminology rule: phrases to flag and the wording the
// style guide prefers.
type TermRule struct {
	Key       string   `yaml:"key"`
	Match     []string `yaml:"match"`
	Preferred string   `yaml:"preferred"`
	Severity  string   `yaml:"severity"`
	Reason    string   `yaml:"reason,omitempty"`
}

// termRulePack is the on-disk YAML shape.
type termRulePack struct {
	Rules []TermRule `yaml:"rules"`
}

// Terminology flags discouraged terms and phrases against a rule pack.
// The context signature is the rule key, so learning generalizes across
// every unit using the same term.
type Terminology struct {
	rules    []TermRule
	patterns []*regexp.Regexp
}

// NewTerminology builds the checker from a list of rules.
func NewTerminology(rules []TermRule) (*Terminology, error) {
	c := &Terminology{rules: rules}
	for _, r := range rules {
		if r.Key == "" || len(r.Match) == 0 {
			return nil, eris.Errorf("terminology: rule %q needs a key and at least one match", r.Key)
		}
		escaped := make([]string, len(r.Match))
		for i, m := range r.Match {
			escaped[i] = regexp.QuoteMeta(m)
		}
		p, err := regexp.Compile(`(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`)
		if err != nil {
			return nil, eris.Wrapf(err, "terminology: compile rule %s", r.Key)
		}
		c.patterns = append(c.patterns, p)
	}
	return c, nil
}

// LoadTermRules reads a YAML rule pack from disk.
func LoadTermRules(path string) ([]TermRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "terminology: read rule pack %s", path)
	}
	var pack termRulePack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, eris.Wrapf(err, "terminology: parse rule pack %s", path)
	}
	return pack.Rules, nil
}

// DefaultTermRules returns the built-in style rules used when no rule
// pack is configured.
func DefaultTermRules() []TermRule {
	return []TermRule{
		{Key: "utilize", Match: []string{"utilize", "utilizes", "utilized", "utilizing"}, Preferred: "use", Severity: "low"},
		{Key: "leverage", Match: []string{"leverage", "leverages", "leveraged", "leveraging"}, Preferred: "use", Severity: "low"},
		{Key: "etc", Match: []string{"etc", "etc."}, Preferred: "an explicit list", Severity: "medium", Reason: "requirements must be enumerable"},
		{Key: "as_appropriate", Match: []string{"as appropriate", "if appropriate"}, Preferred: "a testable condition", Severity: "medium"},
		{Key: "user_friendly", Match: []string{"user-friendly", "user friendly"}, Preferred: "a measurable usability target", Severity: "low"},
	}
}

func (*Terminology) ID() string { return "terminology" }

func (c *Terminology) Check(_ context.Context, unit model.Unit) ([]RawFinding, error) {
	var out []RawFinding
	for i, rule := range c.rules {
		loc := c.patterns[i].FindString(unit.Text)
		if loc == "" {
			continue
		}
		msg := fmt.Sprintf("discouraged term %q: prefer %s", loc, rule.Preferred)
		if rule.Reason != "" {
			msg += " (" + rule.Reason + ")"
		}
		out = append(out, RawFinding{
			Severity:         severityOrDefault(rule.Severity, model.SeverityLow),
			Message:          msg,
			Confidence:       0.9,
			ContextSignature: rule.Key,
		})
	}
	return out, nil
}

func severityOrDefault(s string, fallback model.Severity) model.Severity {
	switch model.Severity(s) {
	case model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow, model.SeverityInfo:
		return model.Severity(s)
	default:
		return fallback
	}
}
