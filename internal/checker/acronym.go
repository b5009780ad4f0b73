package checker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/aegis/internal/model"
)

// Acronyms flags acronyms used without a nearby expansion, e.g. "FMEA"
// appearing with no "Failure Mode and Effects Analysis (FMEA)" in the
// same unit. The acronym itself is the context signature: once reviewers
// reject findings for a project-standard acronym, the learner suppresses
// it everywhere.
type Acronyms struct {
	allow map[string]bool
}

// NewAcronyms creates the checker with an optional allowlist of acronyms
// that never need expansion (API, HTTP, ...).
func NewAcronyms(allowlist []string) *Acronyms {
	allow := make(map[string]bool, len(allowlist))
	for _, a := range allowlist {
		allow[strings.ToUpper(a)] = true
	}
	return &Acronyms{allow: allow}
}

// DefaultAcronymAllowlist covers acronyms common enough in engineering
// prose that expanding them adds noise.
func DefaultAcronymAllowlist() []string {
	return []string{"API", "CPU", "HTTP", "HTTPS", "ID", "IO", "JSON", "OK", "PDF", "RAM", "SQL", "URL", "USB", "UTC", "XML", "YAML"}
}

func (*Acronyms) ID() string { return "acronyms" }

var acronymPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,5}\b`)

func (c *Acronyms) Check(_ context.Context, unit model.Unit) ([]RawFinding, error) {
	var out []RawFinding
	seen := map[string]bool{}

	for _, acro := range acronymPattern.FindAllString(unit.Text, -1) {
		if len(acro) < 2 || c.allow[acro] || seen[acro] {
			continue
		}
		seen[acro] = true
		// Defined in this unit if it appears parenthesized after its
		// expansion, e.g. "... Analysis (FMEA)".
		if strings.Contains(unit.Text, "("+acro+")") {
			continue
		}
		out = append(out, RawFinding{
			Severity:         model.SeverityInfo,
			Message:          fmt.Sprintf("acronym %q used without expansion", acro),
			Confidence:       0.6,
			ContextSignature: acro,
		})
	}
	return out, nil
}
