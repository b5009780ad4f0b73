package checker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/aegis/internal/model"
)

// PassiveVoice flags passive constructions (auxiliary + past participle)
// in requirement prose, where active voice keeps the responsible actor
// explicit.
type PassiveVoice struct{}

// NewPassiveVoice creates the passive voice checker.
func NewPassiveVoice() *PassiveVoice {
	return &PassiveVoice{}
}

func (*PassiveVoice) ID() string { return "passive_voice" }

// passivePattern matches an auxiliary verb followed by a past participle,
// allowing one adverb in between ("is automatically generated").
var passivePattern = regexp.MustCompile(
	`(?i)\b(is|are|was|were|be|been|being)\s+(?:\w+ly\s+)?(\w+(?:ed|en))\b`,
)

// auxWordPattern pairs an auxiliary with the following word for the
// irregular participle lookup.
var auxWordPattern = regexp.MustCompile(`(?i)\b(is|are|was|were|be|been|being)\s+(\w+)\b`)

// irregularParticiples catches common participles the -ed/-en suffix
// rule misses.
var irregularParticiples = map[string]bool{
	"built": true, "done": true, "held": true, "kept": true, "made": true,
	"met": true, "read": true, "run": true, "sent": true, "set": true,
	"shown": true, "told": true, "understood": true, "written": true,
}

// falseParticiples are -ed/-en words that are usually adjectives or
// nouns in technical prose, not passive constructions.
var falseParticiples = map[string]bool{
	"broken": true, "golden": true, "green": true, "hidden": true,
	"open": true, "red": true, "often": true, "even": true, "then": true,
	"when": true, "wooden": true,
}

func (c *PassiveVoice) Check(_ context.Context, unit model.Unit) ([]RawFinding, error) {
	var out []RawFinding
	seen := map[string]bool{}

	emit := func(aux, participle string) {
		sig := strings.ToLower(aux) + "+" + strings.ToLower(participle)
		if seen[sig] {
			return
		}
		seen[sig] = true
		out = append(out, RawFinding{
			Severity:         model.SeverityLow,
			Message:          fmt.Sprintf("passive construction %q: name the actor responsible", aux+" "+participle),
			Confidence:       0.7,
			ContextSignature: sig,
		})
	}

	for _, m := range passivePattern.FindAllStringSubmatch(unit.Text, -1) {
		participle := strings.ToLower(m[2])
		if falseParticiples[participle] {
			continue
		}
		emit(m[1], m[2])
	}

	for _, m := range auxWordPattern.FindAllStringSubmatch(unit.Text, -1) {
		if irregularParticiples[strings.ToLower(m[2])] {
			emit(m[1], m[2])
		}
	}

	return out, nil
}
