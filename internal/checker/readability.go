package checker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/aegis/internal/model"
)

// Readability flags sentences long enough that a requirement stops being
// independently verifiable. Bands rather than exact lengths form the
// context signature so learning applies to the class of overrun, not one
// sentence.
type Readability struct {
	longWords     int
	veryLongWords int
}

// NewReadability creates the checker. Thresholds <= 0 fall back to the
// defaults of 40 and 60 words.
func NewReadability(longWords, veryLongWords int) *Readability {
	if longWords <= 0 {
		longWords = 40
	}
	if veryLongWords <= longWords {
		veryLongWords = longWords + 20
	}
	return &Readability{longWords: longWords, veryLongWords: veryLongWords}
}

func (*Readability) ID() string { return "readability" }

var sentenceSplit = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

func (c *Readability) Check(_ context.Context, unit model.Unit) ([]RawFinding, error) {
	var out []RawFinding
	for _, sentence := range sentenceSplit.Split(unit.Text, -1) {
		words := len(strings.Fields(sentence))
		if words < c.longWords {
			continue
		}
		band := fmt.Sprintf("long_sentence:%d+", c.longWords)
		sev := model.SeverityLow
		if words >= c.veryLongWords {
			band = fmt.Sprintf("long_sentence:%d+", c.veryLongWords)
			sev = model.SeverityMedium
		}
		out = append(out, RawFinding{
			Severity:         sev,
			Message:          fmt.Sprintf("sentence of %d words: split into independently verifiable statements", words),
			Confidence:       0.8,
			ContextSignature: band,
		})
	}
	return out, nil
}
