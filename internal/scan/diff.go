// Package scan orchestrates incremental review runs: diffing a document
// against its last committed snapshot, running checkers over changed
// units, and applying finding lifecycle transitions.
package scan

import (
	"sort"

	"github.com/sells-group/aegis/internal/model"
)

// Delta partitions a document's units against the previous snapshot.
type Delta struct {
	Added     []model.Unit
	Changed   []model.Unit
	Unchanged []model.Unit
	// Removed holds unit IDs present in the snapshot but absent from the
	// current document, sorted for determinism.
	Removed []string
}

// Diff classifies every unit of doc against prev, a map of unit ID to
// content fingerprint from the last committed scan. A nil prev means a
// first scan: every unit is added.
func Diff(prev map[string]string, doc *model.Document) Delta {
	var d Delta
	seen := make(map[string]bool, len(doc.Units))

	for _, u := range doc.Units {
		seen[u.ID] = true
		prevFP, ok := prev[u.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, u)
		case prevFP != u.Fingerprint:
			d.Changed = append(d.Changed, u)
		default:
			d.Unchanged = append(d.Unchanged, u)
		}
	}

	for id := range prev {
		if !seen[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Removed)
	return d
}
