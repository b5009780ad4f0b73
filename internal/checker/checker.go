// Package checker defines the analyzer contract the scan pipeline runs
// against changed units, plus the reference checkers that ship with the
// binary. Checkers are pure functions over unit text: no shared mutable
// state, safe to run in parallel.
package checker

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aegis/internal/model"
)

// RawFinding is what a checker emits for one unit, before the learner
// annotates it and the orchestrator assigns identity and lifecycle state.
type RawFinding struct {
	Severity   model.Severity `json:"severity"`
	Message    string         `json:"message"`
	Confidence float64        `json:"confidence"`

	// ContextSignature is a normalized key for the class of match (the
	// phrase class, rule key, acronym, ...), not the literal unit text.
	// Adjudication learning is keyed on it, so it must generalize across
	// units.
	ContextSignature string `json:"context_signature"`
}

// Checker analyzes one unit's text. Implementations must be
// side-effect-free and must tolerate arbitrary input text.
type Checker interface {
	ID() string
	Check(ctx context.Context, unit model.Unit) ([]RawFinding, error)
}

// Registry holds the set of registered checkers. Registration happens at
// startup; lookups during scans are read-only.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Checker
}

// NewRegistry creates an empty checker registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Checker)}
}

// Register adds a checker. Duplicate IDs are an error.
func (r *Registry) Register(c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID()]; ok {
		return eris.Errorf("checker: duplicate id %q", c.ID())
	}
	r.byID[c.ID()] = c
	return nil
}

// Checkers returns all registered checkers sorted by ID for
// deterministic invocation order.
func (r *Registry) Checkers() []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Checker, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered checkers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Invoke runs one checker against one unit, converting panics into
// errors so a misbehaving checker cannot take down the scan worker.
func Invoke(ctx context.Context, c Checker, unit model.Unit) (findings []RawFinding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = eris.Errorf("checker %s: panic on unit %s: %v", c.ID(), unit.ID, r)
		}
	}()
	return c.Check(ctx, unit)
}
