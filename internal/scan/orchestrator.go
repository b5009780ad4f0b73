package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/aegis/internal/checker"
	"github.com/sells-group/aegis/internal/fingerprint"
	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

// Options tunes a scan run.
type Options struct {
	// Workers bounds the number of units checked concurrently.
	Workers int
	// Budget is the wall-clock limit for the checking phase. Zero means
	// no limit. When the budget expires, units not yet fully checked are
	// left for the next scan and the scan commits as partial.
	Budget time.Duration
}

// DefaultOptions returns the stock scan tuning.
func DefaultOptions() Options {
	return Options{Workers: 4}
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Orchestrator runs incremental scans against a store-backed document.
type Orchestrator struct {
	store    store.Store
	registry *checker.Registry
	policy   learner.Policy
	opts     Options
}

// NewOrchestrator wires a scan orchestrator.
func NewOrchestrator(st store.Store, reg *checker.Registry, policy learner.Policy, opts Options) *Orchestrator {
	return &Orchestrator{store: st, registry: reg, policy: policy, opts: opts.normalized()}
}

// Run executes one scan of doc under the given scan ID. Unit order and
// checker order are deterministic, so re-running an identical document
// against an identical store state yields the same findings.
//
// The scan commits atomically: either the full result set (completed)
// or the processed subset (partial, on budget expiry) lands in one
// transaction. Checker errors never abort the scan; they are recorded
// as diagnostics and the unit's other checkers still run.
func (o *Orchestrator) Run(ctx context.Context, doc *model.Document, scanID string) (*model.Scan, error) {
	log := zap.L().With(zap.String("document_id", doc.ID), zap.String("scan_id", scanID))

	for i := range doc.Units {
		if doc.Units[i].Fingerprint == "" {
			doc.Units[i].Fingerprint = fingerprint.Fingerprint(doc.Units[i].Text)
		}
	}

	var prev map[string]string
	latest, err := o.store.LatestSnapshot(ctx, doc.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// first scan of this document
	case err != nil:
		return nil, eris.Wrap(err, "scan: load previous snapshot")
	default:
		prev = latest.Snapshot
	}

	delta := Diff(prev, doc)
	log.Info("scan diff computed",
		zap.Int("added", len(delta.Added)),
		zap.Int("changed", len(delta.Changed)),
		zap.Int("unchanged", len(delta.Unchanged)),
		zap.Int("removed", len(delta.Removed)))

	scan := &model.Scan{
		ID:         scanID,
		DocumentID: doc.ID,
		Status:     model.ScanRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateScan(ctx, scan); err != nil {
		return nil, eris.Wrap(err, "scan: create scan record")
	}

	result, err := o.check(ctx, scan, delta)
	if err != nil {
		return nil, o.fail(ctx, log, scan, err)
	}

	activeByUnit, err := o.store.ActiveFindings(ctx, doc.ID)
	if err != nil {
		return nil, o.fail(ctx, log, scan, eris.Wrap(err, "scan: load active findings"))
	}

	// Changed units supersede all their prior active findings; the fresh
	// run re-emits anything still present. Unprocessed changed units keep
	// theirs until a later scan reaches them.
	var superseded []string
	for _, u := range delta.Changed {
		if !result.processed[u.ID] {
			continue
		}
		for _, f := range activeByUnit[u.ID] {
			superseded = append(superseded, f.ID)
		}
	}

	var archived []string
	for _, id := range delta.Removed {
		for _, f := range activeByUnit[id] {
			archived = append(archived, f.ID)
		}
	}

	suppressions, err := o.store.ActiveSuppressions(ctx)
	if err != nil {
		return nil, o.fail(ctx, log, scan, eris.Wrap(err, "scan: load suppressions"))
	}
	suppressed := learner.Annotate(result.findings, suppressions)

	scan.Snapshot = nextSnapshot(prev, delta, result.processed)
	scan.Diagnostics = result.diagnostics
	scan.Stats = model.ScanStats{
		UnitsTotal:     len(doc.Units),
		UnitsAdded:     len(delta.Added),
		UnitsChanged:   len(delta.Changed),
		UnitsUnchanged: len(delta.Unchanged),
		UnitsRemoved:   len(delta.Removed),
		UnitsProcessed: len(result.processed),
		FindingsNew:    len(result.findings),
		Suppressed:     suppressed,
		Superseded:     len(superseded),
		Archived:       len(archived),
	}
	scan.Status = model.ScanCompleted
	if len(result.processed) < len(delta.Added)+len(delta.Changed) {
		scan.Status = model.ScanPartial
	}

	if err := o.store.CommitScan(ctx, store.ScanCommit{
		Scan:           scan,
		Document:       doc,
		NewFindings:    result.findings,
		SupersededIDs:  superseded,
		ArchivedIDs:    archived,
		RemovedUnitIDs: delta.Removed,
	}); err != nil {
		return nil, o.fail(ctx, log, scan, eris.Wrap(err, "scan: commit"))
	}

	log.Info("scan committed",
		zap.String("status", string(scan.Status)),
		zap.Int("findings_new", scan.Stats.FindingsNew),
		zap.Int("suppressed", scan.Stats.Suppressed),
		zap.Int("superseded", scan.Stats.Superseded),
		zap.Int("archived", scan.Stats.Archived),
		zap.Int("checker_failures", len(scan.Diagnostics)))
	return scan, nil
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, scan *model.Scan, cause error) error {
	// The failure status must land even when ctx itself was canceled.
	if err := o.store.MarkScanFailed(context.WithoutCancel(ctx), scan.ID, cause.Error()); err != nil {
		log.Error("mark scan failed", zap.Error(err))
	}
	return cause
}

type checkResult struct {
	findings    []model.Finding
	diagnostics []model.CheckerFailure
	processed   map[string]bool
}

// check runs every registered checker over each added or changed unit
// under the worker limit and optional wall-clock budget. A unit counts
// as processed only when every checker had its chance at it; units
// interrupted by budget expiry contribute nothing.
func (o *Orchestrator) check(ctx context.Context, scan *model.Scan, delta Delta) (*checkResult, error) {
	runCtx := ctx
	if o.opts.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.Budget)
		defer cancel()
	}

	units := make([]model.Unit, 0, len(delta.Added)+len(delta.Changed))
	units = append(units, delta.Added...)
	units = append(units, delta.Changed...)
	checkers := o.registry.Checkers()

	result := &checkResult{processed: make(map[string]bool, len(units))}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, u := range units {
		u := u
		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}

			var unitFindings []model.Finding
			var unitDiags []model.CheckerFailure
			now := time.Now().UTC()

			for _, c := range checkers {
				raws, err := checker.Invoke(runCtx, c, u)
				if err != nil {
					if runCtx.Err() != nil {
						// budget or caller cancellation mid-unit: discard
						// partial results so the unit is retried next scan
						return nil
					}
					unitDiags = append(unitDiags, model.CheckerFailure{
						CheckerID: c.ID(), UnitID: u.ID, Error: err.Error(),
					})
					continue
				}
				for _, raw := range raws {
					unitFindings = append(unitFindings, model.Finding{
						ID:                    uuid.New().String(),
						DocumentID:            scan.DocumentID,
						UnitID:                u.ID,
						CheckerID:             c.ID(),
						Severity:              raw.Severity,
						Message:               raw.Message,
						Confidence:            raw.Confidence,
						Status:                model.FindingPending,
						ContextSignature:      raw.ContextSignature,
						DetectedAtFingerprint: u.Fingerprint,
						DetectedInScan:        scan.ID,
						CreatedAt:             now,
						UpdatedAt:             now,
					})
				}
			}
			if runCtx.Err() != nil {
				return nil
			}

			mu.Lock()
			result.processed[u.ID] = true
			result.findings = append(result.findings, unitFindings...)
			result.diagnostics = append(result.diagnostics, unitDiags...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Caller cancellation fails the scan; budget expiry commits a
	// partial one.
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "scan: canceled")
	}
	return result, nil
}

// nextSnapshot builds the fingerprint map the next scan diffs against.
// Processed units record their new fingerprint. Changed units that ran
// out of budget keep the previous fingerprint so the change is
// re-detected; added units that ran out of budget stay absent for the
// same reason.
func nextSnapshot(prev map[string]string, delta Delta, processed map[string]bool) map[string]string {
	snap := make(map[string]string, len(delta.Added)+len(delta.Changed)+len(delta.Unchanged))
	for _, u := range delta.Unchanged {
		snap[u.ID] = u.Fingerprint
	}
	for _, u := range delta.Added {
		if processed[u.ID] {
			snap[u.ID] = u.Fingerprint
		}
	}
	for _, u := range delta.Changed {
		if processed[u.ID] {
			snap[u.ID] = u.Fingerprint
		} else {
			snap[u.ID] = prev[u.ID]
		}
	}
	return snap
}
