package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Scan metrics (within lookback window).
	ScansTotal     int     `json:"scans_total"`
	ScansCompleted int     `json:"scans_completed"`
	ScansPartial   int     `json:"scans_partial"`
	ScansFailed    int     `json:"scans_failed"`
	ScansRunning   int     `json:"scans_running"`
	ScanFailRate   float64 `json:"scan_fail_rate"`

	// Checker failures recorded as scan diagnostics in the window.
	CheckerFailures int `json:"checker_failures"`

	// Finding review surface, all time.
	FindingsPending    int `json:"findings_pending"`
	FindingsConfirmed  int `json:"findings_confirmed"`
	FindingsRejected   int `json:"findings_rejected"`
	FindingsSuperseded int `json:"findings_superseded"`
	FindingsArchived   int `json:"findings_archived"`
	FindingsSuppressed int `json:"findings_suppressed"`

	// Severity tally of the active, unsuppressed set.
	BySeverity map[model.Severity]int `json:"by_severity"`

	// Learner state.
	PatternsTotal      int `json:"patterns_total"`
	ActiveSuppressions int `json:"active_suppressions"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback
// window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		BySeverity:    make(map[model.Severity]int),
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	scans, err := c.store.ListScans(ctx, "", 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list scans")
	}
	for _, sc := range scans {
		if sc.StartedAt.Before(cutoff) {
			continue
		}
		snap.ScansTotal++
		switch sc.Status {
		case model.ScanCompleted:
			snap.ScansCompleted++
		case model.ScanPartial:
			snap.ScansPartial++
		case model.ScanFailed:
			snap.ScansFailed++
		case model.ScanRunning:
			snap.ScansRunning++
		}
		snap.CheckerFailures += len(sc.Diagnostics)
	}
	if snap.ScansTotal > 0 {
		snap.ScanFailRate = float64(snap.ScansFailed) / float64(snap.ScansTotal)
	}

	findings, err := c.store.ListFindings(ctx, store.FindingFilter{
		AllStatuses:       true,
		IncludeSuppressed: true,
		Limit:             100000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list findings")
	}
	for _, f := range findings {
		switch f.Status {
		case model.FindingPending:
			snap.FindingsPending++
		case model.FindingConfirmed:
			snap.FindingsConfirmed++
		case model.FindingRejected:
			snap.FindingsRejected++
		case model.FindingSuperseded:
			snap.FindingsSuperseded++
		case model.FindingArchived:
			snap.FindingsArchived++
		}
		if f.AutoSuppressed {
			snap.FindingsSuppressed++
		}
		if f.Active() && !f.AutoSuppressed {
			snap.BySeverity[f.Severity]++
		}
	}

	patterns, err := c.store.ListPatterns(ctx, 100000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list patterns")
	}
	snap.PatternsTotal = len(patterns)
	for _, p := range patterns {
		if p.SuppressionActive {
			snap.ActiveSuppressions++
		}
	}

	return snap, nil
}
