package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "aegis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	doc := &model.Document{
		ID: "doc-1", Title: "Guide", Version: "v1",
		Units: []model.Unit{{ID: "intro", Text: "Hello.", Fingerprint: "fp-1"}},
	}

	now := time.Now().UTC()
	scan := &model.Scan{ID: uuid.New().String(), DocumentID: "doc-1", Status: model.ScanRunning, StartedAt: now}
	require.NoError(t, st.CreateScan(ctx, scan))
	scan.Status = model.ScanCompleted
	scan.Snapshot = map[string]string{"intro": "fp-1"}
	scan.Diagnostics = []model.CheckerFailure{
		{CheckerID: "statement_quality", UnitID: "intro", Error: "timeout"},
	}

	pending := model.Finding{
		ID: uuid.New().String(), DocumentID: "doc-1", UnitID: "intro",
		CheckerID: "terminology", Severity: model.SeverityLow, Message: "m",
		Status: model.FindingPending, ContextSignature: "utilize",
		CreatedAt: now, UpdatedAt: now,
	}
	suppressed := model.Finding{
		ID: uuid.New().String(), DocumentID: "doc-1", UnitID: "intro",
		CheckerID: "terminology", Severity: model.SeverityHigh, Message: "m",
		Status: model.FindingPending, ContextSignature: "leverage",
		AutoSuppressed: true, CreatedAt: now, UpdatedAt: now,
	}
	toReject := model.Finding{
		ID: uuid.New().String(), DocumentID: "doc-1", UnitID: "intro",
		CheckerID: "passive_voice", Severity: model.SeverityLow, Message: "m",
		Status: model.FindingPending, ContextSignature: "was+built",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CommitScan(ctx, store.ScanCommit{
		Scan: scan, Document: doc,
		NewFindings: []model.Finding{pending, suppressed, toReject},
	}))

	_, err = st.AdjudicateFinding(ctx, toReject.ID, model.DecisionRejected, "dana", learner.DefaultPolicy())
	require.NoError(t, err)

	failed := &model.Scan{ID: uuid.New().String(), DocumentID: "doc-1", Status: model.ScanRunning, StartedAt: now}
	require.NoError(t, st.CreateScan(ctx, failed))
	require.NoError(t, st.MarkScanFailed(ctx, failed.ID, "boom"))

	return st
}

func TestCollectorCollect(t *testing.T) {
	st := seedStore(t)
	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.ScansTotal)
	assert.Equal(t, 1, snap.ScansCompleted)
	assert.Equal(t, 1, snap.ScansFailed)
	assert.InDelta(t, 0.5, snap.ScanFailRate, 0.001)
	assert.Equal(t, 1, snap.CheckerFailures)

	assert.Equal(t, 2, snap.FindingsPending)
	assert.Equal(t, 1, snap.FindingsRejected)
	assert.Equal(t, 1, snap.FindingsSuppressed)

	// Active unsuppressed set: the pending terminology finding (low) and
	// the rejected passive_voice one (still active).
	assert.Equal(t, 2, snap.BySeverity[model.SeverityLow])
	assert.Zero(t, snap.BySeverity[model.SeverityHigh])

	assert.Equal(t, 1, snap.PatternsTotal)
	assert.Zero(t, snap.ActiveSuppressions)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollectorEmptyStore(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "aegis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.ScansTotal)
	assert.Zero(t, snap.ScanFailRate)
	assert.Zero(t, snap.FindingsPending)
}
