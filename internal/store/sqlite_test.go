package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "aegis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testDocument() *model.Document {
	return &model.Document{
		ID:      "doc-1",
		Title:   "Operations Runbook",
		Version: "v3",
		Units: []model.Unit{
			{ID: "intro", Text: "The system was designed for growth.", Fingerprint: "fp-intro-1"},
			{ID: "setup", Text: "Utilize the installer.", Fingerprint: "fp-setup-1"},
		},
	}
}

func newScan(docID string) *model.Scan {
	return &model.Scan{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Status:     model.ScanRunning,
		StartedAt:  time.Now().UTC(),
	}
}

func newFinding(scanID, unitID, checkerID, sig string) model.Finding {
	now := time.Now().UTC()
	return model.Finding{
		ID:                    uuid.New().String(),
		DocumentID:            "doc-1",
		UnitID:                unitID,
		CheckerID:             checkerID,
		Severity:              model.SeverityLow,
		Message:               "issue detected",
		Confidence:            0.9,
		Status:                model.FindingPending,
		ContextSignature:      sig,
		DetectedAtFingerprint: "fp-" + unitID + "-1",
		DetectedInScan:        scanID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func commitTestScan(t *testing.T, s *SQLiteStore, doc *model.Document, findings ...model.Finding) *model.Scan {
	t.Helper()
	ctx := context.Background()
	scan := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, scan))

	scan.Status = model.ScanCompleted
	scan.Snapshot = map[string]string{}
	for _, u := range doc.Units {
		scan.Snapshot[u.ID] = u.Fingerprint
	}
	scan.Stats = model.ScanStats{UnitsTotal: len(doc.Units), FindingsNew: len(findings)}

	require.NoError(t, s.CommitScan(ctx, ScanCommit{
		Scan:        scan,
		Document:    doc,
		NewFindings: findings,
	}))
	return scan
}

func TestSQLiteCommitScanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	scan := commitTestScan(t, s, doc,
		newFinding("", "intro", "passive_voice", "was+designed"),
		newFinding("", "setup", "terminology", "utilize"),
	)

	got, err := s.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, got.Status)
	assert.Equal(t, "fp-intro-1", got.Snapshot["intro"])
	assert.Equal(t, 2, got.Stats.FindingsNew)
	require.NotNil(t, got.FinishedAt)

	stored, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Operations Runbook", stored.Title)
	require.Len(t, stored.Units, 2)
	assert.Equal(t, "intro", stored.Units[0].ID)

	findings, err := s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestSQLiteGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteLatestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	_, err := s.LatestSnapshot(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	first := commitTestScan(t, s, doc)
	latest, err := s.LatestSnapshot(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	// Failed scans never become the diff base.
	failed := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, failed))
	require.NoError(t, s.MarkScanFailed(ctx, failed.ID, "checker host unreachable"))

	latest, err = s.LatestSnapshot(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	// Partial scans do.
	partial := newScan(doc.ID)
	partial.StartedAt = first.StartedAt.Add(time.Second)
	require.NoError(t, s.CreateScan(ctx, partial))
	partial.Status = model.ScanPartial
	partial.Snapshot = map[string]string{"intro": "fp-intro-2"}
	require.NoError(t, s.CommitScan(ctx, ScanCommit{Scan: partial, Document: doc}))

	latest, err = s.LatestSnapshot(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, partial.ID, latest.ID)
	assert.Equal(t, model.ScanPartial, latest.Status)
}

func TestSQLiteMarkScanFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scan := newScan("doc-1")
	require.NoError(t, s.CreateScan(ctx, scan))
	require.NoError(t, s.MarkScanFailed(ctx, scan.ID, "boom"))

	got, err := s.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, s.MarkScanFailed(ctx, "missing", "x"), ErrNotFound)
}

func TestSQLiteSupersedeAndArchive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	f1 := newFinding("", "intro", "passive_voice", "was+designed")
	f2 := newFinding("", "setup", "terminology", "utilize")
	commitTestScan(t, s, doc, f1, f2)

	// Second scan: intro changed (supersede f1), setup removed (archive f2).
	doc2 := &model.Document{
		ID: doc.ID, Title: doc.Title, Version: "v4",
		Units: []model.Unit{{ID: "intro", Text: "We designed the system.", Fingerprint: "fp-intro-2"}},
	}
	scan2 := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, scan2))
	scan2.Status = model.ScanCompleted
	scan2.Snapshot = map[string]string{"intro": "fp-intro-2"}
	require.NoError(t, s.CommitScan(ctx, ScanCommit{
		Scan:           scan2,
		Document:       doc2,
		SupersededIDs:  []string{f1.ID},
		ArchivedIDs:    []string{f2.ID},
		RemovedUnitIDs: []string{"setup"},
	}))

	got1, err := s.GetFinding(ctx, f1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FindingSuperseded, got1.Status)

	got2, err := s.GetFinding(ctx, f2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FindingArchived, got2.Status)

	events, err := s.ListFindingEvents(ctx, f1.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.FindingPending, events[0].From)
	assert.Equal(t, model.FindingSuperseded, events[0].To)

	// Removed unit no longer appears on the document.
	stored, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored.Units, 1)
	assert.Equal(t, "intro", stored.Units[0].ID)
}

func TestSQLiteSupersedeSkipsTerminalFindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	f := newFinding("", "intro", "passive_voice", "was+designed")
	commitTestScan(t, s, doc, f)

	_, err := s.AdjudicateFinding(ctx, f.ID, model.DecisionRejected, "dana", learner.DefaultPolicy())
	require.NoError(t, err)
	got, err := s.GetFinding(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, model.FindingRejected, got.Status)

	// Rejected is still active, so supersession applies.
	scan2 := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, scan2))
	scan2.Status = model.ScanCompleted
	require.NoError(t, s.CommitScan(ctx, ScanCommit{
		Scan: scan2, Document: doc, SupersededIDs: []string{f.ID},
	}))
	got, err = s.GetFinding(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FindingSuperseded, got.Status)

	// A second supersession of the now-terminal finding is a no-op.
	scan3 := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, scan3))
	scan3.Status = model.ScanCompleted
	require.NoError(t, s.CommitScan(ctx, ScanCommit{
		Scan: scan3, Document: doc, SupersededIDs: []string{f.ID},
	}))
	events, err := s.ListFindingEvents(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2) // reject + one supersede, no duplicate
}

func TestSQLiteAdjudicateFinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	f := newFinding("", "setup", "terminology", "utilize")
	commitTestScan(t, s, doc, f)

	got, err := s.AdjudicateFinding(ctx, f.ID, model.DecisionConfirmed, "alex", learner.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, model.FindingConfirmed, got.Status)
	assert.Equal(t, "alex", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	// Second adjudication of the same finding conflicts.
	_, err = s.AdjudicateFinding(ctx, f.ID, model.DecisionRejected, "alex", learner.DefaultPolicy())
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = s.AdjudicateFinding(ctx, "missing", model.DecisionConfirmed, "alex", learner.DefaultPolicy())
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.GetPattern(ctx, "terminology", "utilize")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ConfirmCount)
	assert.Equal(t, 0, p.RejectCount)
	assert.False(t, p.SuppressionActive)

	events, err := s.ListFindingEvents(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alex", events[0].Actor)
}

func TestSQLiteAdjudicationActivatesSuppression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()
	policy := learner.DefaultPolicy()

	// Ten straight rejections of the same pattern cross both the sample
	// floor and the score threshold.
	var findings []model.Finding
	for i := 0; i < 10; i++ {
		findings = append(findings, newFinding("", "setup", "terminology", "utilize"))
	}
	commitTestScan(t, s, doc, findings...)

	for i, f := range findings {
		_, err := s.AdjudicateFinding(ctx, f.ID, model.DecisionRejected, "dana", policy)
		require.NoError(t, err)

		p, err := s.GetPattern(ctx, "terminology", "utilize")
		require.NoError(t, err)
		if i < 9 {
			assert.False(t, p.SuppressionActive, "reject %d should not activate", i+1)
		} else {
			assert.True(t, p.SuppressionActive, "tenth reject should activate")
		}
	}

	active, err := s.ActiveSuppressions(ctx)
	require.NoError(t, err)
	assert.True(t, active[model.PatternKey{CheckerID: "terminology", ContextSignature: "utilize"}])
}

func TestSQLiteAdjudicationHysteresis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()
	policy := learner.DefaultPolicy()

	var rejects, confirms []model.Finding
	for i := 0; i < 10; i++ {
		rejects = append(rejects, newFinding("", "setup", "terminology", "utilize"))
	}
	for i := 0; i < 8; i++ {
		confirms = append(confirms, newFinding("", "setup", "terminology", "utilize"))
	}
	commitTestScan(t, s, doc, append(rejects, confirms...)...)

	for _, f := range rejects {
		_, err := s.AdjudicateFinding(ctx, f.ID, model.DecisionRejected, "dana", policy)
		require.NoError(t, err)
	}
	p, err := s.GetPattern(ctx, "terminology", "utilize")
	require.NoError(t, err)
	require.True(t, p.SuppressionActive)

	// Confirms drag the score below the enter threshold but not past the
	// exit threshold until the seventh one.
	for i, f := range confirms {
		_, err := s.AdjudicateFinding(ctx, f.ID, model.DecisionConfirmed, "dana", policy)
		require.NoError(t, err)

		p, err := s.GetPattern(ctx, "terminology", "utilize")
		require.NoError(t, err)
		// score = 10 / (confirms + 10 + 1); drops below 0.5 at 10 confirms,
		// so all eight stay active.
		assert.True(t, p.SuppressionActive, "confirm %d", i+1)
	}

	p, err = s.GetPattern(ctx, "terminology", "utilize")
	require.NoError(t, err)
	assert.Equal(t, 8, p.ConfirmCount)
	assert.Equal(t, 10, p.RejectCount)
}

func TestSQLiteListFindingsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	fPlain := newFinding("", "intro", "passive_voice", "was+designed")
	fSuppressed := newFinding("", "setup", "terminology", "utilize")
	fSuppressed.AutoSuppressed = true
	commitTestScan(t, s, doc, fPlain, fSuppressed)

	_, err := s.AdjudicateFinding(ctx, fPlain.ID, model.DecisionConfirmed, "alex", learner.DefaultPolicy())
	require.NoError(t, err)

	// Default view: pending, not suppressed.
	got, err := s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID, IncludeSuppressed: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fSuppressed.ID, got[0].ID)

	got, err = s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID, Statuses: []model.FindingStatus{model.FindingConfirmed}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fPlain.ID, got[0].ID)

	got, err = s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID, AllStatuses: true, IncludeSuppressed: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListFindings(ctx, FindingFilter{DocumentID: doc.ID, CheckerID: "terminology", IncludeSuppressed: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "terminology", got[0].CheckerID)
}

func TestSQLiteActiveFindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	f1 := newFinding("", "intro", "passive_voice", "was+designed")
	f2 := newFinding("", "intro", "readability", "long_sentence:40+")
	f3 := newFinding("", "setup", "terminology", "utilize")
	commitTestScan(t, s, doc, f1, f2, f3)

	scan2 := newScan(doc.ID)
	require.NoError(t, s.CreateScan(ctx, scan2))
	scan2.Status = model.ScanCompleted
	require.NoError(t, s.CommitScan(ctx, ScanCommit{
		Scan: scan2, Document: doc, SupersededIDs: []string{f2.ID},
	}))

	byUnit, err := s.ActiveFindings(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, byUnit["intro"], 1)
	assert.Equal(t, f1.ID, byUnit["intro"][0].ID)
	require.Len(t, byUnit["setup"], 1)
}

func TestSQLiteListPatterns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	f1 := newFinding("", "intro", "passive_voice", "was+designed")
	f2 := newFinding("", "setup", "terminology", "utilize")
	commitTestScan(t, s, doc, f1, f2)

	_, err := s.AdjudicateFinding(ctx, f1.ID, model.DecisionConfirmed, "alex", learner.DefaultPolicy())
	require.NoError(t, err)
	_, err = s.AdjudicateFinding(ctx, f2.ID, model.DecisionRejected, "alex", learner.DefaultPolicy())
	require.NoError(t, err)

	patterns, err := s.ListPatterns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "passive_voice", patterns[0].CheckerID)
	assert.Equal(t, 1, patterns[0].ConfirmCount)
	assert.Equal(t, "terminology", patterns[1].CheckerID)
	assert.Equal(t, 1, patterns[1].RejectCount)

	_, err = s.GetPattern(ctx, "terminology", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
