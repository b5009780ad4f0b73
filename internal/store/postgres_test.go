package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

var pgFindingCols = []string{
	"id", "document_id", "unit_id", "checker_id", "severity", "message", "confidence",
	"status", "context_signature", "detected_at_fingerprint", "detected_in_scan", "auto_suppressed",
	"reviewed_by", "reviewed_at", "created_at", "updated_at",
}

func pendingFindingRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(pgFindingCols).AddRow(
		"f1", "doc-1", "setup", "terminology", "low", "prefer plain verbs", 0.9,
		"pending", "utilize", "fp-setup-1", "scan-1", false,
		nil, nil, now, now,
	)
}

func TestPostgresCreateScan(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO scans").
		WithArgs("scan-1", "doc-1", "running", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateScan(context.Background(), &model.Scan{
		ID: "scan-1", DocumentID: "doc-1", Status: model.ScanRunning, StartedAt: now,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkScanFailedNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE scans SET status").
		WithArgs("failed", "boom", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkScanFailed(context.Background(), "missing", "boom")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetScanDecodesJSON(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	snapshot, _ := json.Marshal(map[string]string{"intro": "fp-1"})
	stats, _ := json.Marshal(model.ScanStats{UnitsTotal: 3, FindingsNew: 2})
	diags, _ := json.Marshal([]model.CheckerFailure{{CheckerID: "statement_quality", UnitID: "intro", Error: "timeout"}})

	mock.ExpectQuery("SELECT id, document_id, status, snapshot").
		WithArgs("scan-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "document_id", "status", "snapshot", "stats", "diagnostics", "error", "started_at", "finished_at",
		}).AddRow("scan-1", "doc-1", "completed", snapshot, stats, diags, nil, now, &now))

	sc, err := s.GetScan(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, sc.Status)
	assert.Equal(t, "fp-1", sc.Snapshot["intro"])
	assert.Equal(t, 3, sc.Stats.UnitsTotal)
	require.Len(t, sc.Diagnostics, 1)
	assert.Equal(t, "statement_quality", sc.Diagnostics[0].CheckerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetFindingNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, document_id, unit_id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(pgFindingCols))

	_, err := s.GetFinding(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetFindingDecodesBooleanSuppression(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(pgFindingCols).AddRow(
		"f2", "doc-1", "setup", "terminology", "low", "prefer plain verbs", 0.9,
		"pending", "utilize", "fp-setup-1", "scan-1", true,
		nil, nil, now, now,
	)
	mock.ExpectQuery("SELECT id, document_id, unit_id").
		WithArgs("f2").
		WillReturnRows(rows)

	f, err := s.GetFinding(context.Background(), "f2")
	require.NoError(t, err)
	assert.True(t, f.AutoSuppressed)
	assert.Equal(t, model.FindingPending, f.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjudicateFinding(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, unit_id").
		WithArgs("f1").
		WillReturnRows(pendingFindingRow(now))
	mock.ExpectExec("UPDATE findings SET status").
		WithArgs("confirmed", "alex", pgxmock.AnyArg(), pgxmock.AnyArg(), "f1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO finding_events").
		WithArgs(pgxmock.AnyArg(), "f1", "pending", "confirmed", "alex", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO decision_patterns").
		WithArgs("terminology", "utilize", 1, 0, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"confirm_count", "reject_count", "suppression_active"}).
			AddRow(1, 0, false))
	mock.ExpectCommit()

	f, err := s.AdjudicateFinding(context.Background(), "f1", model.DecisionConfirmed, "alex", learner.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, model.FindingConfirmed, f.Status)
	assert.Equal(t, "alex", f.ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjudicateFindingNotPending(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(pgFindingCols).AddRow(
		"f1", "doc-1", "setup", "terminology", "low", "prefer plain verbs", 0.9,
		"confirmed", "utilize", "fp-setup-1", "scan-1", false,
		"alex", now, now, now,
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, unit_id").
		WithArgs("f1").
		WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := s.AdjudicateFinding(context.Background(), "f1", model.DecisionRejected, "alex", learner.DefaultPolicy())
	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdjudicateFlipsSuppression(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, unit_id").
		WithArgs("f1").
		WillReturnRows(pendingFindingRow(now))
	mock.ExpectExec("UPDATE findings SET status").
		WithArgs("rejected", "dana", pgxmock.AnyArg(), pgxmock.AnyArg(), "f1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO finding_events").
		WithArgs(pgxmock.AnyArg(), "f1", "pending", "rejected", "dana", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Counts after this reject cross the activation threshold.
	mock.ExpectQuery("INSERT INTO decision_patterns").
		WithArgs("terminology", "utilize", 0, 1, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"confirm_count", "reject_count", "suppression_active"}).
			AddRow(0, 10, false))
	mock.ExpectExec("UPDATE decision_patterns SET suppression_active").
		WithArgs(true, pgxmock.AnyArg(), "terminology", "utilize").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	f, err := s.AdjudicateFinding(context.Background(), "f1", model.DecisionRejected, "dana", learner.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, model.FindingRejected, f.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActiveSuppressions(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT checker_id, context_signature FROM decision_patterns").
		WillReturnRows(pgxmock.NewRows([]string{"checker_id", "context_signature"}).
			AddRow("terminology", "utilize").
			AddRow("passive_voice", "was+designed"))

	active, err := s.ActiveSuppressions(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.True(t, active[model.PatternKey{CheckerID: "terminology", ContextSignature: "utilize"}])
	assert.NoError(t, mock.ExpectationsWereMet())
}
