package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	version    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS units (
	document_id     TEXT NOT NULL REFERENCES documents(id),
	unit_id         TEXT NOT NULL,
	position        INTEGER NOT NULL DEFAULT 0,
	text            TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	present         INTEGER NOT NULL DEFAULT 1,
	first_seen_scan TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (document_id, unit_id)
);

CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	snapshot    TEXT,
	stats       TEXT,
	diagnostics TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS findings (
	id                      TEXT PRIMARY KEY,
	document_id             TEXT NOT NULL,
	unit_id                 TEXT NOT NULL,
	checker_id              TEXT NOT NULL,
	severity                TEXT NOT NULL,
	message                 TEXT NOT NULL,
	confidence              REAL NOT NULL DEFAULT 0,
	status                  TEXT NOT NULL DEFAULT 'pending',
	context_signature       TEXT NOT NULL DEFAULT '',
	detected_at_fingerprint TEXT NOT NULL DEFAULT '',
	detected_in_scan        TEXT NOT NULL DEFAULT '',
	auto_suppressed         INTEGER NOT NULL DEFAULT 0,
	reviewed_by             TEXT,
	reviewed_at             DATETIME,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS finding_events (
	id          TEXT PRIMARY KEY,
	finding_id  TEXT NOT NULL REFERENCES findings(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decision_patterns (
	checker_id         TEXT NOT NULL,
	context_signature  TEXT NOT NULL,
	confirm_count      INTEGER NOT NULL DEFAULT 0,
	reject_count       INTEGER NOT NULL DEFAULT 0,
	suppression_active INTEGER NOT NULL DEFAULT 0,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (checker_id, context_signature)
);

CREATE INDEX IF NOT EXISTS idx_units_document ON units(document_id, present);
CREATE INDEX IF NOT EXISTS idx_scans_document ON scans(document_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_findings_document ON findings(document_id, status);
CREATE INDEX IF NOT EXISTS idx_findings_unit ON findings(document_id, unit_id, status);
CREATE INDEX IF NOT EXISTS idx_finding_events_finding ON finding_events(finding_id, at);
CREATE INDEX IF NOT EXISTS idx_patterns_active ON decision_patterns(suppression_active);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, version, updated_at FROM documents WHERE id = ?`,
		documentID,
	).Scan(&doc.ID, &doc.Title, &doc.Version, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", documentID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, text, fingerprint FROM units
		 WHERE document_id = ? AND present = 1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list units")
	}
	defer rows.Close()

	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.ID, &u.Text, &u.Fingerprint); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unit")
		}
		doc.Units = append(doc.Units, u)
	}
	return &doc, eris.Wrap(rows.Err(), "sqlite: iterate units")
}

func (s *SQLiteStore) CreateScan(ctx context.Context, scan *model.Scan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, document_id, status, started_at) VALUES (?, ?, ?, ?)`,
		scan.ID, scan.DocumentID, string(scan.Status), scan.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert scan %s", scan.ID)
}

func (s *SQLiteStore) GetScan(ctx context.Context, scanID string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, status, snapshot, stats, diagnostics, error, started_at, finished_at
		 FROM scans WHERE id = ?`, scanID)
	return scanScan(row)
}

func (s *SQLiteStore) ListScans(ctx context.Context, documentID string, limit int) ([]model.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, document_id, status, snapshot, stats, diagnostics, error, started_at, finished_at
		 FROM scans`
	var args []any
	if documentID != "" {
		query += ` WHERE document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *sc)
	}
	return scans, eris.Wrap(rows.Err(), "sqlite: iterate scans")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, documentID string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, status, snapshot, stats, diagnostics, error, started_at, finished_at
		 FROM scans WHERE document_id = ? AND status IN ('completed', 'partial')
		 ORDER BY started_at DESC LIMIT 1`,
		documentID,
	)
	return scanScan(row)
}

func (s *SQLiteStore) MarkScanFailed(ctx context.Context, scanID string, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.ScanFailed), cause, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark scan failed %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

func (s *SQLiteStore) CommitScan(ctx context.Context, commit ScanCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	doc := commit.Document
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, version, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, version = excluded.version, updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Version, now,
	); err != nil {
		return eris.Wrap(err, "sqlite: upsert document")
	}

	for i, u := range doc.Units {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (document_id, unit_id, position, text, fingerprint, present, first_seen_scan, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			 ON CONFLICT(document_id, unit_id) DO UPDATE SET
			   position = excluded.position, text = excluded.text,
			   fingerprint = excluded.fingerprint, present = 1, updated_at = excluded.updated_at`,
			doc.ID, u.ID, i, u.Text, u.Fingerprint, commit.Scan.ID, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert unit %s", u.ID)
		}
	}

	for _, unitID := range commit.RemovedUnitIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE units SET present = 0, updated_at = ? WHERE document_id = ? AND unit_id = ?`,
			now, doc.ID, unitID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: remove unit %s", unitID)
		}
	}

	for _, f := range commit.NewFindings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO findings (id, document_id, unit_id, checker_id, severity, message, confidence,
			   status, context_signature, detected_at_fingerprint, detected_in_scan, auto_suppressed, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.DocumentID, f.UnitID, f.CheckerID, string(f.Severity), f.Message, f.Confidence,
			string(f.Status), f.ContextSignature, f.DetectedAtFingerprint, f.DetectedInScan,
			boolToInt(f.AutoSuppressed), f.CreatedAt, f.UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert finding %s", f.ID)
		}
	}

	if err := transitionFindingsTx(ctx, tx, commit.SupersededIDs, model.FindingSuperseded, now); err != nil {
		return err
	}
	if err := transitionFindingsTx(ctx, tx, commit.ArchivedIDs, model.FindingArchived, now); err != nil {
		return err
	}

	snapshotJSON, err := json.Marshal(commit.Scan.Snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	statsJSON, err := json.Marshal(commit.Scan.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	diagJSON, err := json.Marshal(commit.Scan.Diagnostics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostics")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE scans SET status = ?, snapshot = ?, stats = ?, diagnostics = ?, finished_at = ? WHERE id = ?`,
		string(commit.Scan.Status), string(snapshotJSON), string(statsJSON), string(diagJSON), now, commit.Scan.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize scan %s", commit.Scan.ID)
	}
	if err := checkRowsAffected(res, "scan", commit.Scan.ID); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit scan")
}

// transitionFindingsTx applies a system transition to findings that are
// still active, appending an event per finding.
func transitionFindingsTx(ctx context.Context, tx *sql.Tx, ids []string, to model.FindingStatus, now time.Time) error {
	for _, id := range ids {
		var from string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM findings WHERE id = ? AND status IN ('pending', 'confirmed', 'rejected')`,
			id,
		).Scan(&from)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: load finding %s", id)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE findings SET status = ?, updated_at = ? WHERE id = ?`,
			string(to), now, id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: transition finding %s", id)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO finding_events (id, finding_id, from_status, to_status, actor, at) VALUES (?, ?, ?, ?, '', ?)`,
			uuid.New().String(), id, from, string(to), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert event for %s", id)
		}
	}
	return nil
}

func (s *SQLiteStore) GetFinding(ctx context.Context, findingID string) (*model.Finding, error) {
	row := s.db.QueryRowContext(ctx,
		findingSelect+` WHERE id = ?`, findingID)
	f, err := scanFinding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get finding %s", findingID)
	}
	return f, nil
}

const findingSelect = `SELECT id, document_id, unit_id, checker_id, severity, message, confidence,
	status, context_signature, detected_at_fingerprint, detected_in_scan, auto_suppressed,
	reviewed_by, reviewed_at, created_at, updated_at FROM findings`

func (s *SQLiteStore) ListFindings(ctx context.Context, filter FindingFilter) ([]model.Finding, error) {
	query := findingSelect + ` WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.UnitID != "" {
		query += ` AND unit_id = ?`
		args = append(args, filter.UnitID)
	}
	if filter.CheckerID != "" {
		query += ` AND checker_id = ?`
		args = append(args, filter.CheckerID)
	}
	switch {
	case len(filter.Statuses) > 0:
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	case !filter.AllStatuses:
		query += ` AND status = 'pending'`
	}
	if !filter.IncludeSuppressed {
		query += ` AND auto_suppressed = 0`
	}

	query += ` ORDER BY created_at, id`
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list findings")
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		findings = append(findings, *f)
	}
	return findings, eris.Wrap(rows.Err(), "sqlite: iterate findings")
}

func (s *SQLiteStore) ListFindingEvents(ctx context.Context, findingID string) ([]model.FindingEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, finding_id, from_status, to_status, actor, at FROM finding_events
		 WHERE finding_id = ? ORDER BY at, id`,
		findingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list finding events")
	}
	defer rows.Close()

	var events []model.FindingEvent
	for rows.Next() {
		var ev model.FindingEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.FindingID, &from, &to, &ev.Actor, &ev.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		ev.From = model.FindingStatus(from)
		ev.To = model.FindingStatus(to)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate events")
}

func (s *SQLiteStore) ActiveFindings(ctx context.Context, documentID string) (map[string][]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		findingSelect+` WHERE document_id = ? AND status IN ('pending', 'confirmed', 'rejected') ORDER BY created_at, id`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active findings")
	}
	defer rows.Close()

	byUnit := make(map[string][]model.Finding)
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		byUnit[f.UnitID] = append(byUnit[f.UnitID], *f)
	}
	return byUnit, eris.Wrap(rows.Err(), "sqlite: iterate active findings")
}

func (s *SQLiteStore) AdjudicateFinding(ctx context.Context, findingID string, decision model.Decision, reviewer string, policy learner.Policy) (*model.Finding, error) {
	if !decision.Valid() {
		return nil, eris.Errorf("sqlite: invalid decision %q", decision)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin adjudication")
	}
	defer tx.Rollback()

	f, err := scanFinding(tx.QueryRowContext(ctx, findingSelect+` WHERE id = ?`, findingID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load finding %s", findingID)
	}
	if f.Status != model.FindingPending {
		return nil, ErrNotPending
	}

	now := time.Now().UTC()
	ev, err := f.Transition(decision.Status(), reviewer, now)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE findings SET status = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ? WHERE id = ?`,
		string(f.Status), f.ReviewedBy, f.ReviewedAt, now, f.ID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: adjudicate finding %s", f.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO finding_events (id, finding_id, from_status, to_status, actor, at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), f.ID, string(ev.From), string(ev.To), reviewer, now,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert adjudication event")
	}

	confirmInc, rejectInc := 0, 0
	if decision == model.DecisionConfirmed {
		confirmInc = 1
	} else {
		rejectInc = 1
	}

	// Counter increments happen in SQL so concurrent adjudications
	// cannot lose updates.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_patterns (checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT(checker_id, context_signature) DO UPDATE SET
		   confirm_count = confirm_count + excluded.confirm_count,
		   reject_count = reject_count + excluded.reject_count,
		   updated_at = excluded.updated_at`,
		f.CheckerID, f.ContextSignature, confirmInc, rejectInc, now,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: increment pattern")
	}

	var confirm, reject, activeInt int
	if err := tx.QueryRowContext(ctx,
		`SELECT confirm_count, reject_count, suppression_active FROM decision_patterns
		 WHERE checker_id = ? AND context_signature = ?`,
		f.CheckerID, f.ContextSignature,
	).Scan(&confirm, &reject, &activeInt); err != nil {
		return nil, eris.Wrap(err, "sqlite: read pattern")
	}

	next := policy.Next(confirm, reject, activeInt != 0)
	if (activeInt != 0) != next {
		if _, err := tx.ExecContext(ctx,
			`UPDATE decision_patterns SET suppression_active = ?, updated_at = ? WHERE checker_id = ? AND context_signature = ?`,
			boolToInt(next), now, f.CheckerID, f.ContextSignature,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: update suppression state")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit adjudication")
	}
	return f, nil
}

func (s *SQLiteStore) GetPattern(ctx context.Context, checkerID, contextSignature string) (*model.DecisionPattern, error) {
	var p model.DecisionPattern
	var activeInt int
	err := s.db.QueryRowContext(ctx,
		`SELECT checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at
		 FROM decision_patterns WHERE checker_id = ? AND context_signature = ?`,
		checkerID, contextSignature,
	).Scan(&p.CheckerID, &p.ContextSignature, &p.ConfirmCount, &p.RejectCount, &activeInt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get pattern")
	}
	p.SuppressionActive = activeInt != 0
	return &p, nil
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, limit int) ([]model.DecisionPattern, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at
		 FROM decision_patterns ORDER BY checker_id, context_signature LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patterns")
	}
	defer rows.Close()

	var patterns []model.DecisionPattern
	for rows.Next() {
		var p model.DecisionPattern
		var activeInt int
		if err := rows.Scan(&p.CheckerID, &p.ContextSignature, &p.ConfirmCount, &p.RejectCount, &activeInt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		p.SuppressionActive = activeInt != 0
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: iterate patterns")
}

func (s *SQLiteStore) ActiveSuppressions(ctx context.Context) (map[model.PatternKey]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT checker_id, context_signature FROM decision_patterns WHERE suppression_active = 1`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active suppressions")
	}
	defer rows.Close()

	active := make(map[model.PatternKey]bool)
	for rows.Next() {
		var key model.PatternKey
		if err := rows.Scan(&key.CheckerID, &key.ContextSignature); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suppression")
		}
		active[key] = true
	}
	return active, eris.Wrap(rows.Err(), "sqlite: iterate suppressions")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

type scannable interface {
	Scan(dest ...any) error
}

// scanFinding decodes one findings row. auto_suppressed is scanned as a
// bool so the same decoder serves the INTEGER column here and the
// BOOLEAN column on Postgres.
func scanFinding(row scannable) (*model.Finding, error) {
	var f model.Finding
	var severity, status string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&f.ID, &f.DocumentID, &f.UnitID, &f.CheckerID, &severity, &f.Message, &f.Confidence,
		&status, &f.ContextSignature, &f.DetectedAtFingerprint, &f.DetectedInScan, &f.AutoSuppressed,
		&reviewedBy, &reviewedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Severity = model.Severity(severity)
	f.Status = model.FindingStatus(status)
	if reviewedBy.Valid {
		f.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		f.ReviewedAt = &t
	}
	return &f, nil
}

func scanScan(row scannable) (*model.Scan, error) {
	var sc model.Scan
	var status string
	var snapshot, stats, diagnostics, errMsg sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&sc.ID, &sc.DocumentID, &status, &snapshot, &stats, &diagnostics, &errMsg,
		&sc.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan scan row")
	}

	sc.Status = model.ScanStatus(status)
	if snapshot.Valid && snapshot.String != "" {
		if err := json.Unmarshal([]byte(snapshot.String), &sc.Snapshot); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
	}
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &sc.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	if diagnostics.Valid && diagnostics.String != "" {
		if err := json.Unmarshal([]byte(diagnostics.String), &sc.Diagnostics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal diagnostics")
		}
	}
	if errMsg.Valid {
		sc.Error = errMsg.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		sc.FinishedAt = &t
	}
	return &sc, nil
}
