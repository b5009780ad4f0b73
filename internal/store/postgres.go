package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/aegis/internal/db"
	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
)

// PostgresStore implements Store backed by PostgreSQL via pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pgx pool to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	version    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS units (
	document_id     TEXT NOT NULL REFERENCES documents(id),
	unit_id         TEXT NOT NULL,
	position        INTEGER NOT NULL DEFAULT 0,
	text            TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	present         BOOLEAN NOT NULL DEFAULT true,
	first_seen_scan TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, unit_id)
);

CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	snapshot    JSONB,
	stats       JSONB,
	diagnostics JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS findings (
	id                      TEXT PRIMARY KEY,
	document_id             TEXT NOT NULL,
	unit_id                 TEXT NOT NULL,
	checker_id              TEXT NOT NULL,
	severity                TEXT NOT NULL,
	message                 TEXT NOT NULL,
	confidence              DOUBLE PRECISION NOT NULL DEFAULT 0,
	status                  TEXT NOT NULL DEFAULT 'pending',
	context_signature       TEXT NOT NULL DEFAULT '',
	detected_at_fingerprint TEXT NOT NULL DEFAULT '',
	detected_in_scan        TEXT NOT NULL DEFAULT '',
	auto_suppressed         BOOLEAN NOT NULL DEFAULT false,
	reviewed_by             TEXT,
	reviewed_at             TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS finding_events (
	id          TEXT PRIMARY KEY,
	finding_id  TEXT NOT NULL REFERENCES findings(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_patterns (
	checker_id         TEXT NOT NULL,
	context_signature  TEXT NOT NULL,
	confirm_count      INTEGER NOT NULL DEFAULT 0,
	reject_count       INTEGER NOT NULL DEFAULT 0,
	suppression_active BOOLEAN NOT NULL DEFAULT false,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (checker_id, context_signature)
);

CREATE INDEX IF NOT EXISTS idx_units_document ON units(document_id, present);
CREATE INDEX IF NOT EXISTS idx_scans_document ON scans(document_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_findings_document ON findings(document_id, status);
CREATE INDEX IF NOT EXISTS idx_findings_unit ON findings(document_id, unit_id, status);
CREATE INDEX IF NOT EXISTS idx_finding_events_finding ON finding_events(finding_id, at);
CREATE INDEX IF NOT EXISTS idx_patterns_active ON decision_patterns(suppression_active) WHERE suppression_active;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, version, updated_at FROM documents WHERE id = $1`,
		documentID,
	).Scan(&doc.ID, &doc.Title, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", documentID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT unit_id, text, fingerprint FROM units
		 WHERE document_id = $1 AND present ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list units")
	}
	defer rows.Close()

	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.ID, &u.Text, &u.Fingerprint); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unit")
		}
		doc.Units = append(doc.Units, u)
	}
	return &doc, eris.Wrap(rows.Err(), "postgres: iterate units")
}

func (s *PostgresStore) CreateScan(ctx context.Context, scan *model.Scan) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scans (id, document_id, status, started_at) VALUES ($1, $2, $3, $4)`,
		scan.ID, scan.DocumentID, string(scan.Status), scan.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert scan %s", scan.ID)
}

const pgScanSelect = `SELECT id, document_id, status, snapshot, stats, diagnostics, error, started_at, finished_at FROM scans`

func (s *PostgresStore) GetScan(ctx context.Context, scanID string) (*model.Scan, error) {
	return pgScanRow(s.pool.QueryRow(ctx, pgScanSelect+` WHERE id = $1`, scanID))
}

func (s *PostgresStore) ListScans(ctx context.Context, documentID string, limit int) ([]model.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := pgScanSelect
	args := []any{limit}
	if documentID != "" {
		query += ` WHERE document_id = $2`
		args = append(args, documentID)
	}
	query += ` ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		sc, err := pgScanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *sc)
	}
	return scans, eris.Wrap(rows.Err(), "postgres: iterate scans")
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, documentID string) (*model.Scan, error) {
	return pgScanRow(s.pool.QueryRow(ctx,
		pgScanSelect+` WHERE document_id = $1 AND status IN ('completed', 'partial')
		 ORDER BY started_at DESC LIMIT 1`,
		documentID,
	))
}

func (s *PostgresStore) MarkScanFailed(ctx context.Context, scanID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.ScanFailed), cause, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark scan failed %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "scan %s", scanID)
	}
	return nil
}

func (s *PostgresStore) CommitScan(ctx context.Context, commit ScanCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	doc := commit.Document

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, title, version, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Title, doc.Version, now,
	); err != nil {
		return eris.Wrap(err, "postgres: upsert document")
	}

	unitRows := make([][]any, 0, len(doc.Units))
	for i, u := range doc.Units {
		unitRows = append(unitRows, []any{doc.ID, u.ID, i, u.Text, u.Fingerprint, true, commit.Scan.ID, now})
	}
	if _, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
		Table:        "units",
		Columns:      []string{"document_id", "unit_id", "position", "text", "fingerprint", "present", "first_seen_scan", "updated_at"},
		ConflictKeys: []string{"document_id", "unit_id"},
		UpdateCols:   []string{"position", "text", "fingerprint", "present", "updated_at"},
	}, unitRows); err != nil {
		return err
	}

	if len(commit.RemovedUnitIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE units SET present = false, updated_at = $1 WHERE document_id = $2 AND unit_id = ANY($3)`,
			now, doc.ID, commit.RemovedUnitIDs,
		); err != nil {
			return eris.Wrap(err, "postgres: remove units")
		}
	}

	findingRows := make([][]any, 0, len(commit.NewFindings))
	for _, f := range commit.NewFindings {
		findingRows = append(findingRows, []any{
			f.ID, f.DocumentID, f.UnitID, f.CheckerID, string(f.Severity), f.Message, f.Confidence,
			string(f.Status), f.ContextSignature, f.DetectedAtFingerprint, f.DetectedInScan,
			f.AutoSuppressed, f.CreatedAt, f.UpdatedAt,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "findings", []string{
		"id", "document_id", "unit_id", "checker_id", "severity", "message", "confidence",
		"status", "context_signature", "detected_at_fingerprint", "detected_in_scan",
		"auto_suppressed", "created_at", "updated_at",
	}, findingRows); err != nil {
		return err
	}

	if err := pgTransitionFindings(ctx, tx, commit.SupersededIDs, model.FindingSuperseded, now); err != nil {
		return err
	}
	if err := pgTransitionFindings(ctx, tx, commit.ArchivedIDs, model.FindingArchived, now); err != nil {
		return err
	}

	snapshotJSON, err := json.Marshal(commit.Scan.Snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	statsJSON, err := json.Marshal(commit.Scan.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	diagJSON, err := json.Marshal(commit.Scan.Diagnostics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostics")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE scans SET status = $1, snapshot = $2, stats = $3, diagnostics = $4, finished_at = $5 WHERE id = $6`,
		string(commit.Scan.Status), snapshotJSON, statsJSON, diagJSON, now, commit.Scan.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize scan %s", commit.Scan.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "scan %s", commit.Scan.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit scan")
}

// pgTransitionFindings moves still-active findings to a terminal system
// status and records an event per transition.
func pgTransitionFindings(ctx context.Context, tx pgx.Tx, ids []string, to model.FindingStatus, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx,
		`UPDATE findings f SET status = $1, updated_at = $2
		 FROM (SELECT id, status AS prior FROM findings
		       WHERE id = ANY($3) AND status IN ('pending', 'confirmed', 'rejected')
		       FOR UPDATE) cur
		 WHERE f.id = cur.id
		 RETURNING f.id, cur.prior`,
		string(to), now, ids,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition findings to %s", to)
	}
	defer rows.Close()

	var events [][]any
	for rows.Next() {
		var id, prior string
		if err := rows.Scan(&id, &prior); err != nil {
			return eris.Wrap(err, "postgres: scan transitioned finding")
		}
		events = append(events, []any{uuid.New().String(), id, prior, string(to), "", now})
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: iterate transitioned findings")
	}
	rows.Close()

	_, err = db.CopyFrom(ctx, tx, "finding_events",
		[]string{"id", "finding_id", "from_status", "to_status", "actor", "at"}, events)
	return err
}

const pgFindingSelect = `SELECT id, document_id, unit_id, checker_id, severity, message, confidence,
	status, context_signature, detected_at_fingerprint, detected_in_scan, auto_suppressed,
	reviewed_by, reviewed_at, created_at, updated_at FROM findings`

func (s *PostgresStore) GetFinding(ctx context.Context, findingID string) (*model.Finding, error) {
	f, err := scanFinding(s.pool.QueryRow(ctx, pgFindingSelect+` WHERE id = $1`, findingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get finding %s", findingID)
	}
	return f, nil
}

func (s *PostgresStore) ListFindings(ctx context.Context, filter FindingFilter) ([]model.Finding, error) {
	query := pgFindingSelect + ` WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.DocumentID != "" {
		query += ` AND document_id = ` + arg(filter.DocumentID)
	}
	if filter.UnitID != "" {
		query += ` AND unit_id = ` + arg(filter.UnitID)
	}
	if filter.CheckerID != "" {
		query += ` AND checker_id = ` + arg(filter.CheckerID)
	}
	switch {
	case len(filter.Statuses) > 0:
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += ` AND status = ANY(` + arg(statuses) + `)`
	case !filter.AllStatuses:
		query += ` AND status = 'pending'`
	}
	if !filter.IncludeSuppressed {
		query += ` AND NOT auto_suppressed`
	}

	query += ` ORDER BY created_at, id`
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list findings")
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		findings = append(findings, *f)
	}
	return findings, eris.Wrap(rows.Err(), "postgres: iterate findings")
}

func (s *PostgresStore) ListFindingEvents(ctx context.Context, findingID string) ([]model.FindingEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, finding_id, from_status, to_status, actor, at FROM finding_events
		 WHERE finding_id = $1 ORDER BY at, id`,
		findingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list finding events")
	}
	defer rows.Close()

	var events []model.FindingEvent
	for rows.Next() {
		var ev model.FindingEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.FindingID, &from, &to, &ev.Actor, &ev.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		ev.From = model.FindingStatus(from)
		ev.To = model.FindingStatus(to)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events")
}

func (s *PostgresStore) ActiveFindings(ctx context.Context, documentID string) (map[string][]model.Finding, error) {
	rows, err := s.pool.Query(ctx,
		pgFindingSelect+` WHERE document_id = $1 AND status IN ('pending', 'confirmed', 'rejected') ORDER BY created_at, id`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active findings")
	}
	defer rows.Close()

	byUnit := make(map[string][]model.Finding)
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		byUnit[f.UnitID] = append(byUnit[f.UnitID], *f)
	}
	return byUnit, eris.Wrap(rows.Err(), "postgres: iterate active findings")
}

func (s *PostgresStore) AdjudicateFinding(ctx context.Context, findingID string, decision model.Decision, reviewer string, policy learner.Policy) (*model.Finding, error) {
	if !decision.Valid() {
		return nil, eris.Errorf("postgres: invalid decision %q", decision)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin adjudication")
	}
	defer tx.Rollback(ctx)

	f, err := scanFinding(tx.QueryRow(ctx, pgFindingSelect+` WHERE id = $1 FOR UPDATE`, findingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load finding %s", findingID)
	}
	if f.Status != model.FindingPending {
		return nil, ErrNotPending
	}

	now := time.Now().UTC()
	ev, err := f.Transition(decision.Status(), reviewer, now)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE findings SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $4 WHERE id = $5`,
		string(f.Status), f.ReviewedBy, f.ReviewedAt, now, f.ID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: adjudicate finding %s", f.ID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO finding_events (id, finding_id, from_status, to_status, actor, at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), f.ID, string(ev.From), string(ev.To), reviewer, now,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert adjudication event")
	}

	confirmInc, rejectInc := 0, 0
	if decision == model.DecisionConfirmed {
		confirmInc = 1
	} else {
		rejectInc = 1
	}

	var confirm, reject int
	var active bool
	if err := tx.QueryRow(ctx,
		`INSERT INTO decision_patterns (checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at)
		 VALUES ($1, $2, $3, $4, false, $5)
		 ON CONFLICT (checker_id, context_signature) DO UPDATE SET
		   confirm_count = decision_patterns.confirm_count + EXCLUDED.confirm_count,
		   reject_count = decision_patterns.reject_count + EXCLUDED.reject_count,
		   updated_at = EXCLUDED.updated_at
		 RETURNING confirm_count, reject_count, suppression_active`,
		f.CheckerID, f.ContextSignature, confirmInc, rejectInc, now,
	).Scan(&confirm, &reject, &active); err != nil {
		return nil, eris.Wrap(err, "postgres: increment pattern")
	}

	if next := policy.Next(confirm, reject, active); next != active {
		if _, err := tx.Exec(ctx,
			`UPDATE decision_patterns SET suppression_active = $1, updated_at = $2 WHERE checker_id = $3 AND context_signature = $4`,
			next, now, f.CheckerID, f.ContextSignature,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: update suppression state")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit adjudication")
	}
	return f, nil
}

func (s *PostgresStore) GetPattern(ctx context.Context, checkerID, contextSignature string) (*model.DecisionPattern, error) {
	var p model.DecisionPattern
	err := s.pool.QueryRow(ctx,
		`SELECT checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at
		 FROM decision_patterns WHERE checker_id = $1 AND context_signature = $2`,
		checkerID, contextSignature,
	).Scan(&p.CheckerID, &p.ContextSignature, &p.ConfirmCount, &p.RejectCount, &p.SuppressionActive, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get pattern")
	}
	return &p, nil
}

func (s *PostgresStore) ListPatterns(ctx context.Context, limit int) ([]model.DecisionPattern, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT checker_id, context_signature, confirm_count, reject_count, suppression_active, updated_at
		 FROM decision_patterns ORDER BY checker_id, context_signature LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patterns")
	}
	defer rows.Close()

	var patterns []model.DecisionPattern
	for rows.Next() {
		var p model.DecisionPattern
		if err := rows.Scan(&p.CheckerID, &p.ContextSignature, &p.ConfirmCount, &p.RejectCount, &p.SuppressionActive, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: iterate patterns")
}

func (s *PostgresStore) ActiveSuppressions(ctx context.Context) (map[model.PatternKey]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT checker_id, context_signature FROM decision_patterns WHERE suppression_active`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active suppressions")
	}
	defer rows.Close()

	active := make(map[model.PatternKey]bool)
	for rows.Next() {
		var key model.PatternKey
		if err := rows.Scan(&key.CheckerID, &key.ContextSignature); err != nil {
			return nil, eris.Wrap(err, "postgres: scan suppression")
		}
		active[key] = true
	}
	return active, eris.Wrap(rows.Err(), "postgres: iterate suppressions")
}

func pgScanRow(row scannable) (*model.Scan, error) {
	var sc model.Scan
	var status string
	var snapshot, stats, diagnostics []byte
	var errMsg *string
	var finishedAt *time.Time

	err := row.Scan(&sc.ID, &sc.DocumentID, &status, &snapshot, &stats, &diagnostics,
		&errMsg, &sc.StartedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan scan row")
	}

	sc.Status = model.ScanStatus(status)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &sc.Snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &sc.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	if len(diagnostics) > 0 {
		if err := json.Unmarshal(diagnostics, &sc.Diagnostics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal diagnostics")
		}
	}
	if errMsg != nil {
		sc.Error = *errMsg
	}
	sc.FinishedAt = finishedAt
	return &sc, nil
}
