package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/stpa-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
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
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	hash       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS findings (
	id               TEXT PRIMARY KEY,
	controller_id    TEXT NOT NULL,
	action_id        TEXT NOT NULL,
	analysis_type_id TEXT NOT NULL,
	instance_idx     INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	snapshot_hash TEXT NOT NULL,
	signature     TEXT NOT NULL,
	accepted      INTEGER NOT NULL,
	decided_at    DATETIME NOT NULL,
	PRIMARY KEY (snapshot_hash, signature)
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	position    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS coverage_cells (
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	controller_id    TEXT NOT NULL,
	action_id        TEXT NOT NULL,
	analysis_type_id TEXT NOT NULL,
	instance_idx     INTEGER NOT NULL,
	state            TEXT NOT NULL,
	marked_at        DATETIME NOT NULL,
	PRIMARY KEY (session_id, controller_id, action_id, analysis_type_id, instance_idx)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(hash);
CREATE INDEX IF NOT EXISTS idx_findings_action ON findings(action_id);
CREATE INDEX IF NOT EXISTS idx_cells_session ON coverage_cells(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, snap *model.Snapshot) (*SnapshotRecord, error) {
	content, err := json.Marshal(snap)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal snapshot")
	}
	rec := &SnapshotRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Hash:      snap.Hash(),
		Snapshot:  snap,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, name, hash, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Hash, string(content), rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return rec, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hash, content, created_at FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hash, content, created_at FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanSnapshot(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var content string
	err := row.Scan(&rec.ID, &rec.Name, &rec.Hash, &content, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(content), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	rec.Snapshot = &snap
	return &rec, nil
}

func (s *SQLiteStore) AddFinding(ctx context.Context, f model.Finding) (model.Finding, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO findings (id, controller_id, action_id, analysis_type_id, instance_idx, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ControllerID, f.ControlActionID, f.AnalysisTypeID, f.InstanceIndex, f.Description, f.CreatedAt,
	)
	if err != nil {
		return model.Finding{}, eris.Wrap(err, "sqlite: insert finding")
	}
	return f, nil
}

func (s *SQLiteStore) ListFindings(ctx context.Context) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, controller_id, action_id, analysis_type_id, instance_idx, description, created_at
		 FROM findings ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list findings")
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var f model.Finding
		if err := rows.Scan(&f.ID, &f.ControllerID, &f.ControlActionID, &f.AnalysisTypeID,
			&f.InstanceIndex, &f.Description, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate findings")
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, d DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (snapshot_hash, signature, accepted, decided_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (snapshot_hash, signature) DO UPDATE SET accepted = excluded.accepted, decided_at = excluded.decided_at`,
		d.SnapshotHash, d.Signature, d.Accepted, d.DecidedAt,
	)
	return eris.Wrap(err, "sqlite: save decision")
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, snapshotHash string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_hash, signature, accepted, decided_at FROM decisions
		 WHERE snapshot_hash = ? ORDER BY signature`, snapshotHash)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		if err := rows.Scan(&d.SnapshotHash, &d.Signature, &d.Accepted, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate decisions")
}

func (s *SQLiteStore) CreateSession(ctx context.Context, snapshotID string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.New().String(),
		SnapshotID: snapshotID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, snapshot_id, position, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
		sess.ID, sess.SnapshotID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var position sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, position, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.SnapshotID, &position, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session")
	}
	if position.Valid && position.String != "" {
		var key model.CellKey
		if err := json.Unmarshal([]byte(position.String), &key); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal session position")
		}
		sess.Position = &key
	}
	return &sess, nil
}

func (s *SQLiteStore) UpdateSessionPosition(ctx context.Context, id string, pos *model.CellKey) error {
	var position any
	if pos != nil {
		data, err := json.Marshal(pos)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal session position")
		}
		position = string(data)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET position = ?, updated_at = ? WHERE id = ?`,
		position, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update session position")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpsertCell(ctx context.Context, sessionID string, cell model.CoverageCell) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coverage_cells (session_id, controller_id, action_id, analysis_type_id, instance_idx, state, marked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, controller_id, action_id, analysis_type_id, instance_idx)
		 DO UPDATE SET state = excluded.state, marked_at = excluded.marked_at`,
		sessionID, cell.Key.ControllerID, cell.Key.ActionID, cell.Key.AnalysisTypeID,
		cell.Key.Instance, string(cell.State), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert cell")
}

func (s *SQLiteStore) ListCells(ctx context.Context, sessionID string) ([]model.CoverageCell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT controller_id, action_id, analysis_type_id, instance_idx, state
		 FROM coverage_cells WHERE session_id = ?
		 ORDER BY controller_id, action_id, analysis_type_id, instance_idx`, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cells")
	}
	defer rows.Close()

	var out []model.CoverageCell
	for rows.Next() {
		var cell model.CoverageCell
		var state string
		if err := rows.Scan(&cell.Key.ControllerID, &cell.Key.ActionID,
			&cell.Key.AnalysisTypeID, &cell.Key.Instance, &state); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		cell.State = model.CellState(state)
		out = append(out, cell)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate cells")
}
