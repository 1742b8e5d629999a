package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/stpa-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (tests use pgxmock here).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	hash       TEXT NOT NULL,
	content    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS findings (
	id               TEXT PRIMARY KEY,
	controller_id    TEXT NOT NULL,
	action_id        TEXT NOT NULL,
	analysis_type_id TEXT NOT NULL,
	instance_idx     INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	snapshot_hash TEXT NOT NULL,
	signature     TEXT NOT NULL,
	accepted      BOOLEAN NOT NULL,
	decided_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (snapshot_hash, signature)
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	position    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coverage_cells (
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	controller_id    TEXT NOT NULL,
	action_id        TEXT NOT NULL,
	analysis_type_id TEXT NOT NULL,
	instance_idx     INTEGER NOT NULL,
	state            TEXT NOT NULL,
	marked_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, controller_id, action_id, analysis_type_id, instance_idx)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(hash);
CREATE INDEX IF NOT EXISTS idx_findings_action ON findings(action_id);
CREATE INDEX IF NOT EXISTS idx_cells_session ON coverage_cells(session_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, name string, snap *model.Snapshot) (*SnapshotRecord, error) {
	content, err := json.Marshal(snap)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal snapshot")
	}
	rec := &SnapshotRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Hash:      snap.Hash(),
		Snapshot:  snap,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, name, hash, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Name, rec.Hash, content, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}
	return rec, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, hash, content, created_at FROM snapshots WHERE id = $1`, id)
	return scanPgSnapshot(row)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, hash, content, created_at FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanPgSnapshot(row)
}

func scanPgSnapshot(row pgx.Row) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var content []byte
	err := row.Scan(&rec.ID, &rec.Name, &rec.Hash, &content, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}
	var snap model.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	rec.Snapshot = &snap
	return &rec, nil
}

func (s *PostgresStore) AddFinding(ctx context.Context, f model.Finding) (model.Finding, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO findings (id, controller_id, action_id, analysis_type_id, instance_idx, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.ControllerID, f.ControlActionID, f.AnalysisTypeID, f.InstanceIndex, f.Description, f.CreatedAt,
	)
	if err != nil {
		return model.Finding{}, eris.Wrap(err, "postgres: insert finding")
	}
	return f, nil
}

func (s *PostgresStore) ListFindings(ctx context.Context) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, controller_id, action_id, analysis_type_id, instance_idx, description, created_at
		 FROM findings ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list findings")
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var f model.Finding
		if err := rows.Scan(&f.ID, &f.ControllerID, &f.ControlActionID, &f.AnalysisTypeID,
			&f.InstanceIndex, &f.Description, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate findings")
}

func (s *PostgresStore) SaveDecision(ctx context.Context, d DecisionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (snapshot_hash, signature, accepted, decided_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (snapshot_hash, signature) DO UPDATE SET accepted = EXCLUDED.accepted, decided_at = EXCLUDED.decided_at`,
		d.SnapshotHash, d.Signature, d.Accepted, d.DecidedAt,
	)
	return eris.Wrap(err, "postgres: save decision")
}

func (s *PostgresStore) ListDecisions(ctx context.Context, snapshotHash string) ([]DecisionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot_hash, signature, accepted, decided_at FROM decisions
		 WHERE snapshot_hash = $1 ORDER BY signature`, snapshotHash)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		if err := rows.Scan(&d.SnapshotHash, &d.Signature, &d.Accepted, &d.DecidedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate decisions")
}

func (s *PostgresStore) CreateSession(ctx context.Context, snapshotID string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.New().String(),
		SnapshotID: snapshotID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, snapshot_id, position, created_at, updated_at) VALUES ($1, $2, NULL, $3, $4)`,
		sess.ID, sess.SnapshotID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var position []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, snapshot_id, position, created_at, updated_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.SnapshotID, &position, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get session")
	}
	if len(position) > 0 {
		var key model.CellKey
		if err := json.Unmarshal(position, &key); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal session position")
		}
		sess.Position = &key
	}
	return &sess, nil
}

func (s *PostgresStore) UpdateSessionPosition(ctx context.Context, id string, pos *model.CellKey) error {
	var position []byte
	if pos != nil {
		data, err := json.Marshal(pos)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal session position")
		}
		position = data
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET position = $1, updated_at = $2 WHERE id = $3`,
		position, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update session position")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertCell(ctx context.Context, sessionID string, cell model.CoverageCell) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO coverage_cells (session_id, controller_id, action_id, analysis_type_id, instance_idx, state, marked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id, controller_id, action_id, analysis_type_id, instance_idx)
		 DO UPDATE SET state = EXCLUDED.state, marked_at = EXCLUDED.marked_at`,
		sessionID, cell.Key.ControllerID, cell.Key.ActionID, cell.Key.AnalysisTypeID,
		cell.Key.Instance, string(cell.State), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: upsert cell")
}

func (s *PostgresStore) ListCells(ctx context.Context, sessionID string) ([]model.CoverageCell, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT controller_id, action_id, analysis_type_id, instance_idx, state
		 FROM coverage_cells WHERE session_id = $1
		 ORDER BY controller_id, action_id, analysis_type_id, instance_idx`, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cells")
	}
	defer rows.Close()

	var out []model.CoverageCell
	for rows.Next() {
		var cell model.CoverageCell
		var state string
		if err := rows.Scan(&cell.Key.ControllerID, &cell.Key.ActionID,
			&cell.Key.AnalysisTypeID, &cell.Key.Instance, &state); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		cell.State = model.CellState(state)
		out = append(out, cell)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate cells")
}
