// Package store persists the artifacts the engine itself refuses to own:
// snapshots, findings, combination decisions, and per-session coverage
// state. The engine reads snapshots and emits events; everything durable
// lands here.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stpa-cli/internal/model"
)

// ErrNotFound marks lookups for rows that do not exist. Check with eris.Is.
var ErrNotFound = eris.New("store: not found")

// SnapshotRecord is a stored snapshot with its content hash.
type SnapshotRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Hash      string          `json:"hash"`
	Snapshot  *model.Snapshot `json:"snapshot"`
	CreatedAt time.Time       `json:"created_at"`
}

// DecisionRecord is an analyst verdict on a combination, keyed by snapshot
// hash and combination signature so re-generation maps decisions back onto
// identical content.
type DecisionRecord struct {
	SnapshotHash string    `json:"snapshot_hash"`
	Signature    string    `json:"signature"`
	Accepted     bool      `json:"accepted"`
	DecidedAt    time.Time `json:"decided_at"`
}

// Session is a guided review session. Position is nil once the traversal
// reached its terminal state.
type Session struct {
	ID         string         `json:"id"`
	SnapshotID string         `json:"snapshot_id"`
	Position   *model.CellKey `json:"position,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Store defines the persistence interface shared by the SQLite and Postgres
// backends.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, name string, snap *model.Snapshot) (*SnapshotRecord, error)
	GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error)
	LatestSnapshot(ctx context.Context) (*SnapshotRecord, error)

	// Findings
	AddFinding(ctx context.Context, f model.Finding) (model.Finding, error)
	ListFindings(ctx context.Context) ([]model.Finding, error)

	// Combination decisions
	SaveDecision(ctx context.Context, d DecisionRecord) error
	ListDecisions(ctx context.Context, snapshotHash string) ([]DecisionRecord, error)

	// Review sessions
	CreateSession(ctx context.Context, snapshotID string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionPosition(ctx context.Context, id string, pos *model.CellKey) error
	UpsertCell(ctx context.Context, sessionID string, cell model.CoverageCell) error
	ListCells(ctx context.Context, sessionID string) ([]model.CoverageCell, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
