package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Invocation is one tool call as recorded in the audit log.
type Invocation struct {
	ID         uuid.UUID
	Tool       string
	Permission string
	Args       json.RawMessage
	Status     string // "success" | "error"
	ErrorKind  string
	ErrorMsg   string
	Duration   time.Duration
	StartedAt  time.Time

	// Set by Store.Record.
	Hash     string
	PrevHash string
}

type invocationPayload struct {
	InvocationID string          `json:"invocation_id"`
	Tool         string          `json:"tool"`
	Permission   string          `json:"permission"`
	Args         json.RawMessage `json:"args"`
	StartedAt    string          `json:"started_at"`
}

type invocationOutcome struct {
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	ErrorMsg   string `json:"error_msg,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Canonical returns the canonical payload and outcome bytes that are hashed
// into the chain.
func (inv *Invocation) Canonical() (payload, outcome []byte, err error) {
	args := inv.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	payload, err = CanonicalJSON(invocationPayload{
		InvocationID: inv.ID.String(),
		Tool:         inv.Tool,
		Permission:   inv.Permission,
		Args:         args,
		StartedAt:    inv.StartedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, nil, err
	}
	outcome, err = CanonicalJSON(invocationOutcome{
		Status:     inv.Status,
		ErrorKind:  inv.ErrorKind,
		ErrorMsg:   inv.ErrorMsg,
		DurationMS: inv.Duration.Milliseconds(),
	})
	if err != nil {
		return nil, nil, err
	}
	return payload, outcome, nil
}

// chainLockID is the advisory lock that serialises chain appends.
const chainLockID int64 = 0x5f_6361_6c6c_6f67

const schema = `
CREATE TABLE IF NOT EXISTS tool_invocations (
	seq            BIGSERIAL,
	invocation_id  UUID PRIMARY KEY,
	tool           TEXT        NOT NULL,
	permission     TEXT        NOT NULL,
	args_json      JSONB       NOT NULL,
	status         TEXT        NOT NULL,
	error_kind     TEXT        NOT NULL DEFAULT '',
	error_msg      TEXT        NOT NULL DEFAULT '',
	duration_ms    BIGINT      NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload_canon  BYTEA       NOT NULL,
	outcome_canon  BYTEA       NOT NULL,
	hash           TEXT        NOT NULL,
	prev_hash      TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_invocations_seq_idx ON tool_invocations (seq);
CREATE INDEX IF NOT EXISTS tool_invocations_started_idx ON tool_invocations (started_at);
`

// Store persists invocations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the invocation table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("audit.EnsureSchema: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Write path
// ──────────────────────────────────────────────────────────────────────────────

// Record appends inv to the chain inside one transaction.
func (s *Store) Record(ctx context.Context, inv *Invocation) error {
	canonPayload, canonOutcome, err := inv.Canonical()
	if err != nil {
		return fmt.Errorf("audit.Record canonical: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit.Record begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", chainLockID); err != nil {
		return fmt.Errorf("audit.Record advisory lock: %w", err)
	}

	prevHash, err := lastHashTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("audit.Record last hash: %w", err)
	}
	hash := ChainHash(prevHash, canonPayload, canonOutcome)

	args := []byte(inv.Args)
	if len(args) == 0 {
		args = []byte(`{}`)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tool_invocations (
			invocation_id, tool, permission, args_json,
			status, error_kind, error_msg, duration_ms, started_at,
			payload_canon, outcome_canon, hash, prev_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inv.ID, inv.Tool, inv.Permission, args,
		inv.Status, inv.ErrorKind, inv.ErrorMsg, inv.Duration.Milliseconds(), inv.StartedAt,
		canonPayload, canonOutcome, hash, prevHash,
	)
	if err != nil {
		return fmt.Errorf("audit.Record insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("audit.Record commit: %w", err)
	}
	inv.Hash = hash
	inv.PrevHash = prevHash
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Read path
// ──────────────────────────────────────────────────────────────────────────────

// Chain returns the links recorded since the given time, oldest first.
func (s *Store) Chain(ctx context.Context, since time.Time) ([]Link, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT invocation_id::text, hash, prev_hash, payload_canon, outcome_canon
		FROM tool_invocations
		WHERE started_at >= $1
		ORDER BY seq ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("audit.Chain: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.InvocationID, &l.Hash, &l.PrevHash, &l.CanonPayload, &l.CanonOutcome); err != nil {
			return nil, fmt.Errorf("audit.Chain scan: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit.Chain iteration: %w", err)
	}
	return links, nil
}

func lastHashTx(ctx context.Context, tx pgx.Tx) (string, error) {
	var h string
	err := tx.QueryRow(ctx, `SELECT hash FROM tool_invocations ORDER BY seq DESC LIMIT 1`).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return h, err
}
