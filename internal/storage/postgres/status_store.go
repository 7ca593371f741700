package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

const statusSlot = "nepjol_import"

// StatusStore keeps the run status as a JSONB row with an expiry, so every
// process sharing the database sees the same run.
type StatusStore struct {
	db    querier
	ttl   time.Duration
	clock nepjol.Clock
}

// NewStatusStore wraps an open pool.
func NewStatusStore(db querier, ttl time.Duration, clock nepjol.Clock) (*StatusStore, error) {
	if db == nil {
		return nil, errNoPool
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusStore{db: db, ttl: ttl, clock: clock}, nil
}

// Load returns the live status row, or the zero Status.
func (s *StatusStore) Load(ctx context.Context) (status.Status, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM import_status WHERE name = $1 AND expires_at > $2`,
		statusSlot, s.clock.Now(),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return status.Status{}, nil
	}
	if err != nil {
		return status.Status{}, fmt.Errorf("select status: %w", err)
	}
	var st status.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return status.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

// Save upserts the status row and renews its expiry.
func (s *StatusStore) Save(ctx context.Context, st status.Status) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
INSERT INTO import_status (name, payload, expires_at) VALUES ($1,$2,$3)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		statusSlot, payload, s.clock.Now().Add(s.ttl),
	); err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

// SaveIfIdle writes st only when no live row is marked running. The check and
// the write are one statement, so two processes cannot both claim the slot.
func (s *StatusStore) SaveIfIdle(ctx context.Context, st status.Status) (bool, error) {
	payload, err := json.Marshal(st)
	if err != nil {
		return false, fmt.Errorf("encode status: %w", err)
	}
	now := s.clock.Now()
	tag, err := s.db.Exec(ctx, `
INSERT INTO import_status (name, payload, expires_at) VALUES ($1,$2,$3)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
WHERE import_status.expires_at <= $4
   OR NOT COALESCE((import_status.payload->>'is_running')::boolean, false)`,
		statusSlot, payload, now.Add(s.ttl), now,
	)
	if err != nil {
		return false, fmt.Errorf("claim status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
