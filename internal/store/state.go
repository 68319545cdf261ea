package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"weekly-basket-bot/internal/types"
)

// StateStore keeps one JSON BotState document per bot id.
type StateStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewStateStore(d *DB) *StateStore {
	return &StateStore{db: d.DB, now: time.Now}
}

// Load returns nil, nil when nothing has been saved for botID.
func (s *StateStore) Load(ctx context.Context, botID string) (*types.BotState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM bot_states WHERE bot_id = ?`, botID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", botID, err)
	}
	var st types.BotState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", botID, err)
	}
	return &st, nil
}

// Save upserts the state and stamps UpdatedAt.
func (s *StateStore) Save(ctx context.Context, botID string, st *types.BotState) error {
	if st == nil {
		return errors.New("nil state")
	}
	st.UpdatedAt = s.now().UTC()
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", botID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bot_states (bot_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, botID, string(b), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save state %s: %w", botID, err)
	}
	return nil
}
