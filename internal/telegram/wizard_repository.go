package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dinner-planner/internal/suggestion"
)

// Wizard steps.
const (
	stepConstraints = "constraints"
	stepSuggestions = "suggestions"
	stepPick        = "pick"
)

// WizardState is what the plan wizard remembers for a chat between updates.
type WizardState struct {
	Step           string            `json:"step"`
	StartDate      string            `json:"start_date"`
	DinnerDays     []int             `json:"dinner_days"`
	AvoidRepeats   bool              `json:"avoid_repeats,omitempty"`
	PreferSimple   bool              `json:"prefer_simple,omitempty"`
	VegetarianOnly bool              `json:"vegetarian_only,omitempty"`
	Session        *suggestion.State `json:"session,omitempty"`
	PickDate       string            `json:"pick_date,omitempty"`
	MessageID      int               `json:"message_id,omitempty"`
}

// WizardRepository persists wizard state per chat in SQLite.
type WizardRepository struct {
	db *sql.DB
}

func NewWizardRepository(db *sql.DB) *WizardRepository {
	return &WizardRepository{db: db}
}

// Get returns the chat's wizard state, or nil if there is none or it expired.
func (r *WizardRepository) Get(ctx context.Context, chatID int64, now time.Time) (*WizardState, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT state FROM wizard_sessions WHERE chat_id = ? AND expires_at > ?`,
		chatID, now.Unix()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wizard for chat %d: %w", chatID, err)
	}

	var st WizardState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode wizard for chat %d: %w", chatID, err)
	}
	return &st, nil
}

// Save stores st for the chat until expiresAt.
func (r *WizardRepository) Save(ctx context.Context, chatID int64, st *WizardState, expiresAt time.Time) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode wizard: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO wizard_sessions (chat_id, step, state, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   step = excluded.step, state = excluded.state,
		   expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		chatID, st.Step, string(raw), expiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save wizard for chat %d: %w", chatID, err)
	}
	return nil
}

// Delete drops the chat's wizard.
func (r *WizardRepository) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete wizard for chat %d: %w", chatID, err)
	}
	return nil
}

// CleanupExpired removes wizards that expired before now.
func (r *WizardRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up wizards: %w", err)
	}
	return res.RowsAffected()
}
