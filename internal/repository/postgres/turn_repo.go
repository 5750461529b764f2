package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/impetus/api/internal/model"
)

// TurnRepo handles turn and event database operations.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// CreateTurn inserts a new turn record with the state the engine is
// waiting in and the input deadline.
func (r *TurnRepo) CreateTurn(ctx context.Context, gameID string, turn int, phase string, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error) {
	var t model.Turn
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO turns (game_id, turn, phase, state_before, deadline)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, game_id, turn, phase, state_before, deadline, created_at`,
		gameID, turn, phase, stateBefore, deadline,
	).Scan(&t.ID, &t.GameID, &t.Turn, &t.Phase, &t.StateBefore, &t.Deadline, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	return &t, nil
}

// CurrentTurn returns the latest unresolved turn for a game.
func (r *TurnRepo) CurrentTurn(ctx context.Context, gameID string) (*model.Turn, error) {
	var t model.Turn
	var stateAfter sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, turn, phase, state_before, state_after, deadline, resolved_at, created_at
		 FROM turns WHERE game_id = $1 AND resolved_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, gameID,
	).Scan(&t.ID, &t.GameID, &t.Turn, &t.Phase, &t.StateBefore, &stateAfter, &t.Deadline, &t.ResolvedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current turn: %w", err)
	}
	if stateAfter.Valid {
		t.StateAfter = json.RawMessage(stateAfter.String)
	}
	return &t, nil
}

// ListTurns returns all turns for a game in play order.
func (r *TurnRepo) ListTurns(ctx context.Context, gameID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, phase, state_before, state_after, deadline, resolved_at, created_at
		 FROM turns WHERE game_id = $1 ORDER BY turn, created_at`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var stateAfter sql.NullString
		if err := rows.Scan(&t.ID, &t.GameID, &t.Turn, &t.Phase, &t.StateBefore, &stateAfter, &t.Deadline, &t.ResolvedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if stateAfter.Valid {
			t.StateAfter = json.RawMessage(stateAfter.String)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ResolveTurn marks a turn as resolved and stores the resulting state.
func (r *TurnRepo) ResolveTurn(ctx context.Context, turnID string, stateAfter json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE turns SET state_after = $1, resolved_at = now() WHERE id = $2`,
		stateAfter, turnID,
	)
	if err != nil {
		return fmt.Errorf("resolve turn: %w", err)
	}
	return nil
}

// UpdateDeadline moves the input deadline of an open turn, used when the
// engine stops again for a different choice within the same turn.
func (r *TurnRepo) UpdateDeadline(ctx context.Context, turnID string, deadline time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE turns SET deadline = $1 WHERE id = $2 AND resolved_at IS NULL`,
		deadline, turnID,
	)
	if err != nil {
		return fmt.Errorf("update deadline: %w", err)
	}
	return nil
}

// ListExpired returns the latest unresolved turn per game where the deadline has passed.
// Uses DISTINCT ON to avoid returning orphaned old turns from previous race conditions.
func (r *TurnRepo) ListExpired(ctx context.Context) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (t.game_id) t.id, t.game_id, t.turn, t.phase, t.state_before, t.deadline, t.created_at
		 FROM turns t
		 JOIN games g ON g.id = t.game_id
		 WHERE t.resolved_at IS NULL AND t.deadline < now() AND g.status = 'active'
		 ORDER BY t.game_id, t.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expired turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.ID, &t.GameID, &t.Turn, &t.Phase, &t.StateBefore, &t.Deadline, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AppendEvents inserts a batch of event records in sequence order.
func (r *TurnRepo) AppendEvents(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (game_id, seq, turn, type, data) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare insert event: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.GameID, rec.Seq, rec.Turn, rec.Type, rec.Data); err != nil {
			return fmt.Errorf("insert event %d: %w", rec.Seq, err)
		}
	}
	return tx.Commit()
}

// EventsByGame returns a game's full event log in sequence order.
func (r *TurnRepo) EventsByGame(ctx context.Context, gameID string) ([]model.EventRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, seq, turn, type, data, created_at
		 FROM events WHERE game_id = $1 ORDER BY seq`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("events by game: %w", err)
	}
	defer rows.Close()

	var records []model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		if err := rows.Scan(&rec.ID, &rec.GameID, &rec.Seq, &rec.Turn, &rec.Type, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// EventCount returns how many events a game has logged.
func (r *TurnRepo) EventCount(ctx context.Context, gameID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE game_id = $1`, gameID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("event count: %w", err)
	}
	return count, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
