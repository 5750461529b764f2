package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game represents a game lobby and its lifecycle record. Live play state
// belongs to the engine; this row tracks who is in the game and whether
// it is waiting, active, or finished.
type Game struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	CreatorID    string       `json:"creator_id"`
	Status       string       `json:"status"` // waiting, active, finished
	Winners      string       `json:"winners,omitempty"`
	TurnDuration string       `json:"turn_duration"`
	MaxPlayers   int          `json:"max_players"`
	SideLength   int          `json:"side_length"`
	VPToWin      float64      `json:"vp_to_win"`
	Seed         int64        `json:"seed"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	Players      []GamePlayer `json:"players,omitempty"`
	ReadyCount   int          `json:"ready_count,omitempty"`
}

// GamePlayer represents a player's membership in a game. Each player
// controls one spirit; the spirit ID is the player's user ID.
type GamePlayer struct {
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	SpiritName    string    `json:"spirit_name,omitempty"`
	IsBot         bool      `json:"is_bot"`
	BotDifficulty string    `json:"bot_difficulty,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Turn represents one persisted stretch of play: the engine state when
// the game last stopped for player input, and the deadline by which
// that input is due.
type Turn struct {
	ID          string          `json:"id"`
	GameID      string          `json:"game_id"`
	Turn        int             `json:"turn"`
	Phase       string          `json:"phase"`
	StateBefore json.RawMessage `json:"state_before"`
	StateAfter  json.RawMessage `json:"state_after,omitempty"`
	Deadline    time.Time       `json:"deadline"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EventRecord is one engine event in a game's append-only log. The full
// ordered log replays to the exact game state.
type EventRecord struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Seq       int             `json:"seq"`
	Turn      int             `json:"turn"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Message represents an in-game chat message between spirits.
type Message struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = public broadcast
	Content     string    `json:"content"`
	Turn        int       `json:"turn,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
