package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/impetus/api/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines game and player data operations.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID, turnDur string, maxPlayers, sideLength int, vpToWin float64, seed int64) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListFinished(ctx context.Context) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	JoinGame(ctx context.Context, gameID, userID, spiritName string) error
	JoinGameAsBot(ctx context.Context, gameID, userID, difficulty string) error
	ReplaceBot(ctx context.Context, gameID, newUserID, spiritName string) error
	PlayerCount(ctx context.Context, gameID string) (int, error)
	SetActive(ctx context.Context, gameID string) error
	SetFinished(ctx context.Context, gameID, winners string) error
	Delete(ctx context.Context, gameID string) error
	UpdateBotDifficulty(ctx context.Context, gameID, botUserID, difficulty string) error
}

// TurnRepository defines turn snapshot and event log operations.
type TurnRepository interface {
	CreateTurn(ctx context.Context, gameID string, turn int, phase string, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error)
	CurrentTurn(ctx context.Context, gameID string) (*model.Turn, error)
	ListTurns(ctx context.Context, gameID string) ([]model.Turn, error)
	ResolveTurn(ctx context.Context, turnID string, stateAfter json.RawMessage) error
	UpdateDeadline(ctx context.Context, turnID string, deadline time.Time) error
	ListExpired(ctx context.Context) ([]model.Turn, error)
	AppendEvents(ctx context.Context, records []model.EventRecord) error
	EventsByGame(ctx context.Context, gameID string) ([]model.EventRecord, error)
	EventCount(ctx context.Context, gameID string) (int, error)
}

// MessageRepository defines message data operations.
type MessageRepository interface {
	Create(ctx context.Context, gameID, senderID, recipientID, content string, turn int) (*model.Message, error)
	ListByGame(ctx context.Context, gameID, userID string) ([]model.Message, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	SetAction(ctx context.Context, gameID, spiritID string, action json.RawMessage) error
	GetAction(ctx context.Context, gameID, spiritID string) (json.RawMessage, error)
	MarkReady(ctx context.Context, gameID, spiritID string) error
	UnmarkReady(ctx context.Context, gameID, spiritID string) error
	ReadyCount(ctx context.Context, gameID string) (int64, error)
	ReadySpirits(ctx context.Context, gameID string) ([]string, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTimer(ctx context.Context, gameID string) error
	ClearWaitData(ctx context.Context, gameID string, spirits []string) error
	DeleteGameData(ctx context.Context, gameID string, spirits []string) error
}
