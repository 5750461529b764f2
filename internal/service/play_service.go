package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/impetus/api/internal/ai"
	"github.com/freeeve/impetus/api/internal/model"
	"github.com/freeeve/impetus/api/internal/repository"
	"github.com/freeeve/impetus/api/pkg/impetus"
)

var (
	ErrNoActiveTurn  = errors.New("no active turn")
	ErrInvalidAction = errors.New("invalid action")
)

// gameRoom holds one active game's live engine state. All access goes
// through mu; the engine is not safe for concurrent use.
type gameRoom struct {
	mu  sync.Mutex
	g   *impetus.GameState
	rng *rand.Rand // drives bot policies, separate from the engine's rng
	seq int        // next event log sequence number
}

// PlayService runs active games: it accepts spirit actions, resolves
// phases when every required input is in, persists the event log and
// turn snapshots, and drives bot spirits.
type PlayService struct {
	gameRepo    repository.GameRepository
	turnRepo    repository.TurnRepository
	cache       repository.GameCache
	broadcaster Broadcaster

	// rooms maps game ID to its live state. The per-room mutex prevents
	// concurrent resolution from the keyspace listener and poller, and
	// from early-resolution goroutines racing with timer expiry.
	rooms sync.Map
}

// NewPlayService creates a PlayService.
func NewPlayService(
	gameRepo repository.GameRepository,
	turnRepo repository.TurnRepository,
	cache repository.GameCache,
	broadcaster Broadcaster,
) *PlayService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &PlayService{
		gameRepo:    gameRepo,
		turnRepo:    turnRepo,
		cache:       cache,
		broadcaster: broadcaster,
	}
}

// playerInfos maps game players to engine players. The spirit ID is
// the player's user ID.
func playerInfos(game *model.Game) []impetus.PlayerInfo {
	players := make([]impetus.PlayerInfo, len(game.Players))
	for i, p := range game.Players {
		players[i] = impetus.PlayerInfo{SpiritID: p.UserID, Name: p.SpiritName}
	}
	return players
}

func configFor(game *model.Game) impetus.Config {
	return impetus.Config{
		SideLength: game.SideLength,
		VPToWin:    game.VPToWin,
		Seed:       game.Seed,
	}
}

func spiritIDs(game *model.Game) []string {
	ids := make([]string, len(game.Players))
	for i, p := range game.Players {
		ids[i] = p.UserID
	}
	return ids
}

// InitializeGame builds the initial engine state for a started game,
// opens the first turn, and kicks off bot submissions.
func (s *PlayService) InitializeGame(ctx context.Context, game *model.Game) error {
	g, events, err := impetus.NewGame(playerInfos(game), configFor(game))
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}

	room := &gameRoom{g: g, rng: rand.New(rand.NewSource(game.Seed + 1))}
	s.rooms.Store(game.ID, room)

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := s.persistEvents(ctx, game.ID, room, events); err != nil {
		return err
	}

	deadline := time.Now().Add(parseDuration(game.TurnDuration))
	if err := s.openTurn(ctx, game.ID, room, deadline); err != nil {
		return err
	}
	s.broadcastEvents(game.ID, events)

	go s.submitBotActionsAsync(game.ID, parseDuration(game.TurnDuration))
	return nil
}

// room fetches a game's live room, returning nil when the game has no
// in-memory state (not active, or lost in a restart before recovery).
func (s *PlayService) room(gameID string) *gameRoom {
	v, ok := s.rooms.Load(gameID)
	if !ok {
		return nil
	}
	return v.(*gameRoom)
}

// GetSnapshot returns the observable state of an active game.
func (s *PlayService) GetSnapshot(ctx context.Context, gameID string) (json.RawMessage, error) {
	state, err := s.cache.GetGameState(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("get cached state: %w", err)
	}
	if state != nil {
		return state, nil
	}
	// Cache miss: fall back to the last persisted turn snapshot.
	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, ErrNoActiveTurn
	}
	return turn.StateBefore, nil
}

// GetOptions tells a spirit what it may do right now.
func (s *PlayService) GetOptions(ctx context.Context, gameID, userID string) (impetus.PhaseOptions, error) {
	room := s.room(gameID)
	if room == nil {
		return impetus.PhaseOptions{}, ErrNoActiveTurn
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	opts, err := room.g.GetPhaseOptions(userID)
	if err != nil {
		if errors.Is(err, impetus.ErrUnknownSpirit) {
			return impetus.PhaseOptions{}, ErrNotInGame
		}
		return impetus.PhaseOptions{}, err
	}
	return opts, nil
}

// ReadyCount returns how many spirits have submitted for the current
// wait.
func (s *PlayService) ReadyCount(ctx context.Context, gameID string) (int, error) {
	n, err := s.cache.ReadyCount(ctx, gameID)
	return int(n), err
}

// WaitingOn lists the spirits the current phase is blocked on.
func (s *PlayService) WaitingOn(gameID string) ([]string, error) {
	room := s.room(gameID)
	if room == nil {
		return nil, ErrNoActiveTurn
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.g.SpiritsNeedingInput(), nil
}

// SubmitAction validates and records one spirit's input. When the
// submission completes the set of required inputs, the phase resolves
// immediately.
func (s *PlayService) SubmitAction(ctx context.Context, gameID, userID string, action impetus.Action) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != "active" {
		return ErrGameNotActive
	}

	inGame := false
	for _, p := range game.Players {
		if p.UserID == userID {
			inGame = true
			break
		}
	}
	if !inGame {
		return ErrNotInGame
	}

	room := s.room(gameID)
	if room == nil {
		return ErrNoActiveTurn
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := room.g.SubmitAction(userID, action); err != nil {
		if errors.Is(err, impetus.ErrActionNotNeeded) || errors.Is(err, impetus.ErrAlreadySubmitted) {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInvalidAction, err)
	}

	// Mirror the submission to Redis so ready counts survive reads from
	// other processes and show up in lobby summaries.
	actionJSON, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	if err := s.cache.SetAction(ctx, gameID, userID, actionJSON); err != nil {
		return fmt.Errorf("cache action: %w", err)
	}
	if err := s.cache.MarkReady(ctx, gameID, userID); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	waiting := room.g.SpiritsNeedingInput()
	s.broadcaster.BroadcastGameEvent(gameID, "player_ready", map[string]any{
		"spirit":        userID,
		"waiting_on":    waiting,
		"waiting_count": len(waiting),
	})

	if len(waiting) == 0 {
		return s.advance(ctx, game, room)
	}
	return nil
}

// ResolveTurn resolves a game's current wait after its deadline. Spirits
// that never submitted get a policy-chosen default action.
func (s *PlayService) ResolveTurn(ctx context.Context, gameID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return fmt.Errorf("find game: %w", err)
	}
	if game.Status != "active" {
		log.Info().Str("gameId", gameID).Str("status", game.Status).Msg("Skipping resolution for non-active game")
		return nil
	}

	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil {
		return fmt.Errorf("get current turn: %w", err)
	}
	if turn == nil {
		return ErrNoActiveTurn
	}
	if time.Now().Before(turn.Deadline) {
		log.Debug().Str("gameId", gameID).Time("deadline", turn.Deadline).Msg("Turn deadline not yet reached, skipping")
		return nil
	}

	room := s.room(gameID)
	if room == nil {
		return ErrNoActiveTurn
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	// Default every missing input. The random policy always produces a
	// legal submission, so absent players never stall the game.
	fallback := ai.RandomPolicy{}
	for _, sid := range room.g.SpiritsNeedingInput() {
		a, err := fallback.ChooseAction(room.g, sid, room.rng)
		if err != nil {
			return fmt.Errorf("default action for %s: %w", sid, err)
		}
		if err := room.g.SubmitAction(sid, a); err != nil {
			return fmt.Errorf("submit default for %s: %w", sid, err)
		}
		log.Info().Str("gameId", gameID).Str("spirit", sid).Msg("Defaulted missing action at deadline")
	}

	return s.advance(ctx, game, room)
}

// advance resolves phases until the game blocks on input again or
// ends, then persists the stretch. Caller holds room.mu.
func (s *PlayService) advance(ctx context.Context, game *model.Game, room *gameRoom) error {
	g := room.g
	var events []impetus.Event
	for g.Phase != impetus.PhaseGameOver && g.AllInputsReceived() {
		events = append(events, g.ResolveCurrentPhase()...)
	}

	if err := s.persistEvents(ctx, game.ID, room, events); err != nil {
		return err
	}

	snapJSON, err := json.Marshal(g.GetSnapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	turn, err := s.turnRepo.CurrentTurn(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("get current turn: %w", err)
	}
	if turn != nil {
		if err := s.turnRepo.ResolveTurn(ctx, turn.ID, snapJSON); err != nil {
			return fmt.Errorf("resolve turn: %w", err)
		}
	}

	spirits := spiritIDs(game)

	if g.Phase == impetus.PhaseGameOver {
		winners := gameWinners(events)
		log.Info().Str("gameId", game.ID).Strs("winners", winners).Msg("Game over")
		if err := s.gameRepo.SetFinished(ctx, game.ID, joinWinners(winners)); err != nil {
			return fmt.Errorf("set finished: %w", err)
		}
		s.broadcastEvents(game.ID, events)
		s.broadcaster.BroadcastGameEvent(game.ID, "game_ended", map[string]any{
			"winners": winners,
		})
		s.rooms.Delete(game.ID)
		return s.cache.DeleteGameData(ctx, game.ID, spirits)
	}

	if err := s.cache.ClearWaitData(ctx, game.ID, spirits); err != nil {
		return fmt.Errorf("clear wait data: %w", err)
	}

	deadline := time.Now().Add(parseDuration(game.TurnDuration))
	if err := s.openTurn(ctx, game.ID, room, deadline); err != nil {
		return err
	}

	waiting := g.SpiritsNeedingInput()
	log.Info().
		Str("gameId", game.ID).
		Int("turn", g.Turn).
		Str("phase", string(g.Phase)).
		Time("deadline", deadline).
		Strs("waitingOn", waiting).
		Msg("Game advanced")

	s.broadcastEvents(game.ID, events)
	s.broadcaster.BroadcastGameEvent(game.ID, "turn_changed", map[string]any{
		"turn":       g.Turn,
		"phase":      string(g.Phase),
		"waiting_on": waiting,
		"deadline":   deadline.Format(time.RFC3339),
	})

	go s.submitBotActionsAsync(game.ID, parseDuration(game.TurnDuration))
	return nil
}

// openTurn persists a new turn row, caches the snapshot, and arms the
// timer. Caller holds room.mu.
func (s *PlayService) openTurn(ctx context.Context, gameID string, room *gameRoom, deadline time.Time) error {
	snapJSON, err := json.Marshal(room.g.GetSnapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := s.turnRepo.CreateTurn(ctx, gameID, room.g.Turn, string(room.g.Phase), snapJSON, deadline); err != nil {
		return fmt.Errorf("create turn: %w", err)
	}
	if err := s.cache.SetGameState(ctx, gameID, snapJSON); err != nil {
		return fmt.Errorf("set game state: %w", err)
	}
	if err := s.cache.SetTimer(ctx, gameID, deadline); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}
	return nil
}

// persistEvents appends engine events to the game's log. Caller holds
// room.mu.
func (s *PlayService) persistEvents(ctx context.Context, gameID string, room *gameRoom, events []impetus.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]model.EventRecord, len(events))
	for i, e := range events {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.Type, err)
		}
		records[i] = model.EventRecord{
			GameID: gameID,
			Seq:    room.seq + i,
			Turn:   room.g.Turn,
			Type:   string(e.Type),
			Data:   data,
		}
	}
	if err := s.turnRepo.AppendEvents(ctx, records); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	room.seq += len(events)
	return nil
}

func (s *PlayService) broadcastEvents(gameID string, events []impetus.Event) {
	for _, e := range events {
		s.broadcaster.BroadcastGameEvent(gameID, string(e.Type), e.Data)
	}
}

// gameWinners pulls the winner list out of a stretch's game_over event.
func gameWinners(events []impetus.Event) []string {
	for _, e := range events {
		if d, ok := e.Data.(impetus.GameOverData); ok {
			return d.Winners
		}
	}
	return nil
}

func joinWinners(winners []string) string {
	out := ""
	for i, w := range winners {
		if i > 0 {
			out += ","
		}
		out += w
	}
	return out
}

// submitBotActionsAsync runs SubmitBotActions with a capped timeout so
// bots finish well before the turn timer.
func (s *PlayService) submitBotActionsAsync(gameID string, turnDur time.Duration) {
	botTimeout := turnDur - 5*time.Second
	if botTimeout > 30*time.Second {
		botTimeout = 30 * time.Second
	}
	if botTimeout < 5*time.Second {
		botTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), botTimeout)
	defer cancel()
	if err := s.SubmitBotActions(ctx, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to submit bot actions")
	}
}

// SubmitBotActions chooses and submits actions for every bot spirit the
// game is waiting on. When bots were the only spirits outstanding the
// phase resolves, which can surface new bot choices; the loop continues
// until the game blocks on a human or ends.
func (s *PlayService) SubmitBotActions(ctx context.Context, gameID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return fmt.Errorf("find game for bot actions: %w", err)
	}
	if game.Status != "active" {
		return nil
	}

	botPolicies := make(map[string]ai.Policy)
	for _, p := range game.Players {
		if p.IsBot {
			botPolicies[p.UserID] = ai.PolicyForDifficulty(p.BotDifficulty)
		}
	}
	if len(botPolicies) == 0 {
		return nil
	}

	room := s.room(gameID)
	if room == nil {
		return ErrNoActiveTurn
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	for room.g.Phase != impetus.PhaseGameOver {
		submitted := false
		for _, sid := range room.g.SpiritsNeedingInput() {
			policy, isBot := botPolicies[sid]
			if !isBot {
				continue
			}
			a, err := policy.ChooseAction(room.g, sid, room.rng)
			if err != nil {
				return fmt.Errorf("bot action for %s: %w", sid, err)
			}
			if err := room.g.SubmitAction(sid, a); err != nil {
				return fmt.Errorf("submit bot action for %s: %w", sid, err)
			}
			actionJSON, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("marshal bot action: %w", err)
			}
			if err := s.cache.SetAction(ctx, gameID, sid, actionJSON); err != nil {
				return fmt.Errorf("cache bot action for %s: %w", sid, err)
			}
			if err := s.cache.MarkReady(ctx, gameID, sid); err != nil {
				return fmt.Errorf("mark bot ready for %s: %w", sid, err)
			}
			log.Debug().Str("gameId", gameID).Str("spirit", sid).Str("policy", policy.Name()).Str("phase", string(room.g.Phase)).Msg("Bot action submitted")
			submitted = true
		}

		if !room.g.AllInputsReceived() {
			// Waiting on a human.
			if submitted {
				waiting := room.g.SpiritsNeedingInput()
				s.broadcaster.BroadcastGameEvent(gameID, "player_ready", map[string]any{
					"waiting_on":    waiting,
					"waiting_count": len(waiting),
				})
			}
			return nil
		}

		if err := s.advance(ctx, game, room); err != nil {
			return fmt.Errorf("auto-resolve after bot actions: %w", err)
		}
		if s.room(gameID) == nil {
			// advance finished the game and dropped the room.
			return nil
		}
	}
	return nil
}

// RecoverActiveGames rebuilds in-memory rooms for all active games by
// replaying their persisted event logs. Called on server startup to
// restore state lost during a restart.
func (s *PlayService) RecoverActiveGames(ctx context.Context) error {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	if len(games) == 0 {
		log.Info().Msg("No active games to recover")
		return nil
	}

	log.Info().Int("count", len(games)).Msg("Recovering active games after restart")

	for i := range games {
		game := games[i]
		if err := s.recoverGame(ctx, &game); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to recover game")
		}
	}
	return nil
}

func (s *PlayService) recoverGame(ctx context.Context, game *model.Game) error {
	records, err := s.turnRepo.EventsByGame(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("load event log: %w", err)
	}
	events := make([]impetus.Event, len(records))
	for i, r := range records {
		// Reassemble the wire envelope so the engine's decoder picks the
		// right payload type.
		envelope, err := json.Marshal(map[string]json.RawMessage{
			"type": json.RawMessage(fmt.Sprintf("%q", r.Type)),
			"data": r.Data,
		})
		if err != nil {
			return fmt.Errorf("build envelope for seq %d: %w", r.Seq, err)
		}
		if err := json.Unmarshal(envelope, &events[i]); err != nil {
			return fmt.Errorf("decode event seq %d: %w", r.Seq, err)
		}
	}

	g, err := impetus.Replay(playerInfos(game), configFor(game), events)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	room := &gameRoom{g: g, rng: rand.New(rand.NewSource(game.Seed + 1)), seq: len(records)}
	s.rooms.Store(game.ID, room)

	room.mu.Lock()
	defer room.mu.Unlock()

	snapJSON, err := json.Marshal(g.GetSnapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.cache.SetGameState(ctx, game.ID, snapJSON); err != nil {
		return fmt.Errorf("restore game state: %w", err)
	}

	turn, err := s.turnRepo.CurrentTurn(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("get current turn: %w", err)
	}
	if turn != nil && time.Now().Before(turn.Deadline) {
		if err := s.cache.SetTimer(ctx, game.ID, turn.Deadline); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore timer")
		}
	}

	log.Info().Str("gameId", game.ID).
		Int("turn", g.Turn).Str("phase", string(g.Phase)).
		Int("events", len(records)).
		Msg("Recovered game state")

	go s.submitBotActionsAsync(game.ID, parseDuration(game.TurnDuration))
	return nil
}

// CleanupStoppedGame broadcasts the game_ended event and clears the
// game's live state.
func (s *PlayService) CleanupStoppedGame(ctx context.Context, gameID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return fmt.Errorf("find game: %w", err)
	}
	s.broadcaster.BroadcastGameEvent(gameID, "game_ended", map[string]any{
		"winners": []string{},
		"reason":  "stopped",
	})
	s.rooms.Delete(gameID)
	return s.cache.DeleteGameData(ctx, gameID, spiritIDs(game))
}
