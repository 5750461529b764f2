package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/impetus/api/internal/model"
)

type mockGameRepo struct {
	mu      sync.Mutex
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, name, creatorID, turnDur string, maxPlayers, sideLength int, vpToWin float64, seed int64) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &model.Game{
		ID:           fmt.Sprintf("game-%d", len(m.games)+1),
		Name:         name,
		CreatorID:    creatorID,
		Status:       "waiting",
		TurnDuration: turnDur,
		MaxPlayers:   maxPlayers,
		SideLength:   sideLength,
		VPToWin:      vpToWin,
		Seed:         seed,
		CreatedAt:    time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "waiting" {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var result []model.Game
	for gameID, players := range m.players {
		for _, p := range players {
			if p.UserID == userID && !seen[gameID] {
				if g, ok := m.games[gameID]; ok {
					result = append(result, *g)
					seen[gameID] = true
				}
			}
		}
	}
	// Also include games where user is creator but not a player (bot-only games)
	for _, g := range m.games {
		if g.CreatorID == userID && !seen[g.ID] {
			result = append(result, *g)
			seen[g.ID] = true
		}
	}
	return result, nil
}

func (m *mockGameRepo) JoinGame(_ context.Context, gameID, userID, spiritName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:     gameID,
		UserID:     userID,
		SpiritName: spiritName,
		JoinedAt:   time.Now(),
	})
	return nil
}

func (m *mockGameRepo) PlayerCount(_ context.Context, gameID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players[gameID]), nil
}

func (m *mockGameRepo) JoinGameAsBot(_ context.Context, gameID, userID, difficulty string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if difficulty == "" {
		difficulty = "easy"
	}
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:        gameID,
		UserID:        userID,
		SpiritName:    "Bot " + userID,
		IsBot:         true,
		BotDifficulty: difficulty,
		JoinedAt:      time.Now(),
	})
	return nil
}

func (m *mockGameRepo) ReplaceBot(_ context.Context, gameID, newUserID, spiritName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := m.players[gameID]
	for i, p := range players {
		if p.IsBot {
			m.players[gameID] = append(players[:i], append([]model.GamePlayer{{
				GameID:     gameID,
				UserID:     newUserID,
				SpiritName: spiritName,
				JoinedAt:   time.Now(),
			}}, players[i+1:]...)...)
			return nil
		}
	}
	return fmt.Errorf("no bot to replace")
}

func (m *mockGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "finished" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "active" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) SetActive(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		g.Status = "active"
		now := time.Now()
		g.StartedAt = &now
	}
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID, winners string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		g.Status = "finished"
		g.Winners = winners
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

func (m *mockGameRepo) UpdateBotDifficulty(_ context.Context, gameID, botUserID, difficulty string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := m.players[gameID]
	for i, p := range players {
		if p.UserID == botUserID && p.IsBot {
			players[i].BotDifficulty = difficulty
			return nil
		}
	}
	return fmt.Errorf("bot not found")
}

// mockUserRepo implements repository.UserRepository for testing.
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

// addUser seeds a human user for tests.
func (m *mockUserRepo) addUser(id, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &model.User{
		ID:          id,
		Provider:    "test",
		ProviderID:  id,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Check for existing
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("bot-user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

type mockTurnRepo struct {
	mu     sync.Mutex
	turns  map[string]*model.Turn
	events map[string][]model.EventRecord // by game ID, in append order
}

func newMockTurnRepo() *mockTurnRepo {
	return &mockTurnRepo{
		turns:  make(map[string]*model.Turn),
		events: make(map[string][]model.EventRecord),
	}
}

func (m *mockTurnRepo) CreateTurn(_ context.Context, gameID string, turn int, phase string, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &model.Turn{
		ID:          fmt.Sprintf("turn-%d", len(m.turns)+1),
		GameID:      gameID,
		Turn:        turn,
		Phase:       phase,
		StateBefore: stateBefore,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	m.turns[t.ID] = t
	return t, nil
}

func (m *mockTurnRepo) CurrentTurn(_ context.Context, gameID string) (*model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.turns {
		if t.GameID == gameID && t.ResolvedAt == nil {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTurnRepo) ListTurns(_ context.Context, gameID string) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Turn
	for _, t := range m.turns {
		if t.GameID == gameID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTurnRepo) ResolveTurn(_ context.Context, turnID string, stateAfter json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.turns[turnID]; ok {
		t.StateAfter = stateAfter
		now := time.Now()
		t.ResolvedAt = &now
	}
	return nil
}

func (m *mockTurnRepo) UpdateDeadline(_ context.Context, turnID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.turns[turnID]; ok {
		t.Deadline = deadline
	}
	return nil
}

func (m *mockTurnRepo) ListExpired(_ context.Context) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Turn
	for _, t := range m.turns {
		if t.ResolvedAt == nil && time.Now().After(t.Deadline) {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTurnRepo) AppendEvents(_ context.Context, records []model.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.ID = fmt.Sprintf("event-%s-%d", r.GameID, r.Seq)
		r.CreatedAt = time.Now()
		m.events[r.GameID] = append(m.events[r.GameID], r)
	}
	return nil
}

func (m *mockTurnRepo) EventsByGame(_ context.Context, gameID string) ([]model.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[gameID], nil
}

func (m *mockTurnRepo) EventCount(_ context.Context, gameID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[gameID]), nil
}

// mockCache implements repository.GameCache for testing.
type mockCache struct {
	mu      sync.Mutex
	states  map[string]json.RawMessage
	actions map[string]json.RawMessage // key: "gameID:spiritID"
	ready   map[string]map[string]bool // gameID -> set of spirits
	timers  map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{
		states:  make(map[string]json.RawMessage),
		actions: make(map[string]json.RawMessage),
		ready:   make(map[string]map[string]bool),
		timers:  make(map[string]time.Time),
	}
}

func (c *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = state
	return nil
}

func (c *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[gameID], nil
}

func (c *mockCache) SetAction(_ context.Context, gameID, spiritID string, action json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[gameID+":"+spiritID] = action
	return nil
}

func (c *mockCache) GetAction(_ context.Context, gameID, spiritID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[gameID+":"+spiritID], nil
}

func (c *mockCache) MarkReady(_ context.Context, gameID, spiritID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[gameID] == nil {
		c.ready[gameID] = make(map[string]bool)
	}
	c.ready[gameID][spiritID] = true
	return nil
}

func (c *mockCache) UnmarkReady(_ context.Context, gameID, spiritID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[gameID] != nil {
		delete(c.ready[gameID], spiritID)
	}
	return nil
}

func (c *mockCache) ReadyCount(_ context.Context, gameID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.ready[gameID])), nil
}

func (c *mockCache) ReadySpirits(_ context.Context, gameID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []string
	for spirit := range c.ready[gameID] {
		result = append(result, spirit)
	}
	return result, nil
}

func (c *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[gameID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, gameID)
	return nil
}

func (c *mockCache) ClearWaitData(_ context.Context, gameID string, spirits []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ready, gameID)
	delete(c.timers, gameID)
	for _, spirit := range spirits {
		delete(c.actions, gameID+":"+spirit)
	}
	return nil
}

func (c *mockCache) DeleteGameData(_ context.Context, gameID string, spirits []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	delete(c.ready, gameID)
	delete(c.timers, gameID)
	for _, spirit := range spirits {
		delete(c.actions, gameID+":"+spirit)
	}
	return nil
}
