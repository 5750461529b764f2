//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/freeeve/impetus/api/internal/model"
	"github.com/freeeve/impetus/api/internal/testutil"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	m.Run()
}

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

// createTestUser is a helper that inserts a user and returns it.
func createTestUser(t *testing.T, repo *UserRepo, suffix string) *model.User {
	t.Helper()
	u, err := repo.Upsert(context.Background(), "google", "provider-"+suffix, "User "+suffix, "https://avatar/"+suffix)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func createTestGame(t *testing.T, repo *GameRepo, name, creatorID string) *model.Game {
	t.Helper()
	g, err := repo.Create(context.Background(), name, creatorID, "24 hours", 4, 5, 10, 42)
	if err != nil {
		t.Fatalf("create test game: %v", err)
	}
	return g
}

// --- UserRepo Tests ---

func TestUserUpsertCreates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u, err := repo.Upsert(context.Background(), "google", "goog-123", "Alice", "https://avatar/alice")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if u.Provider != "google" || u.ProviderID != "goog-123" {
		t.Fatalf("unexpected provider data: %s / %s", u.Provider, u.ProviderID)
	}
	if u.DisplayName != "Alice" {
		t.Fatalf("expected display name Alice, got %s", u.DisplayName)
	}
	if u.AvatarURL != "https://avatar/alice" {
		t.Fatalf("expected avatar URL, got %s", u.AvatarURL)
	}
}

func TestUserUpsertUpdates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u1, err := repo.Upsert(context.Background(), "google", "goog-456", "Bob", "https://old")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	u2, err := repo.Upsert(context.Background(), "google", "goog-456", "Bobby", "https://new")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if u1.ID != u2.ID {
		t.Fatalf("upsert should return same ID: %s vs %s", u1.ID, u2.ID)
	}
	if u2.DisplayName != "Bobby" {
		t.Fatalf("expected updated name Bobby, got %s", u2.DisplayName)
	}
	if u2.AvatarURL != "https://new" {
		t.Fatalf("expected updated avatar, got %s", u2.AvatarURL)
	}
}

func TestUserFindByID(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	created, _ := repo.Upsert(context.Background(), "google", "goog-find", "FindMe", "")
	found, err := repo.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatal("expected to find user by ID")
	}

	// Not found
	notFound, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if notFound != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestUserFindByProviderID(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	repo.Upsert(context.Background(), "apple", "apple-123", "Charlie", "")

	found, err := repo.FindByProviderID(context.Background(), "apple", "apple-123")
	if err != nil {
		t.Fatalf("find by provider: %v", err)
	}
	if found == nil || found.DisplayName != "Charlie" {
		t.Fatal("expected to find user by provider")
	}

	notFound, err := repo.FindByProviderID(context.Background(), "apple", "no-such-id")
	if err != nil {
		t.Fatalf("find missing provider: %v", err)
	}
	if notFound != nil {
		t.Fatal("expected nil for missing provider ID")
	}
}

func TestUserUpdateDisplayName(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)

	u, _ := repo.Upsert(context.Background(), "google", "goog-upd", "OldName", "")
	if err := repo.UpdateDisplayName(context.Background(), u.ID, "NewName"); err != nil {
		t.Fatalf("update display name: %v", err)
	}

	found, _ := repo.FindByID(context.Background(), u.ID)
	if found.DisplayName != "NewName" {
		t.Fatalf("expected NewName, got %s", found.DisplayName)
	}
}

// --- GameRepo Tests ---

func TestGameCreate(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "creator")

	g, err := gameRepo.Create(context.Background(), "Test Game", creator.ID, "24 hours", 4, 5, 10, 42)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if g.ID == "" {
		t.Fatal("expected non-empty game ID")
	}
	if g.Name != "Test Game" {
		t.Fatalf("expected game name 'Test Game', got '%s'", g.Name)
	}
	if g.Status != "waiting" {
		t.Fatalf("expected waiting status, got %s", g.Status)
	}
	if g.MaxPlayers != 4 || g.SideLength != 5 {
		t.Fatalf("unexpected dimensions: %d players, side %d", g.MaxPlayers, g.SideLength)
	}
	if g.VPToWin != 10 || g.Seed != 42 {
		t.Fatalf("unexpected settings: vp %v, seed %d", g.VPToWin, g.Seed)
	}
}

func TestGameFindByIDWithPlayers(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "owner")
	g := createTestGame(t, gameRepo, "With Players", creator.ID)
	gameRepo.JoinGame(context.Background(), g.ID, creator.ID, "Ember")

	player2 := createTestUser(t, userRepo, "p2")
	gameRepo.JoinGame(context.Background(), g.ID, player2.ID, "Gale")

	found, err := gameRepo.FindByID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find game")
	}
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(found.Players))
	}
	names := map[string]bool{}
	for _, p := range found.Players {
		names[p.SpiritName] = true
	}
	if !names["Ember"] || !names["Gale"] {
		t.Fatalf("expected spirit names Ember and Gale, got %v", names)
	}
}

func TestGameListOpen(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "lister")
	createTestGame(t, gameRepo, "Open1", creator.ID)
	createTestGame(t, gameRepo, "Open2", creator.ID)

	games, err := gameRepo.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 open games, got %d", len(games))
	}
}

func TestGameListByUser(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	u1 := createTestUser(t, userRepo, "u1")
	u2 := createTestUser(t, userRepo, "u2")

	g1 := createTestGame(t, gameRepo, "G1", u1.ID)
	gameRepo.JoinGame(context.Background(), g1.ID, u1.ID, "Ash")

	g2 := createTestGame(t, gameRepo, "G2", u2.ID)
	gameRepo.JoinGame(context.Background(), g2.ID, u2.ID, "Bay")
	gameRepo.JoinGame(context.Background(), g2.ID, u1.ID, "Cove")

	games, err := gameRepo.ListByUser(context.Background(), u1.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games for u1, got %d", len(games))
	}

	u2Games, _ := gameRepo.ListByUser(context.Background(), u2.ID)
	if len(u2Games) != 1 {
		t.Fatalf("expected 1 game for u2, got %d", len(u2Games))
	}
}

func TestGameJoinIdempotent(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "joiner")
	g := createTestGame(t, gameRepo, "Join Test", creator.ID)

	// Join twice - second should be a no-op (ON CONFLICT DO NOTHING)
	if err := gameRepo.JoinGame(context.Background(), g.ID, creator.ID, "Flint"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := gameRepo.JoinGame(context.Background(), g.ID, creator.ID, "Flint"); err != nil {
		t.Fatalf("second join should not error: %v", err)
	}

	count, _ := gameRepo.PlayerCount(context.Background(), g.ID)
	if count != 1 {
		t.Fatalf("expected 1 player after duplicate join, got %d", count)
	}
}

func TestGameReplaceBot(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "rb-creator")
	botUser := createTestUser(t, userRepo, "rb-bot")
	human := createTestUser(t, userRepo, "rb-human")

	g := createTestGame(t, gameRepo, "Replace Bot", creator.ID)
	gameRepo.JoinGame(context.Background(), g.ID, creator.ID, "Keeper")
	gameRepo.JoinGameAsBot(context.Background(), g.ID, botUser.ID, "easy")

	if err := gameRepo.ReplaceBot(context.Background(), g.ID, human.ID, "Warden"); err != nil {
		t.Fatalf("replace bot: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players after replace, got %d", len(found.Players))
	}
	for _, p := range found.Players {
		if p.IsBot {
			t.Fatalf("expected no bots left, found %s", p.UserID)
		}
	}
}

func TestGameUpdateBotDifficulty(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "bd-creator")
	botUser := createTestUser(t, userRepo, "bd-bot")

	g := createTestGame(t, gameRepo, "Bot Difficulty", creator.ID)
	gameRepo.JoinGameAsBot(context.Background(), g.ID, botUser.ID, "easy")

	if err := gameRepo.UpdateBotDifficulty(context.Background(), g.ID, botUser.ID, "hard"); err != nil {
		t.Fatalf("update bot difficulty: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if len(found.Players) != 1 || found.Players[0].BotDifficulty != "hard" {
		t.Fatalf("expected hard bot, got %+v", found.Players)
	}
}

func TestGameSetActive(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "activator")
	g := createTestGame(t, gameRepo, "Activate Test", creator.ID)

	if err := gameRepo.SetActive(context.Background(), g.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if found.Status != "active" {
		t.Fatalf("expected active, got %s", found.Status)
	}
	if found.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	active, _ := gameRepo.ListActive(context.Background())
	if len(active) != 1 {
		t.Fatalf("expected 1 active game, got %d", len(active))
	}
}

func TestGameSetFinished(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)

	creator := createTestUser(t, userRepo, "finisher")
	g := createTestGame(t, gameRepo, "Finish Test", creator.ID)

	if err := gameRepo.SetFinished(context.Background(), g.ID, "spirit-1,spirit-2"); err != nil {
		t.Fatalf("set finished: %v", err)
	}

	found, _ := gameRepo.FindByID(context.Background(), g.ID)
	if found.Status != "finished" {
		t.Fatalf("expected finished, got %s", found.Status)
	}
	if found.Winners != "spirit-1,spirit-2" {
		t.Fatalf("expected joint winners, got %s", found.Winners)
	}
	if found.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

// --- TurnRepo Tests ---

func TestTurnCreateAndCurrent(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	turnRepo := NewTurnRepo(testDB)

	creator := createTestUser(t, userRepo, "turn-c")
	g := createTestGame(t, gameRepo, "Turn Test", creator.ID)

	stateBefore := json.RawMessage(`{"turn":1,"phase":"vagrant","spirits":{}}`)
	deadline := time.Now().Add(24 * time.Hour)

	turn, err := turnRepo.CreateTurn(context.Background(), g.ID, 1, "vagrant", stateBefore, deadline)
	if err != nil {
		t.Fatalf("create turn: %v", err)
	}
	if turn.ID == "" {
		t.Fatal("expected non-empty turn ID")
	}
	if turn.Turn != 1 || turn.Phase != "vagrant" {
		t.Fatalf("unexpected turn: %d %s", turn.Turn, turn.Phase)
	}

	// Verify JSONB round-trip
	var stateData map[string]any
	if err := json.Unmarshal(turn.StateBefore, &stateData); err != nil {
		t.Fatalf("unmarshal state_before: %v", err)
	}
	if stateData["turn"].(float64) != 1 {
		t.Fatalf("JSONB round-trip failed: %v", stateData)
	}

	current, err := turnRepo.CurrentTurn(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("current turn: %v", err)
	}
	if current == nil || current.ID != turn.ID {
		t.Fatal("current turn should return the unresolved turn")
	}
}

func TestTurnCurrentReturnsOnlyUnresolved(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	turnRepo := NewTurnRepo(testDB)

	creator := createTestUser(t, userRepo, "unres-c")
	g := createTestGame(t, gameRepo, "Unresolved Test", creator.ID)

	state := json.RawMessage(`{"turn":1}`)
	deadline := time.Now().Add(24 * time.Hour)

	t1, _ := turnRepo.CreateTurn(context.Background(), g.ID, 1, "vagrant", state, deadline)
	turnRepo.ResolveTurn(context.Background(), t1.ID, json.RawMessage(`{"turn":2}`))

	t2, _ := turnRepo.CreateTurn(context.Background(), g.ID, 2, "vagrant", state, deadline)

	current, _ := turnRepo.CurrentTurn(context.Background(), g.ID)
	if current == nil || current.ID != t2.ID {
		t.Fatalf("expected current turn to be t2, got %v", current)
	}
}

func TestTurnListAndResolve(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	turnRepo := NewTurnRepo(testDB)

	creator := createTestUser(t, userRepo, "resolve-c")
	g := createTestGame(t, gameRepo, "Resolve Test", creator.ID)

	state := json.RawMessage(`{"turn":1}`)
	deadline := time.Now().Add(24 * time.Hour)
	turn, _ := turnRepo.CreateTurn(context.Background(), g.ID, 1, "vagrant", state, deadline)

	stateAfter := json.RawMessage(`{"turn":2,"phase":"vagrant"}`)
	if err := turnRepo.ResolveTurn(context.Background(), turn.ID, stateAfter); err != nil {
		t.Fatalf("resolve turn: %v", err)
	}

	turns, err := turnRepo.ListTurns(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].ResolvedAt == nil {
		t.Fatal("expected resolved_at to be set")
	}
	if turns[0].StateAfter == nil {
		t.Fatal("expected state_after to be set")
	}

	var afterData map[string]any
	json.Unmarshal(turns[0].StateAfter, &afterData)
	if afterData["turn"].(float64) != 2 {
		t.Fatal("state_after JSONB round-trip failed")
	}
}

func TestTurnListExpired(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	turnRepo := NewTurnRepo(testDB)

	creator := createTestUser(t, userRepo, "expired-c")
	g := createTestGame(t, gameRepo, "Expired Test", creator.ID)
	gameRepo.SetActive(context.Background(), g.ID)

	state := json.RawMessage(`{}`)
	turn, _ := turnRepo.CreateTurn(context.Background(), g.ID, 1, "vagrant", state, time.Now().Add(24*time.Hour))

	expired, err := turnRepo.ListExpired(context.Background())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired turns, got %d", len(expired))
	}

	turnRepo.UpdateDeadline(context.Background(), turn.ID, time.Now().Add(-time.Minute))

	expired, err = turnRepo.ListExpired(context.Background())
	if err != nil {
		t.Fatalf("list expired after deadline: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != turn.ID {
		t.Fatalf("expected the overdue turn, got %v", expired)
	}
}

func TestEventAppendAndList(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	turnRepo := NewTurnRepo(testDB)

	creator := createTestUser(t, userRepo, "events-c")
	g := createTestGame(t, gameRepo, "Events Test", creator.ID)

	records := []model.EventRecord{
		{GameID: g.ID, Seq: 0, Turn: 1, Type: "turn_start", Data: json.RawMessage(`{"turn":1}`)},
		{GameID: g.ID, Seq: 1, Turn: 1, Type: "guided", Data: json.RawMessage(`{"spirit":"spirit-1","faction":"faction-1"}`)},
		{GameID: g.ID, Seq: 2, Turn: 1, Type: "war_declared", Data: json.RawMessage(`{"attacker":"faction-1","defender":"faction-2"}`)},
	}
	if err := turnRepo.AppendEvents(context.Background(), records); err != nil {
		t.Fatalf("append events: %v", err)
	}

	events, err := turnRepo.EventsByGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("events by game: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != i {
			t.Fatalf("expected seq %d at index %d, got %d", i, i, e.Seq)
		}
	}
	if events[2].Type != "war_declared" {
		t.Fatalf("expected war_declared last, got %s", events[2].Type)
	}

	count, err := turnRepo.EventCount(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("event count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

// --- MessageRepo Tests ---

func TestMessageCreatePublic(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	sender := createTestUser(t, userRepo, "msg-sender")
	g := createTestGame(t, gameRepo, "Msg Test", sender.ID)
	gameRepo.JoinGame(context.Background(), g.ID, sender.ID, "Echo")

	msg, err := msgRepo.Create(context.Background(), g.ID, sender.ID, "", "Hello everyone!", 1)
	if err != nil {
		t.Fatalf("create public message: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected non-empty message ID")
	}
	if msg.RecipientID != "" {
		t.Fatalf("expected empty recipient for public, got %s", msg.RecipientID)
	}
	if msg.Content != "Hello everyone!" {
		t.Fatalf("expected content 'Hello everyone!', got '%s'", msg.Content)
	}
	if msg.Turn != 1 {
		t.Fatalf("expected turn 1, got %d", msg.Turn)
	}
}

func TestMessageCreatePrivate(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	sender := createTestUser(t, userRepo, "priv-sender")
	recipient := createTestUser(t, userRepo, "priv-recip")
	g := createTestGame(t, gameRepo, "Priv Msg", sender.ID)
	gameRepo.JoinGame(context.Background(), g.ID, sender.ID, "Hush")
	gameRepo.JoinGame(context.Background(), g.ID, recipient.ID, "Murmur")

	msg, err := msgRepo.Create(context.Background(), g.ID, sender.ID, recipient.ID, "Secret deal", 2)
	if err != nil {
		t.Fatalf("create private message: %v", err)
	}
	if msg.RecipientID != recipient.ID {
		t.Fatalf("expected recipient %s, got %s", recipient.ID, msg.RecipientID)
	}
}

func TestMessageListByGameVisibility(t *testing.T) {
	setup(t)
	userRepo := NewUserRepo(testDB)
	gameRepo := NewGameRepo(testDB)
	msgRepo := NewMessageRepo(testDB)

	alice := createTestUser(t, userRepo, "vis-alice")
	bob := createTestUser(t, userRepo, "vis-bob")
	charlie := createTestUser(t, userRepo, "vis-charlie")
	g := createTestGame(t, gameRepo, "Vis Test", alice.ID)
	gameRepo.JoinGame(context.Background(), g.ID, alice.ID, "A")
	gameRepo.JoinGame(context.Background(), g.ID, bob.ID, "B")
	gameRepo.JoinGame(context.Background(), g.ID, charlie.ID, "C")

	// Public message
	msgRepo.Create(context.Background(), g.ID, alice.ID, "", "Public hello", 1)
	// Private: Alice -> Bob
	msgRepo.Create(context.Background(), g.ID, alice.ID, bob.ID, "Secret to Bob", 1)
	// Private: Bob -> Charlie
	msgRepo.Create(context.Background(), g.ID, bob.ID, charlie.ID, "Secret to Charlie", 1)

	// Alice sees: public + her private to Bob (as sender) = 2
	aliceMsgs, err := msgRepo.ListByGame(context.Background(), g.ID, alice.ID)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(aliceMsgs) != 2 {
		t.Fatalf("alice expected 2 messages, got %d", len(aliceMsgs))
	}

	// Bob sees: public + Alice->Bob (as recipient) + Bob->Charlie (as sender) = 3
	bobMsgs, _ := msgRepo.ListByGame(context.Background(), g.ID, bob.ID)
	if len(bobMsgs) != 3 {
		t.Fatalf("bob expected 3 messages, got %d", len(bobMsgs))
	}

	// Charlie sees: public + Bob->Charlie (as recipient) = 2
	charlieMsgs, _ := msgRepo.ListByGame(context.Background(), g.ID, charlie.ID)
	if len(charlieMsgs) != 2 {
		t.Fatalf("charlie expected 2 messages, got %d", len(charlieMsgs))
	}
}
