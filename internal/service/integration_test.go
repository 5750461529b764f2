//go:build integration

package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/impetus/api/internal/model"
	"github.com/freeeve/impetus/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/impetus/api/internal/repository/redis"
	"github.com/freeeve/impetus/api/internal/testutil"
	"github.com/freeeve/impetus/api/pkg/impetus"
)

// testEnv holds shared test infrastructure.
type testEnv struct {
	db       *sql.DB
	rdb      *goredis.Client
	userRepo *postgres.UserRepo
	gameRepo *postgres.GameRepo
	turnRepo *postgres.TurnRepo
	msgRepo  *postgres.MessageRepo
	cache    *redisrepo.Client
}

var env *testEnv

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		db := testutil.SetupDB(t)
		rdb := testutil.SetupRedis(t)
		env = &testEnv{
			db:       db,
			rdb:      rdb,
			userRepo: postgres.NewUserRepo(db),
			gameRepo: postgres.NewGameRepo(db),
			turnRepo: postgres.NewTurnRepo(db),
			msgRepo:  postgres.NewMessageRepo(db),
			cache:    redisrepo.NewClientFromPool(rdb),
		}
	}
	testutil.CleanupDB(t, env.db)
	testutil.CleanupRedis(t, env.rdb)
	return env
}

func newServices(e *testEnv) (*GameService, *PlayService) {
	play := NewPlayService(e.gameRepo, e.turnRepo, e.cache, nil)
	return NewGameService(e.gameRepo, e.userRepo, play), play
}

func createUser(t *testing.T, e *testEnv, providerID, name string) *model.User {
	t.Helper()
	u, err := e.userRepo.Upsert(context.Background(), "test", providerID, name, "")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return u
}

func TestIntegrationLobbyLifecycle(t *testing.T) {
	e := setupEnv(t)
	svc, play := newServices(e)
	alice := createUser(t, e, "alice", "Alice")
	bob := createUser(t, e, "bob", "Bob")

	game, err := svc.CreateGame(context.Background(), "Lobby", alice.ID, "5m", 3, 0, 3, 21, "easy", false)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if len(game.Players) != 3 {
		t.Fatalf("expected 3 players with bot fill, got %d", len(game.Players))
	}

	if err := svc.JoinGame(context.Background(), game.ID, bob.ID); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	game, err = svc.GetGame(context.Background(), game.ID)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	bots := 0
	var botID string
	for _, p := range game.Players {
		if p.IsBot {
			bots++
			botID = p.UserID
		}
	}
	if len(game.Players) != 3 || bots != 1 {
		t.Fatalf("expected 3 players with 1 bot after replacement, got %d/%d", len(game.Players), bots)
	}

	if err := svc.UpdateBotDifficulty(context.Background(), game.ID, alice.ID, botID, "hard"); err != nil {
		t.Fatalf("UpdateBotDifficulty failed: %v", err)
	}

	started, err := svc.StartGame(context.Background(), game.ID, alice.ID)
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if started.Status != "active" {
		t.Errorf("expected status active, got %s", started.Status)
	}

	turn, err := e.turnRepo.CurrentTurn(context.Background(), game.ID)
	if err != nil || turn == nil {
		t.Fatalf("expected an open turn row, got %v (%v)", turn, err)
	}
	state, err := e.cache.GetGameState(context.Background(), game.ID)
	if err != nil || state == nil {
		t.Fatalf("expected cached state in redis, got %v (%v)", state, err)
	}

	stopped, err := svc.StopGame(context.Background(), game.ID, alice.ID)
	if err != nil {
		t.Fatalf("StopGame failed: %v", err)
	}
	if stopped.Status != "finished" || stopped.Winners != "" {
		t.Errorf("expected finished game without winners, got %s %q", stopped.Status, stopped.Winners)
	}
	if state, _ := e.cache.GetGameState(context.Background(), game.ID); state != nil {
		t.Error("expected redis state cleared after stop")
	}
	if _, err := play.WaitingOn(game.ID); !errors.Is(err, ErrNoActiveTurn) {
		t.Errorf("expected room gone after stop, got %v", err)
	}
}

func TestIntegrationBotGameToCompletion(t *testing.T) {
	e := setupEnv(t)
	svc, _ := newServices(e)
	alice := createUser(t, e, "alice", "Alice")

	game, err := svc.CreateGame(context.Background(), "Bots", alice.ID, "5m", 3, 0, 3, 31, "medium", true)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if _, err := svc.StartGame(context.Background(), game.ID, alice.ID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		g, err := e.gameRepo.FindByID(context.Background(), game.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if g.Status == "finished" {
			if g.Winners == "" {
				t.Error("expected winners on a finished game")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("game did not finish, still %s", g.Status)
		}
		time.Sleep(25 * time.Millisecond)
	}

	turns, err := e.turnRepo.ListTurns(context.Background(), game.ID)
	if err != nil || len(turns) == 0 {
		t.Fatalf("expected turn rows, got %d (%v)", len(turns), err)
	}
	for _, turn := range turns {
		if turn.ResolvedAt == nil {
			t.Errorf("turn %s left unresolved", turn.ID)
		}
	}

	records, err := e.turnRepo.EventsByGame(context.Background(), game.ID)
	if err != nil || len(records) == 0 {
		t.Fatalf("expected an event log, got %d (%v)", len(records), err)
	}
	if records[len(records)-1].Type != string(impetus.EventGameOver) {
		t.Errorf("expected final event game_over, got %s", records[len(records)-1].Type)
	}
}

func TestIntegrationRecovery(t *testing.T) {
	e := setupEnv(t)
	svc, _ := newServices(e)
	alice := createUser(t, e, "alice", "Alice")
	bob := createUser(t, e, "bob", "Bob")

	game, err := svc.CreateGame(context.Background(), "Recover", alice.ID, "5m", 2, 0, 3, 41, "", false)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if err := svc.JoinGame(context.Background(), game.ID, bob.ID); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := svc.StartGame(context.Background(), game.ID, alice.ID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	snapBefore, err := e.cache.GetGameState(context.Background(), game.ID)
	if err != nil || snapBefore == nil {
		t.Fatalf("expected a cached snapshot, got %v (%v)", snapBefore, err)
	}

	// A fresh service over the same stores, as after a restart.
	recovered := NewPlayService(e.gameRepo, e.turnRepo, e.cache, nil)
	if err := recovered.RecoverActiveGames(context.Background()); err != nil {
		t.Fatalf("RecoverActiveGames failed: %v", err)
	}

	snapAfter, err := e.cache.GetGameState(context.Background(), game.ID)
	if err != nil || snapAfter == nil {
		t.Fatalf("expected a restored snapshot, got %v (%v)", snapAfter, err)
	}
	if !bytes.Equal(snapBefore, snapAfter) {
		t.Error("expected the replayed snapshot to match the live one")
	}

	opts, err := recovered.GetOptions(context.Background(), game.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetOptions after recovery failed: %v", err)
	}
	if len(opts.Factions) == 0 {
		t.Fatal("expected guidable factions after recovery")
	}
	if err := recovered.SubmitAction(context.Background(), game.ID, alice.ID, impetus.Action{GuideTarget: opts.Factions[0]}); err != nil {
		t.Fatalf("SubmitAction after recovery failed: %v", err)
	}
}

func TestIntegrationMessaging(t *testing.T) {
	e := setupEnv(t)
	svc, _ := newServices(e)
	alice := createUser(t, e, "alice", "Alice")
	bob := createUser(t, e, "bob", "Bob")
	carol := createUser(t, e, "carol", "Carol")

	game, err := svc.CreateGame(context.Background(), "Chat", alice.ID, "5m", 3, 0, 3, 51, "", false)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if err := svc.JoinGame(context.Background(), game.ID, bob.ID); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if err := svc.JoinGame(context.Background(), game.ID, carol.ID); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	if _, err := e.msgRepo.Create(context.Background(), game.ID, alice.ID, "", "hello all", 1); err != nil {
		t.Fatalf("create public message: %v", err)
	}
	if _, err := e.msgRepo.Create(context.Background(), game.ID, alice.ID, bob.ID, "psst", 1); err != nil {
		t.Fatalf("create private message: %v", err)
	}

	bobView, err := e.msgRepo.ListByGame(context.Background(), game.ID, bob.ID)
	if err != nil {
		t.Fatalf("ListByGame failed: %v", err)
	}
	if len(bobView) != 2 {
		t.Errorf("expected bob to see 2 messages, got %d", len(bobView))
	}

	carolView, err := e.msgRepo.ListByGame(context.Background(), game.ID, carol.ID)
	if err != nil {
		t.Fatalf("ListByGame failed: %v", err)
	}
	if len(carolView) != 1 {
		t.Errorf("expected carol to see 1 message, got %d", len(carolView))
	}
	if len(carolView) == 1 && carolView[0].Content != "hello all" {
		t.Errorf("expected the public message, got %q", carolView[0].Content)
	}
}
