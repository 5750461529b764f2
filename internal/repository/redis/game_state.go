package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis game state.
func stateKey(gameID string) string            { return "game:" + gameID + ":state" }
func actionKey(gameID, spiritID string) string { return "game:" + gameID + ":action:" + spiritID }
func readyKey(gameID string) string            { return "game:" + gameID + ":ready" }
func timerKey(gameID string) string            { return "game:" + gameID + ":timer" }

// SetGameState stores the live game state JSON.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), 0).Err()
}

// GetGameState retrieves the live game state JSON.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetAction stores a spirit's pending action for the current wait.
func (c *Client) SetAction(ctx context.Context, gameID, spiritID string, action json.RawMessage) error {
	return c.rdb.Set(ctx, actionKey(gameID, spiritID), []byte(action), 0).Err()
}

// GetAction retrieves a spirit's submitted action.
func (c *Client) GetAction(ctx context.Context, gameID, spiritID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, actionKey(gameID, spiritID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return json.RawMessage(data), nil
}

// GetAllActions retrieves actions from all spirits that have submitted.
func (c *Client) GetAllActions(ctx context.Context, gameID string, spirits []string) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage)
	for _, spirit := range spirits {
		data, err := c.GetAction(ctx, gameID, spirit)
		if err != nil {
			return nil, err
		}
		if data != nil {
			result[spirit] = data
		}
	}
	return result, nil
}

// MarkReady adds a spirit to the ready set for the game.
func (c *Client) MarkReady(ctx context.Context, gameID, spiritID string) error {
	return c.rdb.SAdd(ctx, readyKey(gameID), spiritID).Err()
}

// UnmarkReady removes a spirit from the ready set.
func (c *Client) UnmarkReady(ctx context.Context, gameID, spiritID string) error {
	return c.rdb.SRem(ctx, readyKey(gameID), spiritID).Err()
}

// ReadyCount returns how many spirits have marked ready.
func (c *Client) ReadyCount(ctx context.Context, gameID string) (int64, error) {
	return c.rdb.SCard(ctx, readyKey(gameID)).Result()
}

// ReadySpirits returns the set of spirits that have marked ready.
func (c *Client) ReadySpirits(ctx context.Context, gameID string) ([]string, error) {
	return c.rdb.SMembers(ctx, readyKey(gameID)).Result()
}

// turnGracePeriod is the extra time after the displayed deadline before
// turn resolution triggers, giving players a few seconds of leeway.
const turnGracePeriod = 5 * time.Second

// SetTimer creates a timer key with a TTL. When the key expires,
// Redis keyspace notifications trigger turn resolution.
// The TTL includes a grace period so the key expires slightly after the displayed deadline.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + turnGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the timer for a game.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// ClearWaitData removes all actions, ready status, and timer for a game.
// Called after turn resolution to prepare for the next input wait.
func (c *Client) ClearWaitData(ctx context.Context, gameID string, spirits []string) error {
	keys := []string{readyKey(gameID), timerKey(gameID)}
	for _, spirit := range spirits {
		keys = append(keys, actionKey(gameID, spirit))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteGameData removes all Redis data for a game (on game end).
func (c *Client) DeleteGameData(ctx context.Context, gameID string, spirits []string) error {
	keys := []string{stateKey(gameID), readyKey(gameID), timerKey(gameID)}
	for _, spirit := range spirits {
		keys = append(keys, actionKey(gameID, spirit))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
