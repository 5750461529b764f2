// Package ai provides decision policies for bot-controlled spirits.
// Policies are stateless; they read the current phase options from the
// engine and produce a single action submission.
package ai

import (
	"errors"
	"math/rand"

	"github.com/freeeve/impetus/api/pkg/impetus"
)

// ErrNoLegalAction is returned when the engine is waiting on a spirit
// but the policy can find nothing valid to submit.
var ErrNoLegalAction = errors.New("ai: no legal action available")

// Policy chooses one action for a spirit the game is blocked on.
// Callers should only invoke ChooseAction for spirits reported by
// SpiritsNeedingInput.
type Policy interface {
	Name() string
	ChooseAction(g *impetus.GameState, spiritID string, rng *rand.Rand) (impetus.Action, error)
}

// PolicyForDifficulty returns the appropriate policy for a bot
// difficulty level.
func PolicyForDifficulty(difficulty string) Policy {
	switch difficulty {
	case "medium":
		return &GreedyPolicy{}
	case "hard":
		return &ShrewdPolicy{}
	default:
		return &RandomPolicy{}
	}
}

func intPtr(n int) *int { return &n }

// agendaPreference picks the first type from prefs that appears in
// cards and returns its index, falling back to index 0.
func agendaPreference(cards []impetus.AgendaType, prefs []impetus.AgendaType) int {
	for _, p := range prefs {
		for i, c := range cards {
			if c == p {
				return i
			}
		}
	}
	return 0
}

// handPreference is agendaPreference over a drawn hand.
func handPreference(hand []impetus.AgendaCard, prefs []impetus.AgendaType) int {
	for _, p := range prefs {
		for i, c := range hand {
			if c.Type == p {
				return i
			}
		}
	}
	return 0
}
