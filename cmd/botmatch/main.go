// Command botmatch runs offline matches between bot policies. Games
// run entirely in memory against the engine; nothing is persisted.
// Useful for tuning policies and sanity-checking difficulty tiers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/impetus/api/internal/ai"
	"github.com/freeeve/impetus/api/pkg/impetus"
)

type matchResult struct {
	Game    int                `json:"game"`
	Seed    int64              `json:"seed"`
	Turns   int                `json:"turns"`
	Winners []string           `json:"winners"`
	Scores  map[string]float64 `json:"scores"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		spiritCfg  string
		matchup    string
		numSpirits int
		numGames   int
		workers    int
		maxTurns   int
		vpToWin    float64
		sideLen    int
		seed       int64
		jsonOut    bool
	)

	flag.StringVar(&spiritCfg, "p", "", "Spirit config (e.g. spirit-1=hard,*=easy)")
	flag.StringVar(&matchup, "matchup", "", "Shorthand tier-vs-tier (e.g. hard-vs-easy)")
	flag.IntVar(&numSpirits, "spirits", 4, "Number of spirits per game")
	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.IntVar(&maxTurns, "max-turns", 200, "Abandon games that run past this many turns")
	flag.Float64Var(&vpToWin, "vp", 0, "Victory points to win (0 = engine default)")
	flag.IntVar(&sideLen, "side", 0, "Map side length (0 = engine default)")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = time-based)")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")

	flag.Parse()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	spirits := make([]string, numSpirits)
	for i := range spirits {
		spirits[i] = fmt.Sprintf("spirit-%d", i+1)
	}

	var difficulties map[string]string
	switch {
	case spiritCfg != "":
		difficulties = parseSpiritConfig(spiritCfg, spirits)
	case matchup != "":
		difficulties = parseTierVsTier(matchup, spirits)
	default:
		difficulties = parseSpiritConfig("*=easy", spirits)
	}

	policies := make(map[string]ai.Policy, numSpirits)
	for sid, d := range difficulties {
		policies[sid] = ai.PolicyForDifficulty(d)
	}

	results := make([]*matchResult, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	errCount := 0

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			gameSeed := seed + int64(idx)
			result, err := runMatch(idx+1, gameSeed, spirits, policies, impetus.Config{
				SideLength: sideLen,
				VPToWin:    vpToWin,
				Seed:       gameSeed,
			}, maxTurns)
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Game failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = result
			mu.Unlock()

			log.Info().Int("game", idx+1).
				Strs("winners", result.Winners).
				Int("turns", result.Turns).
				Msg("Game completed")
		}(i)
	}

	wg.Wait()

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, spirits, difficulties, errCount)
	}
}

// runMatch plays one game to the end, every spirit driven by its
// configured policy.
func runMatch(num int, seed int64, spirits []string, policies map[string]ai.Policy, cfg impetus.Config, maxTurns int) (*matchResult, error) {
	players := make([]impetus.PlayerInfo, len(spirits))
	for i, sid := range spirits {
		players[i] = impetus.PlayerInfo{SpiritID: sid, Name: sid}
	}

	g, events, err := impetus.NewGame(players, cfg)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed + 1))
	fallback := ai.RandomPolicy{}

	for g.Phase != impetus.PhaseGameOver {
		if g.Turn > maxTurns {
			return nil, fmt.Errorf("game %d exceeded %d turns", num, maxTurns)
		}
		for _, sid := range g.SpiritsNeedingInput() {
			a, err := policies[sid].ChooseAction(g, sid, rng)
			if err != nil {
				a, err = fallback.ChooseAction(g, sid, rng)
				if err != nil {
					return nil, fmt.Errorf("spirit %s stuck: %w", sid, err)
				}
			}
			if err := g.SubmitAction(sid, a); err != nil {
				return nil, fmt.Errorf("spirit %s submit: %w", sid, err)
			}
		}
		events = append(events, g.ResolveCurrentPhase()...)
	}

	result := &matchResult{Game: num, Seed: seed, Turns: g.Turn}
	for _, e := range events {
		if d, ok := e.Data.(impetus.GameOverData); ok {
			result.Winners = d.Winners
			result.Scores = d.Scores
		}
	}
	return result, nil
}

// parseSpiritConfig expands "spirit-1=hard,*=easy" into a per-spirit
// difficulty map. The wildcard fills any spirit not named explicitly.
func parseSpiritConfig(s string, spirits []string) map[string]string {
	wildcard := "easy"
	explicit := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if kv[0] == "*" {
			wildcard = kv[1]
		} else {
			explicit[kv[0]] = kv[1]
		}
	}

	out := make(map[string]string, len(spirits))
	for _, sid := range spirits {
		if d, ok := explicit[sid]; ok {
			out[sid] = d
		} else {
			out[sid] = wildcard
		}
	}
	return out
}

// parseTierVsTier handles "hard-vs-easy" style matchup strings: the
// first spirit gets the first tier, everyone else the second.
func parseTierVsTier(s string, spirits []string) map[string]string {
	parts := strings.SplitN(s, "-vs-", 2)
	if len(parts) != 2 {
		return parseSpiritConfig("*="+s, spirits)
	}
	return parseSpiritConfig(fmt.Sprintf("%s=%s,*=%s", spirits[0], parts[0], parts[1]), spirits)
}

func printSummary(results []*matchResult, spirits []string, difficulties map[string]string, errCount int) {
	type stats struct {
		wins    int
		totalVP float64
		games   int
	}

	bySpirit := make(map[string]*stats, len(spirits))
	for _, sid := range spirits {
		bySpirit[sid] = &stats{}
	}

	completed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		for _, sid := range spirits {
			s := bySpirit[sid]
			s.games++
			s.totalVP += r.Scores[sid]
		}
		for _, w := range r.Winners {
			if s, ok := bySpirit[w]; ok {
				s.wins++
			}
		}
	}

	fmt.Printf("\nResults (%d games):\n", completed)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}

	sorted := append([]string(nil), spirits...)
	sort.Slice(sorted, func(i, j int) bool {
		return bySpirit[sorted[i]].wins > bySpirit[sorted[j]].wins
	})

	for _, sid := range sorted {
		s := bySpirit[sid]
		avgVP := 0.0
		if s.games > 0 {
			avgVP = s.totalVP / float64(s.games)
		}
		fmt.Printf("  %-10s (%s):  %d wins  -- avg VP: %.1f\n",
			sid, difficulties[sid], s.wins, avgVP)
	}
}

func printJSON(results []*matchResult, total, errCount int) {
	out := struct {
		Total   int            `json:"total"`
		Errors  int            `json:"errors"`
		Results []*matchResult `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
