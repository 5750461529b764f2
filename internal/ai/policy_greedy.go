package ai

import (
	"math/rand"

	"github.com/freeeve/impetus/api/pkg/impetus"
)

// GreedyPolicy takes the locally best-looking option each time it is
// asked. It guides the strongest available faction, plays expand when
// the faction can afford it, and always keeps its agenda pool leaning
// toward expansion. It is the "medium" difficulty.
type GreedyPolicy struct{}

func (GreedyPolicy) Name() string { return "greedy" }

// greedyAgendaPrefs orders agendas by immediate value: expansion grows
// scoring territory, trade is safe gold, steal risks regard, change
// pays off only over multiple turns.
var greedyAgendaPrefs = []impetus.AgendaType{
	impetus.AgendaExpand,
	impetus.AgendaTrade,
	impetus.AgendaSteal,
	impetus.AgendaChange,
}

func (p GreedyPolicy) ChooseAction(g *impetus.GameState, spiritID string, rng *rand.Rand) (impetus.Action, error) {
	opts, err := g.GetPhaseOptions(spiritID)
	if err != nil {
		return impetus.Action{}, err
	}
	switch {
	case len(opts.Hand) > 0:
		return impetus.Action{AgendaIndex: intPtr(p.pickAgenda(g, opts))}, nil
	case len(opts.Cards) > 0:
		return impetus.Action{CardIndex: intPtr(agendaPreference(opts.Cards, greedyAgendaPrefs))}, nil
	case len(opts.PoolTypes) > 0:
		return poolEditAction(opts.PoolTypes, impetus.AgendaExpand), nil
	case len(opts.Factions) > 0:
		return impetus.Action{GuideTarget: bestFaction(g, opts.Factions)}, nil
	case len(opts.NeutralHexes) > 0:
		h := frontierHex(g, opts.NeutralHexes)
		return impetus.Action{IdolType: impetus.IdolSpread, IdolQ: intPtr(h.Q), IdolR: intPtr(h.R)}, nil
	}
	return impetus.Action{}, ErrNoLegalAction
}

// pickAgenda prefers expand only when the faction can actually pay for
// it; otherwise it falls down the preference order.
func (GreedyPolicy) pickAgenda(g *impetus.GameState, opts impetus.PhaseOptions) int {
	prefs := greedyAgendaPrefs
	if f := g.Factions[opts.Faction]; f != nil && !canAffordExpand(g, f) {
		prefs = prefs[1:]
	}
	return handPreference(opts.Hand, prefs)
}

func canAffordExpand(g *impetus.GameState, f *impetus.Faction) bool {
	cost := g.HexMap.TerritoryCount(f.ID) - f.Modifier(impetus.AgendaExpand)
	if cost < 0 {
		cost = 0
	}
	return f.Gold >= cost
}

// bestFaction scores candidates by territory and gold.
func bestFaction(g *impetus.GameState, candidates []string) string {
	best := candidates[0]
	bestScore := -1
	for _, fid := range candidates {
		f := g.Factions[fid]
		score := 2*g.HexMap.TerritoryCount(fid) + f.Gold
		if score > bestScore {
			best, bestScore = fid, score
		}
	}
	return best
}

// frontierHex picks the neutral hex touching the most owned territory,
// where an expanding faction is likeliest to claim it.
func frontierHex(g *impetus.GameState, neutral []impetus.HexCoord) impetus.HexCoord {
	best := neutral[0]
	bestOwned := -1
	for _, h := range neutral {
		owned := 0
		for _, n := range h.Neighbors() {
			if g.HexMap.Contains(n) && g.HexMap.OwnerOf(n) != "" {
				owned++
			}
		}
		if owned > bestOwned {
			best, bestOwned = h, owned
		}
	}
	return best
}

// poolEditAction removes the least preferred type present and adds
// want. If want is the only type left it is removed and re-added.
func poolEditAction(pool []impetus.AgendaType, want impetus.AgendaType) impetus.Action {
	remove := pool[0]
	for i := len(greedyAgendaPrefs) - 1; i >= 0; i-- {
		t := greedyAgendaPrefs[i]
		if t == want {
			continue
		}
		for _, p := range pool {
			if p == t {
				return impetus.Action{RemoveType: t, AddType: want}
			}
		}
	}
	return impetus.Action{RemoveType: remove, AddType: want}
}
