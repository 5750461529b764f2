package ai

import (
	"math/rand"

	"github.com/freeeve/impetus/api/pkg/impetus"
)

// ShrewdPolicy extends the greedy heuristics with board awareness: it
// weighs war records when picking a faction, steals when its faction
// outmuscles every neighbor, and matches idol type to how its faction
// is actually scoring. It is the "hard" difficulty.
type ShrewdPolicy struct{}

func (ShrewdPolicy) Name() string { return "shrewd" }

func (p ShrewdPolicy) ChooseAction(g *impetus.GameState, spiritID string, rng *rand.Rand) (impetus.Action, error) {
	opts, err := g.GetPhaseOptions(spiritID)
	if err != nil {
		return impetus.Action{}, err
	}
	switch {
	case len(opts.Hand) > 0:
		return impetus.Action{AgendaIndex: intPtr(p.pickAgenda(g, opts))}, nil
	case len(opts.Cards) > 0:
		return impetus.Action{CardIndex: intPtr(agendaPreference(opts.Cards, p.prefs(g, opts.Faction)))}, nil
	case len(opts.PoolTypes) > 0:
		want := impetus.AgendaExpand
		if f := g.Factions[opts.Faction]; f != nil && dominatesNeighbors(g, f.ID) {
			want = impetus.AgendaSteal
		}
		return poolEditAction(opts.PoolTypes, want), nil
	case len(opts.Factions) > 0:
		return impetus.Action{GuideTarget: p.bestFaction(g, opts.Factions)}, nil
	case len(opts.NeutralHexes) > 0:
		h := frontierHex(g, opts.NeutralHexes)
		return impetus.Action{IdolType: p.idolFor(g, frontierOwner(g, h)), IdolQ: intPtr(h.Q), IdolR: intPtr(h.R)}, nil
	}
	return impetus.Action{}, ErrNoLegalAction
}

// prefs leans into stealing when the faction can win the wars it
// provokes, otherwise it plays like the greedy policy.
func (ShrewdPolicy) prefs(g *impetus.GameState, fid string) []impetus.AgendaType {
	if fid != "" && dominatesNeighbors(g, fid) {
		return []impetus.AgendaType{
			impetus.AgendaSteal,
			impetus.AgendaExpand,
			impetus.AgendaTrade,
			impetus.AgendaChange,
		}
	}
	return greedyAgendaPrefs
}

func (p ShrewdPolicy) pickAgenda(g *impetus.GameState, opts impetus.PhaseOptions) int {
	prefs := p.prefs(g, opts.Faction)
	if f := g.Factions[opts.Faction]; f != nil && !canAffordExpand(g, f) {
		trimmed := make([]impetus.AgendaType, 0, len(prefs)-1)
		for _, t := range prefs {
			if t != impetus.AgendaExpand {
				trimmed = append(trimmed, t)
			}
		}
		prefs = trimmed
	}
	return handPreference(opts.Hand, prefs)
}

// bestFaction scores candidates by territory, gold, and recent war
// performance, and penalizes factions already mired in wars they are
// likely to lose.
func (ShrewdPolicy) bestFaction(g *impetus.GameState, candidates []string) string {
	best := candidates[0]
	bestScore := -1 << 31
	for _, fid := range candidates {
		f := g.Factions[fid]
		score := 3*g.HexMap.TerritoryCount(fid) + f.Gold + 2*f.WarsWonThisTurn
		for _, w := range g.Wars {
			if !w.Involves(fid) {
				continue
			}
			if g.HexMap.TerritoryCount(w.Other(fid)) > g.HexMap.TerritoryCount(fid) {
				score -= 4
			}
		}
		if score > bestScore {
			best, bestScore = fid, score
		}
	}
	return best
}

// idolFor matches the idol to the nearby faction's likeliest score
// source: battle idols next to warring factions, affluence next to
// rich ones, spread otherwise.
func (ShrewdPolicy) idolFor(g *impetus.GameState, fid string) impetus.IdolType {
	if fid == "" {
		return impetus.IdolSpread
	}
	for _, w := range g.Wars {
		if w.Involves(fid) {
			return impetus.IdolBattle
		}
	}
	if g.Factions[fid].Gold >= 3 {
		return impetus.IdolAffluence
	}
	return impetus.IdolSpread
}

// dominatesNeighbors reports whether fid holds strictly more territory
// than every live bordering faction.
func dominatesNeighbors(g *impetus.GameState, fid string) bool {
	own := g.HexMap.TerritoryCount(fid)
	dominated := false
	for _, o := range g.FactionOrder() {
		if o == fid || g.Factions[o].Eliminated || !g.HexMap.AreNeighbors(fid, o) {
			continue
		}
		if g.HexMap.TerritoryCount(o) >= own {
			return false
		}
		dominated = true
	}
	return dominated
}

// frontierOwner returns the owner of the territory bordering h with
// the most adjacent claims, or "" for an isolated hex.
func frontierOwner(g *impetus.GameState, h impetus.HexCoord) string {
	counts := make(map[string]int)
	for _, n := range h.Neighbors() {
		if !g.HexMap.Contains(n) {
			continue
		}
		if owner := g.HexMap.OwnerOf(n); owner != "" {
			counts[owner]++
		}
	}
	best, bestCount := "", 0
	for _, fid := range g.FactionOrder() {
		if counts[fid] > bestCount {
			best, bestCount = fid, counts[fid]
		}
	}
	return best
}
