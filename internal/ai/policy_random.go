package ai

import (
	"math/rand"

	"github.com/freeeve/impetus/api/pkg/impetus"
)

// RandomPolicy picks uniformly among the legal options. It is the
// "easy" difficulty and the fallback when a difficulty is unknown.
type RandomPolicy struct{}

func (RandomPolicy) Name() string { return "random" }

func (RandomPolicy) ChooseAction(g *impetus.GameState, spiritID string, rng *rand.Rand) (impetus.Action, error) {
	opts, err := g.GetPhaseOptions(spiritID)
	if err != nil {
		return impetus.Action{}, err
	}
	switch {
	case len(opts.Hand) > 0:
		return impetus.Action{AgendaIndex: intPtr(rng.Intn(len(opts.Hand)))}, nil
	case len(opts.Cards) > 0:
		return impetus.Action{CardIndex: intPtr(rng.Intn(len(opts.Cards)))}, nil
	case len(opts.PoolTypes) > 0:
		remove := opts.PoolTypes[rng.Intn(len(opts.PoolTypes))]
		adds := []impetus.AgendaType{impetus.AgendaSteal, impetus.AgendaTrade, impetus.AgendaExpand, impetus.AgendaChange}
		return impetus.Action{RemoveType: remove, AddType: adds[rng.Intn(len(adds))]}, nil
	case len(opts.Factions) > 0:
		return impetus.Action{GuideTarget: opts.Factions[rng.Intn(len(opts.Factions))]}, nil
	case len(opts.NeutralHexes) > 0:
		h := opts.NeutralHexes[rng.Intn(len(opts.NeutralHexes))]
		t := opts.IdolTypes[rng.Intn(len(opts.IdolTypes))]
		return impetus.Action{IdolType: t, IdolQ: intPtr(h.Q), IdolR: intPtr(h.R)}, nil
	}
	return impetus.Action{}, ErrNoLegalAction
}
