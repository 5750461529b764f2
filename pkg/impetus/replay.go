package impetus

import "fmt"

// Replay reconstructs a game state by applying an ordered event log to
// a fresh setup with the same players and config. Every event carries
// its full state delta, so no RNG is consulted: after the last event
// the rebuilt state's snapshot matches the live game's snapshot at the
// same point in the log.
func Replay(players []PlayerInfo, cfg Config, events []Event) (*GameState, error) {
	g, err := newGameState(players, cfg)
	if err != nil {
		return nil, err
	}
	for i, e := range events {
		if err := g.apply(e); err != nil {
			return nil, fmt.Errorf("replay event %d (%s): %w", i, e.Type, err)
		}
	}
	return g, nil
}

func (g *GameState) apply(e Event) error {
	switch d := payload(e).(type) {
	case TurnStartData:
		for _, fid := range g.factionOrder {
			g.Factions[fid].ResetTurnTracking()
		}
		g.Turn = d.Turn
		g.Phase = PhaseVagrant

	case IdolPlacedData:
		g.HexMap.PlaceIdol(d.Spirit, d.IdolType, d.Hex)

	case GuidedData:
		s, ok := g.Spirits[d.Spirit]
		if !ok {
			return fmt.Errorf("unknown spirit %q", d.Spirit)
		}
		s.Possess(d.Faction)
		g.Factions[d.Faction].GuidingSpirit = d.Spirit

	case GuideContestedData:
		// No state change.

	case PresenceGainedData:
		g.Factions[d.Faction].WorshipSpirit = d.Spirit

	case PresenceReplacedData:
		g.Factions[d.Faction].WorshipSpirit = d.Spirit

	case AgendaChosenData:
		g.Spirits[d.Spirit].SpendInfluence(1)

	case AgendaRandomData, ChangeDrawData, SpoilsDrawnData, SpoilsChoiceData:
		// Draws leave the pool untouched.

	case StealData:
		f := g.Factions[d.Faction]
		f.AddGold(d.GoldGained)
		for _, v := range d.Neighbors {
			f.ModifyRegard(v, -d.RegardPenalty)
			g.Factions[v].ModifyRegard(d.Faction, -d.RegardPenalty)
		}
		for _, v := range d.Neighbors {
			if loss, ok := d.Losses[v]; ok {
				g.Factions[v].AddGold(-loss)
			}
		}

	case TradeData:
		f := g.Factions[d.Faction]
		f.AddGold(d.GoldGained)
		for _, o := range d.CoTraders {
			f.ModifyRegard(o, d.RegardGain)
			g.Factions[o].ModifyRegard(d.Faction, d.RegardGain)
		}

	case TradeSpoilsBonusData:
		f := g.Factions[d.Faction]
		f.AddGold(d.GoldGained)
		f.ModifyRegard(d.SpoilsTrader, d.RegardGain)
		g.Factions[d.SpoilsTrader].ModifyRegard(d.Faction, d.RegardGain)

	case ExpandData:
		f := g.Factions[d.Faction]
		f.Gold -= d.Cost
		g.HexMap.Claim(d.Hex, d.Faction)
		f.TerritoriesGainedThisTurn++

	case ExpandFailedData:
		g.Factions[d.Faction].AddGold(d.GoldGained)

	case ExpandSpoilsData:
		g.HexMap.Claim(d.Hex, d.Faction)
		g.Factions[d.Faction].TerritoriesGainedThisTurn++

	case ChangeData:
		g.Factions[d.Faction].AddChangeModifier(d.Modifier)

	case WarEruptedData:
		g.Wars = append(g.Wars, &War{ID: d.WarID, FactionA: d.FactionA, FactionB: d.FactionB})

	case WarRipenedData:
		w := g.warByID(d.WarID)
		if w == nil {
			return fmt.Errorf("unknown war %q", d.WarID)
		}
		bg := d.Battleground
		w.Battleground = &bg
		w.Ripe = true

	case WarResolvedData:
		if d.Winner != "" {
			g.Factions[d.Winner].AddGold(1)
			g.Factions[d.Loser].AddGold(-1)
			g.Factions[d.Winner].WarsWonThisTurn++
		}
		g.removeWar(d.WarID)

	case WarEndedData:
		g.removeWar(d.WarID)

	case VPScoredData:
		g.Spirits[d.Spirit].VictoryPoints = d.TotalVP

	case EjectedData:
		f := g.Factions[d.Faction]
		if validAgendaType(d.RemoveType) && validAgendaType(d.AddType) {
			f.ReplaceAgendaCard(d.RemoveType, d.AddType)
		}
		f.GuidingSpirit = ""
		g.Spirits[d.Spirit].BecomeVagrant()

	case FactionEliminatedData:
		f := g.Factions[d.Faction]
		f.Eliminated = true
		f.WorshipSpirit = ""

	case GameOverData:
		g.Phase = PhaseGameOver

	default:
		return fmt.Errorf("unhandled event data %T", e.Data)
	}
	return nil
}

// payload normalizes event data to its value form, so events decoded
// from JSON (pointer payloads) and events built in process apply the
// same way.
func payload(e Event) EventData {
	switch v := e.Data.(type) {
	case *TurnStartData:
		return *v
	case *IdolPlacedData:
		return *v
	case *GuidedData:
		return *v
	case *GuideContestedData:
		return *v
	case *PresenceGainedData:
		return *v
	case *PresenceReplacedData:
		return *v
	case *AgendaChosenData:
		return *v
	case *AgendaRandomData:
		return *v
	case *ChangeDrawData:
		return *v
	case *StealData:
		return *v
	case *TradeData:
		return *v
	case *TradeSpoilsBonusData:
		return *v
	case *ExpandData:
		return *v
	case *ExpandFailedData:
		return *v
	case *ExpandSpoilsData:
		return *v
	case *ChangeData:
		return *v
	case *WarEruptedData:
		return *v
	case *WarRipenedData:
		return *v
	case *WarResolvedData:
		return *v
	case *WarEndedData:
		return *v
	case *SpoilsDrawnData:
		return *v
	case *SpoilsChoiceData:
		return *v
	case *VPScoredData:
		return *v
	case *EjectedData:
		return *v
	case *FactionEliminatedData:
		return *v
	case *GameOverData:
		return *v
	}
	return e.Data
}

func (g *GameState) warByID(id string) *War {
	for _, w := range g.Wars {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (g *GameState) removeWar(id string) {
	for i, w := range g.Wars {
		if w.ID == id {
			g.Wars = append(g.Wars[:i], g.Wars[i+1:]...)
			return
		}
	}
}
