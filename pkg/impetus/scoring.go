package impetus

// resolveScoring awards victory points to each faction's worshipped
// spirit. Every idol standing in the faction's territory counts, no
// matter who placed it, weighted by the turn's wars won, gold gained,
// and territories gained. Possession alone scores nothing.
func (g *GameState) resolveScoring() []Event {
	var events []Event
	for _, fid := range g.factionOrder {
		f := g.Factions[fid]
		if f.WorshipSpirit == "" {
			continue
		}
		s, ok := g.Spirits[f.WorshipSpirit]
		if !ok {
			continue
		}
		battle := g.HexMap.CountIdols("", fid, IdolBattle)
		affluence := g.HexMap.CountIdols("", fid, IdolAffluence)
		spread := g.HexMap.CountIdols("", fid, IdolSpread)
		vp := float64(battle)*BattleIdolVP*float64(f.WarsWonThisTurn) +
			float64(affluence)*AffluenceIdolVP*float64(f.GoldGainedThisTurn) +
			float64(spread)*SpreadIdolVP*float64(f.TerritoriesGainedThisTurn)
		if vp <= 0 {
			continue
		}
		s.VictoryPoints += vp
		events = append(events, newEvent(VPScoredData{
			Spirit:            s.ID,
			Faction:           fid,
			BattleIdols:       battle,
			AffluenceIdols:    affluence,
			SpreadIdols:       spread,
			WarsWon:           f.WarsWonThisTurn,
			GoldGained:        f.GoldGainedThisTurn,
			TerritoriesGained: f.TerritoriesGainedThisTurn,
			VPGained:          vp,
			TotalVP:           s.VictoryPoints,
		}))
	}
	return events
}
