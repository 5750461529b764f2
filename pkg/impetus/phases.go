package impetus

// ResolveCurrentPhase advances the game once all required inputs are
// in. It applies every consequence of the phase (or sub-state) and
// returns the events it produced, in order. Callers check
// AllInputsReceived first; resolving early is a programming error and
// the phase simply resolves with the inputs it has.
func (g *GameState) ResolveCurrentPhase() []Event {
	switch g.Phase {
	case PhaseVagrant:
		return g.resolveVagrantPhase()
	case PhaseAgenda:
		return g.resolveAgendaPhase()
	case PhaseWar:
		return g.resolveWarPhase()
	case PhaseScoring:
		return g.resolveScoringPhase()
	case PhaseCleanup:
		return g.resolveCleanup()
	}
	return nil
}

func (g *GameState) resolveVagrantPhase() []Event {
	var events []Event

	// Idol placements land first so that a newly placed idol counts in
	// the same turn's worship contests.
	for _, sid := range g.spiritOrder {
		a, ok := g.pendingActions[sid]
		if !ok || a.IdolType == "" {
			continue
		}
		h := HexCoord{*a.IdolQ, *a.IdolR}
		_, displaced := g.HexMap.PlaceIdol(sid, a.IdolType, h)
		events = append(events, newEvent(IdolPlacedData{
			Spirit:   sid,
			IdolType: a.IdolType,
			Hex:      h,
			Replaced: displaced,
		}))
	}

	// Group possession intents by target. A lone claimant takes the
	// faction; rivals cancel each other out with no state change.
	attempts := make(map[string][]string)
	for _, sid := range g.spiritOrder {
		a, ok := g.pendingActions[sid]
		if !ok || a.GuideTarget == "" {
			continue
		}
		attempts[a.GuideTarget] = append(attempts[a.GuideTarget], sid)
	}
	for _, fid := range g.factionOrder {
		claimants := attempts[fid]
		if len(claimants) == 0 {
			continue
		}
		if len(claimants) > 1 {
			events = append(events, newEvent(GuideContestedData{
				Spirits: claimants,
				Faction: fid,
			}))
			continue
		}
		sid := claimants[0]
		f := g.Factions[fid]
		g.Spirits[sid].Possess(fid)
		f.GuidingSpirit = sid
		events = append(events, newEvent(GuidedData{Spirit: sid, Faction: fid}))
		events = append(events, g.checkWorship(f, sid)...)
	}

	g.pendingActions = make(map[string]Action)
	g.Phase = PhaseAgenda
	return events
}

// checkWorship runs the worship contest when a spirit guides or leaves
// a faction. An unworshipped faction adopts the spirit outright; an
// incumbent is displaced when the challenger has at least as many
// idols in the faction's territory.
func (g *GameState) checkWorship(f *Faction, spiritID string) []Event {
	if f.WorshipSpirit == "" {
		f.WorshipSpirit = spiritID
		return []Event{newEvent(PresenceGainedData{Spirit: spiritID, Faction: f.ID})}
	}
	if f.WorshipSpirit == spiritID {
		return nil
	}
	incumbent := g.HexMap.CountIdols(f.WorshipSpirit, f.ID, "")
	challenger := g.HexMap.CountIdols(spiritID, f.ID, "")
	if challenger < incumbent {
		return nil
	}
	old := f.WorshipSpirit
	f.WorshipSpirit = spiritID
	return []Event{newEvent(PresenceReplacedData{
		Spirit:    spiritID,
		OldSpirit: old,
		Faction:   f.ID,
	})}
}

func (g *GameState) resolveAgendaPhase() []Event {
	var events []Event
	if !g.agendaPrepared {
		events = g.prepareAgendas()
		if len(g.changePending) > 0 {
			return events
		}
	}
	if len(g.changePending) > 0 {
		return events
	}
	if len(g.ejectionPending) == 0 {
		events = append(events, g.resolveAgendaBatch(g.storedChoices, g.changeChosen, nil)...)
		g.collectEjections()
		if len(g.ejectionPending) > 0 {
			return events
		}
	}
	events = append(events, g.processEjections()...)
	g.finishAgendaPhase()
	return events
}

// prepareAgendas turns submitted agenda indexes and unguided factions'
// random draws into the stored batch, charges every guiding spirit one
// influence, and opens change sub-choices for guided factions playing
// Change.
func (g *GameState) prepareAgendas() []Event {
	var events []Event
	g.agendaPrepared = true
	g.storedChoices = make(agendaBatch)

	for _, sid := range g.spiritOrder {
		a, ok := g.pendingActions[sid]
		if !ok {
			continue
		}
		s := g.Spirits[sid]
		hand := g.drawnHands[sid]
		chosen := hand[*a.AgendaIndex]
		g.storedChoices[s.Faction] = append(g.storedChoices[s.Faction], chosen.Type)
		events = append(events, newEvent(AgendaChosenData{
			Spirit:  sid,
			Faction: s.Faction,
			Agenda:  chosen.Type,
		}))
	}

	for _, fid := range g.factionOrder {
		f := g.Factions[fid]
		if f.Eliminated {
			continue
		}
		if _, chosen := g.storedChoices[fid]; chosen {
			continue
		}
		card := f.DrawRandomAgenda(g.rng)
		g.storedChoices[fid] = append(g.storedChoices[fid], card.Type)
		events = append(events, newEvent(AgendaRandomData{Faction: fid, Agenda: card.Type}))
	}

	for _, sid := range g.spiritOrder {
		s := g.Spirits[sid]
		if !s.Vagrant && s.Faction != "" {
			s.SpendInfluence(1)
		}
	}

	g.normalTraders = nil
	for _, fid := range g.factionOrder {
		if g.storedChoices.count(fid, AgendaTrade) > 0 {
			g.normalTraders = append(g.normalTraders, fid)
		}
	}

	// A guided faction playing Change defers the modifier pick to its
	// spirit, who sees 1+influence cards from the change deck.
	g.changeChosen = make(map[string][]AgendaType)
	for _, fid := range g.factionOrder {
		if g.storedChoices.count(fid, AgendaChange) == 0 {
			continue
		}
		f := g.Factions[fid]
		if f.GuidingSpirit == "" {
			continue
		}
		s := g.Spirits[f.GuidingSpirit]
		if s.Influence <= 0 {
			continue
		}
		cards := sampleChangeCards(1+s.Influence, g.rng)
		g.changePending[s.ID] = cards
		events = append(events, newEvent(ChangeDrawData{
			Spirit:  s.ID,
			Faction: fid,
			Cards:   cards,
		}))
	}

	g.pendingActions = make(map[string]Action)
	g.drawnHands = make(map[string][]AgendaCard)
	return events
}

// collectEjections marks every guiding spirit drained to zero
// influence; each must edit the vacated faction's pool before the
// phase can finalize.
func (g *GameState) collectEjections() {
	for _, sid := range g.spiritOrder {
		s := g.Spirits[sid]
		if !s.Vagrant && s.Faction != "" && s.Influence == 0 {
			g.ejectionPending[sid] = s.Faction
		}
	}
}

// processEjections applies submitted pool edits and turns the drained
// spirits loose. A departing spirit gets a final worship contest on
// its way out.
func (g *GameState) processEjections() []Event {
	var events []Event
	for _, sid := range g.spiritOrder {
		fid, ok := g.ejectionPending[sid]
		if !ok {
			continue
		}
		s := g.Spirits[sid]
		f := g.Factions[fid]
		edit := g.ejectionChoices[sid]
		if validAgendaType(edit.remove) && validAgendaType(edit.add) {
			f.ReplaceAgendaCard(edit.remove, edit.add)
		}
		f.GuidingSpirit = ""
		events = append(events, g.checkWorship(f, sid)...)
		s.BecomeVagrant()
		events = append(events, newEvent(EjectedData{
			Spirit:     sid,
			Faction:    fid,
			RemoveType: edit.remove,
			AddType:    edit.add,
		}))
	}
	g.ejectionPending = make(map[string]string)
	g.ejectionChoices = make(map[string]poolEdit)
	return events
}

func (g *GameState) finishAgendaPhase() {
	g.storedChoices = make(agendaBatch)
	g.changeChosen = make(map[string][]AgendaType)
	g.agendaPrepared = false
	g.Phase = PhaseWar
}

func (g *GameState) resolveWarPhase() []Event {
	if g.warsResolved {
		// Re-entered after spoils choices came in.
		if len(g.spoilsPending) > 0 {
			return nil
		}
		return g.finalizeSpoils()
	}
	g.warsResolved = true
	var events []Event

	// Powers are snapshotted up front so simultaneous wars cannot see
	// each other's territory changes.
	powers := make(map[string]int, len(g.Factions))
	for _, fid := range g.factionOrder {
		powers[fid] = g.HexMap.TerritoryCount(fid)
	}

	var results []WarResult
	remaining := g.Wars[:0]
	for _, w := range g.Wars {
		if !w.Ripe {
			remaining = append(remaining, w)
			continue
		}
		res := w.Resolve(powers[w.FactionA], powers[w.FactionB], g.rng)
		results = append(results, res)
		events = append(events, newEvent(WarResolvedData{
			WarID:        res.WarID,
			FactionA:     res.FactionA,
			FactionB:     res.FactionB,
			RollA:        res.RollA,
			RollB:        res.RollB,
			PowerA:       res.PowerA,
			PowerB:       res.PowerB,
			Winner:       res.Winner,
			Loser:        res.Loser,
			Battleground: res.Battleground,
		}))
	}
	g.Wars = remaining

	for _, res := range results {
		if res.Winner == "" {
			continue
		}
		g.Factions[res.Winner].AddGold(1)
		g.Factions[res.Loser].AddGold(-1)
		g.Factions[res.Winner].WarsWonThisTurn++
	}

	// Wars that erupted earlier pick their battleground now and fight
	// next turn. A pair with no shared border stays unripe and retries.
	for _, w := range g.Wars {
		if w.Ripe {
			continue
		}
		if w.Ripen(g.HexMap, g.rng) {
			events = append(events, newEvent(WarRipenedData{
				WarID:        w.ID,
				FactionA:     w.FactionA,
				FactionB:     w.FactionB,
				Battleground: *w.Battleground,
			}))
		}
	}

	events = append(events, g.collectSpoils(results)...)
	if len(g.spoilsPending) > 0 {
		return events
	}
	return append(events, g.finalizeSpoils()...)
}

// collectSpoils draws each winner's bonus agenda. A winner guided by a
// spirit with influence draws 1+influence cards; more than one
// distinct type means the spirit chooses, otherwise the draw settles
// itself. Unguided winners draw a single card.
func (g *GameState) collectSpoils(results []WarResult) []Event {
	var events []Event
	for _, res := range results {
		if res.Winner == "" {
			continue
		}
		f := g.Factions[res.Winner]
		if f.GuidingSpirit != "" {
			s := g.Spirits[f.GuidingSpirit]
			if s.Influence > 0 {
				drawn := f.DrawAgendaCards(1+s.Influence, g.rng)
				cards := make([]AgendaType, len(drawn))
				distinct := make(map[AgendaType]bool)
				for i, c := range drawn {
					cards[i] = c.Type
					distinct[c.Type] = true
				}
				if len(distinct) > 1 {
					g.spoilsPending[s.ID] = append(g.spoilsPending[s.ID], &spoilsEntry{
						winner:       res.Winner,
						loser:        res.Loser,
						cards:        cards,
						battleground: res.Battleground,
					})
					events = append(events, newEvent(SpoilsChoiceData{
						Spirit:  s.ID,
						Faction: res.Winner,
						Cards:   cards,
					}))
					continue
				}
				g.spoilsResolved = append(g.spoilsResolved, resolvedSpoils{
					winner:       res.Winner,
					loser:        res.Loser,
					agenda:       cards[0],
					battleground: res.Battleground,
				})
				events = append(events, newEvent(SpoilsDrawnData{
					Faction: res.Winner,
					Spirit:  s.ID,
					Agenda:  cards[0],
				}))
				continue
			}
		}
		card := f.DrawRandomAgenda(g.rng)
		g.spoilsResolved = append(g.spoilsResolved, resolvedSpoils{
			winner:       res.Winner,
			loser:        res.Loser,
			agenda:       card.Type,
			battleground: res.Battleground,
		})
		events = append(events, newEvent(SpoilsDrawnData{
			Faction: res.Winner,
			Agenda:  card.Type,
		}))
	}
	return events
}

// finalizeSpoils resolves the turn's settled spoils as one batch,
// cancels wars fought over conquered battlegrounds, checks
// eliminations, and moves to scoring.
func (g *GameState) finalizeSpoils() []Event {
	var events []Event
	if len(g.spoilsResolved) > 0 {
		batch := make(agendaBatch)
		chosen := make(map[string][]AgendaType)
		conquests := make(map[string][]HexCoord)
		claims := make(map[HexCoord]int)
		var claimed []HexCoord
		for _, r := range g.spoilsResolved {
			// Spirit-chosen spoils draws emit their confirmation here so
			// the log shows all draws before the batch resolves.
			if r.fromChoice {
				events = append(events, newEvent(SpoilsDrawnData{
					Faction: r.winner,
					Spirit:  g.Factions[r.winner].GuidingSpirit,
					Agenda:  r.agenda,
				}))
			}
			batch[r.winner] = append(batch[r.winner], r.agenda)
			if r.modifier != "" {
				chosen[r.winner] = append(chosen[r.winner], r.modifier)
			}
			if r.agenda == AgendaExpand && r.battleground != nil {
				for _, h := range r.battleground {
					if g.HexMap.OwnerOf(h) == r.loser {
						conquests[r.winner] = append(conquests[r.winner], h)
						claims[h]++
						claimed = append(claimed, h)
						break
					}
				}
			}
		}
		contested := make(map[HexCoord]bool)
		for h, n := range claims {
			if n > 1 {
				contested[h] = true
			}
		}
		sp := &spoilsResolution{
			normalTraders: g.normalTraders,
			conquests:     conquests,
			contested:     contested,
		}
		events = append(events, g.resolveAgendaBatch(batch, chosen, sp)...)
		for _, h := range claimed {
			if !contested[h] {
				events = append(events, g.cancelWarsOnHex(h)...)
			}
		}
	}
	g.spoilsResolved = nil
	events = append(events, g.checkEliminations()...)
	g.Phase = PhaseScoring
	return events
}

// cancelWarsOnHex ends every war whose battleground includes the hex.
func (g *GameState) cancelWarsOnHex(h HexCoord) []Event {
	var events []Event
	remaining := g.Wars[:0]
	for _, w := range g.Wars {
		if w.OnHex(h) {
			events = append(events, newEvent(WarEndedData{
				WarID:    w.ID,
				FactionA: w.FactionA,
				FactionB: w.FactionB,
				Reason:   "battleground_conquered",
			}))
			continue
		}
		remaining = append(remaining, w)
	}
	g.Wars = remaining
	return events
}

// checkEliminations marks factions with no territory left, ejects
// their guides, clears worship, and ends their wars.
func (g *GameState) checkEliminations() []Event {
	var events []Event
	for _, fid := range g.factionOrder {
		f := g.Factions[fid]
		if f.Eliminated || g.HexMap.TerritoryCount(fid) > 0 {
			continue
		}
		f.Eliminated = true
		events = append(events, newEvent(FactionEliminatedData{Faction: fid}))
		if f.GuidingSpirit != "" {
			sid := f.GuidingSpirit
			f.GuidingSpirit = ""
			g.Spirits[sid].BecomeVagrant()
			events = append(events, newEvent(EjectedData{Spirit: sid, Faction: fid}))
		}
		f.WorshipSpirit = ""
		remaining := g.Wars[:0]
		for _, w := range g.Wars {
			if w.Involves(fid) {
				events = append(events, newEvent(WarEndedData{
					WarID:    w.ID,
					FactionA: w.FactionA,
					FactionB: w.FactionB,
					Reason:   "faction_eliminated",
				}))
				continue
			}
			remaining = append(remaining, w)
		}
		g.Wars = remaining
	}
	return events
}

func (g *GameState) resolveScoringPhase() []Event {
	events := g.resolveScoring()

	var winners []string
	maxVP := 0.0
	for _, sid := range g.spiritOrder {
		vp := g.Spirits[sid].VictoryPoints
		if vp >= g.VPToWin && vp > maxVP {
			maxVP = vp
		}
	}
	if maxVP > 0 {
		for _, sid := range g.spiritOrder {
			if g.Spirits[sid].VictoryPoints == maxVP {
				winners = append(winners, sid)
			}
		}
		scores := make(map[string]float64, len(g.Spirits))
		for _, sid := range g.spiritOrder {
			scores[sid] = g.Spirits[sid].VictoryPoints
		}
		g.Phase = PhaseGameOver
		return append(events, newEvent(GameOverData{Winners: winners, Scores: scores}))
	}

	g.Phase = PhaseCleanup
	return events
}

func (g *GameState) resolveCleanup() []Event {
	for _, fid := range g.factionOrder {
		g.Factions[fid].ResetTurnTracking()
	}
	g.pendingActions = make(map[string]Action)
	g.drawnHands = make(map[string][]AgendaCard)
	g.changePending = make(map[string][]AgendaType)
	g.changeChosen = make(map[string][]AgendaType)
	g.ejectionPending = make(map[string]string)
	g.ejectionChoices = make(map[string]poolEdit)
	g.spoilsPending = make(map[string][]*spoilsEntry)
	g.spoilsResolved = nil
	g.normalTraders = nil
	g.agendaPrepared = false
	g.warsResolved = false

	g.Turn++
	g.Phase = PhaseVagrant
	return []Event{newEvent(TurnStartData{Turn: g.Turn})}
}
