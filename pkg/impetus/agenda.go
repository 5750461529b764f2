package impetus

import "math/rand"

// agendaBatch maps a faction id to the agenda instances it resolves
// this batch. The agenda phase contributes one instance per faction;
// spoils of war can contribute several.
type agendaBatch map[string][]AgendaType

func (b agendaBatch) count(fid string, t AgendaType) int {
	n := 0
	for _, a := range b[fid] {
		if a == t {
			n++
		}
	}
	return n
}

// spoilsResolution carries the extra context a spoils-of-war batch
// resolves under: the turn's normal traders earn bonuses, and Expand
// conquers battleground hexes instead of rolling for neutral ones.
type spoilsResolution struct {
	normalTraders []string
	conquests     map[string][]HexCoord
	contested     map[HexCoord]bool
}

// resolveAgendaBatch applies one batch of agendas in the fixed group
// order: Trade pays out, then Steal drains against a frozen view, then
// Expand checks affordability, then Change lands modifiers. chosen
// holds pre-picked Change modifiers for guided factions; everyone else
// draws at random.
func (g *GameState) resolveAgendaBatch(batch agendaBatch, chosen map[string][]AgendaType, sp *spoilsResolution) []Event {
	var events []Event
	events = append(events, g.resolveTrades(batch, sp)...)
	events = append(events, g.resolveSteals(batch, sp)...)
	events = append(events, g.resolveExpands(batch, sp)...)
	events = append(events, g.resolveChanges(batch, chosen, sp != nil)...)
	return events
}

// batchFactions returns the live factions with at least one instance of
// the given type, in canonical faction order.
func (g *GameState) batchFactions(batch agendaBatch, t AgendaType) []string {
	var out []string
	for _, fid := range g.factionOrder {
		if g.Factions[fid].Eliminated {
			continue
		}
		if batch.count(fid, t) > 0 {
			out = append(out, fid)
		}
	}
	return out
}

func (g *GameState) resolveTrades(batch agendaBatch, sp *spoilsResolution) []Event {
	var events []Event
	traders := g.batchFactions(batch, AgendaTrade)
	for _, fid := range traders {
		f := g.Factions[fid]
		count := batch.count(fid, AgendaTrade)
		mod := f.Modifier(AgendaTrade)
		others := len(traders) - 1
		if sp != nil {
			others += len(sp.normalTraders)
		}
		gold := (1 + others + mod*others) * count
		f.AddGold(gold)
		regard := (1 + mod) * count
		var co []string
		for _, o := range traders {
			if o != fid {
				co = append(co, o)
			}
		}
		for _, o := range co {
			f.ModifyRegard(o, regard)
			g.Factions[o].ModifyRegard(fid, regard)
		}
		events = append(events, newEvent(TradeData{
			Faction:    fid,
			Count:      count,
			GoldGained: gold,
			RegardGain: regard,
			CoTraders:  co,
			Spoils:     sp != nil,
		}))
	}
	if sp != nil && len(traders) > 0 {
		for _, nt := range sp.normalTraders {
			ntf := g.Factions[nt]
			if ntf.Eliminated {
				continue
			}
			ntMod := ntf.Modifier(AgendaTrade)
			for _, st := range traders {
				if st == nt {
					continue
				}
				bonus := (1 + ntMod) * batch.count(st, AgendaTrade)
				ntf.AddGold(bonus)
				ntf.ModifyRegard(st, bonus)
				g.Factions[st].ModifyRegard(nt, bonus)
				events = append(events, newEvent(TradeSpoilsBonusData{
					Faction:      nt,
					SpoilsTrader: st,
					GoldGained:   bonus,
					RegardGain:   bonus,
				}))
			}
		}
	}
	return events
}

func (g *GameState) resolveSteals(batch agendaBatch, sp *spoilsResolution) []Event {
	var events []Event
	stealers := g.batchFactions(batch, AgendaSteal)
	if len(stealers) == 0 {
		return nil
	}

	// All takes are computed against gold as it stood when the steal
	// group began, so simultaneous stealers cannot drain each other
	// mid-batch. Every outcome is settled against that frozen view
	// before anything is applied: each stealer's gain is capped per
	// victim at the frozen gold, and a victim hit from several sides
	// loses at most what they held when the batch began.
	frozen := make(map[string]int, len(g.Factions))
	for fid, f := range g.Factions {
		frozen[fid] = f.Gold
	}

	type stealOutcome struct {
		faction   string
		count     int
		take      int
		gain      int
		neighbors []string
		losses    map[string]int
	}

	taken := make(map[string]int)
	outcomes := make([]stealOutcome, 0, len(stealers))
	for _, fid := range stealers {
		f := g.Factions[fid]
		count := batch.count(fid, AgendaSteal)
		take := (1 + f.Modifier(AgendaSteal)) * count
		neighbors := g.liveNeighbors(fid)
		losses := make(map[string]int)
		gain := 0
		for _, v := range neighbors {
			gain += min(frozen[v], take)
			loss := min(frozen[v], taken[v]+take) - min(frozen[v], taken[v])
			taken[v] += take
			if loss > 0 {
				losses[v] = loss
			}
		}
		outcomes = append(outcomes, stealOutcome{fid, count, take, gain, neighbors, losses})
	}

	for _, o := range outcomes {
		for _, v := range o.neighbors {
			if loss, ok := o.losses[v]; ok {
				g.Factions[v].AddGold(-loss)
			}
		}
	}
	for _, o := range outcomes {
		f := g.Factions[o.faction]
		f.AddGold(o.gain)
		for _, v := range o.neighbors {
			f.ModifyRegard(v, -o.take)
			g.Factions[v].ModifyRegard(o.faction, -o.take)
		}
		events = append(events, newEvent(StealData{
			Faction:       o.faction,
			Count:         o.count,
			GoldGained:    o.gain,
			RegardPenalty: o.take,
			Neighbors:     o.neighbors,
			Losses:        o.losses,
			Spoils:        sp != nil,
		}))
	}

	events = append(events, g.checkWarEruptions()...)
	return events
}

// checkWarEruptions opens a war between every pair of live neighbors
// whose regard has sunk to the eruption threshold and who are not
// already at war.
func (g *GameState) checkWarEruptions() []Event {
	var events []Event
	for i, a := range g.factionOrder {
		if g.Factions[a].Eliminated {
			continue
		}
		for _, b := range g.factionOrder[i+1:] {
			if g.Factions[b].Eliminated {
				continue
			}
			if !g.HexMap.AreNeighbors(a, b) {
				continue
			}
			if g.Factions[a].RegardFor(b) > warEruptionThreshold &&
				g.Factions[b].RegardFor(a) > warEruptionThreshold {
				continue
			}
			if g.warBetween(a, b) != nil {
				continue
			}
			w := NewWar(a, b)
			g.Wars = append(g.Wars, w)
			events = append(events, newEvent(WarEruptedData{
				WarID:    w.ID,
				FactionA: a,
				FactionB: b,
			}))
		}
	}
	return events
}

func (g *GameState) resolveExpands(batch agendaBatch, sp *spoilsResolution) []Event {
	var events []Event
	for _, fid := range g.batchFactions(batch, AgendaExpand) {
		f := g.Factions[fid]
		count := batch.count(fid, AgendaExpand)
		mod := f.Modifier(AgendaExpand)
		var conquests []HexCoord
		if sp != nil {
			conquests = sp.conquests[fid]
		}
		for i := 0; i < count; i++ {
			if len(conquests) > 0 {
				hex := conquests[0]
				conquests = conquests[1:]
				if sp.contested[hex] {
					consolation := 1 + mod
					f.AddGold(consolation)
					events = append(events, newEvent(ExpandFailedData{
						Faction:    fid,
						GoldGained: consolation,
						Contested:  true,
						Spoils:     true,
					}))
					continue
				}
				from := g.HexMap.OwnerOf(hex)
				g.HexMap.Claim(hex, fid)
				f.TerritoriesGainedThisTurn++
				events = append(events, newEvent(ExpandSpoilsData{
					Faction: fid,
					Hex:     hex,
					From:    from,
				}))
				continue
			}
			cost := g.HexMap.TerritoryCount(fid) - mod
			if cost < 0 {
				cost = 0
			}
			target, ok := g.HexMap.ExpandTarget(fid, g.rng)
			if ok && f.Gold >= cost {
				f.Gold -= cost
				g.HexMap.Claim(target, fid)
				f.TerritoriesGainedThisTurn++
				events = append(events, newEvent(ExpandData{
					Faction: fid,
					Hex:     target,
					Cost:    cost,
					Spoils:  sp != nil,
				}))
			} else {
				consolation := 1 + mod
				f.AddGold(consolation)
				events = append(events, newEvent(ExpandFailedData{
					Faction:    fid,
					GoldGained: consolation,
					Spoils:     sp != nil,
				}))
			}
		}
	}
	return events
}

func (g *GameState) resolveChanges(batch agendaBatch, chosen map[string][]AgendaType, spoils bool) []Event {
	var events []Event
	for _, fid := range g.batchFactions(batch, AgendaChange) {
		f := g.Factions[fid]
		count := batch.count(fid, AgendaChange)
		pre := chosen[fid]
		for i := 0; i < count; i++ {
			var t AgendaType
			if len(pre) > 0 {
				t = pre[0]
				pre = pre[1:]
			} else {
				t = changeDeck[g.rng.Intn(len(changeDeck))]
			}
			f.AddChangeModifier(t)
			events = append(events, newEvent(ChangeData{
				Faction:  fid,
				Modifier: t,
				Spoils:   spoils,
			}))
		}
	}
	return events
}

// sampleChangeCards draws n distinct cards from the change deck.
func sampleChangeCards(n int, rng *rand.Rand) []AgendaType {
	deck := append([]AgendaType(nil), changeDeck...)
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	if n > len(deck) {
		n = len(deck)
	}
	return deck[:n]
}
