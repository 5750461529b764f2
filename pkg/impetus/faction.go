package impetus

import "math/rand"

// AgendaCard is a single card in a faction's agenda pool.
type AgendaCard struct {
	Type AgendaType `json:"type"`
}

// Faction is one of the board powers spirits guide. Factions hold gold
// and regard; territory lives on the HexMap.
type Faction struct {
	ID   string
	Gold int

	// Pool is the deck agendas are drawn from. Draws never consume
	// cards; the pool only changes through ReplaceAgendaCard.
	Pool []AgendaCard

	// ChangeModifiers counts accumulated Change bonuses per agenda type.
	ChangeModifiers map[AgendaType]int

	// Regard tracks disposition toward each other faction. At or below
	// the eruption threshold with a neighbor, war breaks out.
	Regard map[string]int

	GuidingSpirit string
	WorshipSpirit string
	Eliminated    bool

	// Per-turn counters feeding the scoring phase. Reset at cleanup.
	GoldGainedThisTurn        int
	TerritoriesGainedThisTurn int
	WarsWonThisTurn           int
}

// NewFaction builds a faction with the starting pool of one card per
// agenda type and zeroed modifiers and regard.
func NewFaction(id string, others []string) *Faction {
	f := &Faction{
		ID:              id,
		Gold:            StartingGold,
		ChangeModifiers: make(map[AgendaType]int),
		Regard:          make(map[string]int),
	}
	for _, t := range []AgendaType{AgendaSteal, AgendaTrade, AgendaExpand, AgendaChange} {
		f.Pool = append(f.Pool, AgendaCard{Type: t})
	}
	for _, t := range changeDeck {
		f.ChangeModifiers[t] = 0
	}
	for _, o := range others {
		if o != id {
			f.Regard[o] = 0
		}
	}
	return f
}

// AddGold applies a gold delta, clamping at zero, and tracks gains for
// scoring.
func (f *Faction) AddGold(delta int) {
	if delta > 0 {
		f.GoldGainedThisTurn += delta
	}
	f.Gold += delta
	if f.Gold < 0 {
		f.Gold = 0
	}
}

// Modifier returns the accumulated Change bonus for an agenda type.
func (f *Faction) Modifier(t AgendaType) int {
	return f.ChangeModifiers[t]
}

// AddChangeModifier records one Change resolution for the given type.
func (f *Faction) AddChangeModifier(t AgendaType) {
	f.ChangeModifiers[t]++
}

// RegardFor returns this faction's regard toward another.
func (f *Faction) RegardFor(other string) int {
	return f.Regard[other]
}

// ModifyRegard shifts regard toward another faction.
func (f *Faction) ModifyRegard(other string, delta int) {
	f.Regard[other] += delta
}

// DrawAgendaCards draws n cards from the pool with replacement.
func (f *Faction) DrawAgendaCards(n int, rng *rand.Rand) []AgendaCard {
	out := make([]AgendaCard, n)
	for i := range out {
		out[i] = f.Pool[rng.Intn(len(f.Pool))]
	}
	return out
}

// DrawRandomAgenda draws a single card from the pool with replacement.
func (f *Faction) DrawRandomAgenda(rng *rand.Rand) AgendaCard {
	return f.Pool[rng.Intn(len(f.Pool))]
}

// ReplaceAgendaCard removes the first card of removeType and appends a
// card of addType. When no card of removeType remains the add still
// happens, growing the pool by one.
func (f *Faction) ReplaceAgendaCard(removeType, addType AgendaType) {
	for i, c := range f.Pool {
		if c.Type == removeType {
			f.Pool = append(f.Pool[:i], f.Pool[i+1:]...)
			break
		}
	}
	f.Pool = append(f.Pool, AgendaCard{Type: addType})
}

// PoolTypes returns the distinct agenda types present in the pool, in
// canonical order.
func (f *Faction) PoolTypes() []AgendaType {
	seen := make(map[AgendaType]bool)
	for _, c := range f.Pool {
		seen[c.Type] = true
	}
	var out []AgendaType
	for _, t := range []AgendaType{AgendaSteal, AgendaTrade, AgendaExpand, AgendaChange} {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// ResetTurnTracking clears the per-turn scoring counters.
func (f *Faction) ResetTurnTracking() {
	f.GoldGainedThisTurn = 0
	f.TerritoriesGainedThisTurn = 0
	f.WarsWonThisTurn = 0
}
