package impetus

import "sort"

// FactionState is a faction's public state in a snapshot.
type FactionState struct {
	ID              string             `json:"id"`
	Gold            int                `json:"gold"`
	Territories     []HexCoord         `json:"territories"`
	Pool            []AgendaType       `json:"pool"`
	ChangeModifiers map[AgendaType]int `json:"change_modifiers"`
	Regard          map[string]int     `json:"regard"`
	GuidingSpirit   string             `json:"guiding_spirit,omitempty"`
	WorshipSpirit   string             `json:"worship_spirit,omitempty"`
	Eliminated      bool               `json:"eliminated,omitempty"`
}

// SpiritState is a spirit's public state in a snapshot.
type SpiritState struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Vagrant       bool    `json:"vagrant"`
	Faction       string  `json:"faction,omitempty"`
	Influence     int     `json:"influence"`
	VictoryPoints float64 `json:"victory_points"`
}

// WarState is a war's public state in a snapshot.
type WarState struct {
	ID           string       `json:"id"`
	FactionA     string       `json:"faction_a"`
	FactionB     string       `json:"faction_b"`
	Ripe         bool         `json:"ripe"`
	Battleground *[2]HexCoord `json:"battleground,omitempty"`
}

// Snapshot is the full observable game state after a resolution step.
// Ownership keys are "q,r" strings; "" marks a neutral hex.
type Snapshot struct {
	Turn      int                     `json:"turn"`
	Phase     Phase                   `json:"phase"`
	Factions  map[string]FactionState `json:"factions"`
	Spirits   map[string]SpiritState  `json:"spirits"`
	Wars      []WarState              `json:"wars"`
	Idols     []Idol                  `json:"idols"`
	Ownership map[string]string       `json:"ownership"`
}

// GetSnapshot renders the full observable state.
func (g *GameState) GetSnapshot() Snapshot {
	snap := Snapshot{
		Turn:      g.Turn,
		Phase:     g.Phase,
		Factions:  make(map[string]FactionState, len(g.Factions)),
		Spirits:   make(map[string]SpiritState, len(g.Spirits)),
		Idols:     g.HexMap.Idols(),
		Ownership: g.HexMap.OwnershipStrings(),
	}
	for _, fid := range g.factionOrder {
		f := g.Factions[fid]
		pool := make([]AgendaType, len(f.Pool))
		for i, c := range f.Pool {
			pool[i] = c.Type
		}
		sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
		mods := make(map[AgendaType]int, len(f.ChangeModifiers))
		for t, n := range f.ChangeModifiers {
			mods[t] = n
		}
		regard := make(map[string]int, len(f.Regard))
		for o, r := range f.Regard {
			regard[o] = r
		}
		snap.Factions[fid] = FactionState{
			ID:              fid,
			Gold:            f.Gold,
			Territories:     g.HexMap.Territories(fid),
			Pool:            pool,
			ChangeModifiers: mods,
			Regard:          regard,
			GuidingSpirit:   f.GuidingSpirit,
			WorshipSpirit:   f.WorshipSpirit,
			Eliminated:      f.Eliminated,
		}
	}
	for _, sid := range g.spiritOrder {
		s := g.Spirits[sid]
		snap.Spirits[sid] = SpiritState{
			ID:            sid,
			Name:          s.Name,
			Vagrant:       s.Vagrant,
			Faction:       s.Faction,
			Influence:     s.Influence,
			VictoryPoints: s.VictoryPoints,
		}
	}
	for _, w := range g.Wars {
		snap.Wars = append(snap.Wars, WarState{
			ID:           w.ID,
			FactionA:     w.FactionA,
			FactionB:     w.FactionB,
			Ripe:         w.Ripe,
			Battleground: w.Battleground,
		})
	}
	return snap
}
