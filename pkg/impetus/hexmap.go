package impetus

import (
	"math/rand"
	"sort"
)

// Idol is a permanent marker a spirit has placed on the map. Idols
// never move; they are only removed when a rival replaces one on the
// same hex.
type Idol struct {
	Type     IdolType `json:"type"`
	Position HexCoord `json:"position"`
	Spirit   string   `json:"spirit"`
}

// HexMap holds the board: which hexes exist, who owns them, and the
// idols standing on them. Ownership of "" means neutral.
type HexMap struct {
	side      int
	hexes     map[HexCoord]bool
	ownership map[HexCoord]string
	idols     []Idol
}

// NewHexMap builds a map of the given side length and claims each
// faction's starting hex. A starting hex outside the map is ignored;
// callers wanting every faction on the board need side >= MinSideLength.
func NewHexMap(side int, starts map[string]HexCoord, order []string) *HexMap {
	m := &HexMap{
		side:      side,
		hexes:     make(map[HexCoord]bool),
		ownership: make(map[HexCoord]string),
	}
	for _, h := range hexGrid(side) {
		m.hexes[h] = true
		m.ownership[h] = ""
	}
	for _, fid := range order {
		if h, ok := starts[fid]; ok && m.hexes[h] {
			m.ownership[h] = fid
		}
	}
	return m
}

// Side returns the map's side length.
func (m *HexMap) Side() int { return m.side }

// Contains reports whether the coordinate is on the map.
func (m *HexMap) Contains(h HexCoord) bool { return m.hexes[h] }

// OwnerOf returns the owning faction id, or "" for a neutral or
// off-map hex.
func (m *HexMap) OwnerOf(h HexCoord) string { return m.ownership[h] }

// Claim assigns ownership of a hex to a faction.
func (m *HexMap) Claim(h HexCoord, fid string) {
	if m.hexes[h] {
		m.ownership[h] = fid
	}
}

// Territories returns the hexes a faction owns, sorted.
func (m *HexMap) Territories(fid string) []HexCoord {
	var out []HexCoord
	for h, owner := range m.ownership {
		if owner == fid && fid != "" {
			out = append(out, h)
		}
	}
	sortHexes(out)
	return out
}

// TerritoryCount returns how many hexes a faction owns.
func (m *HexMap) TerritoryCount(fid string) int {
	n := 0
	for _, owner := range m.ownership {
		if owner == fid && fid != "" {
			n++
		}
	}
	return n
}

// NeutralHexes returns every unowned hex, sorted.
func (m *HexMap) NeutralHexes() []HexCoord {
	var out []HexCoord
	for h, owner := range m.ownership {
		if owner == "" {
			out = append(out, h)
		}
	}
	sortHexes(out)
	return out
}

// ReachableNeutral returns the neutral hexes adjacent to at least one
// of the faction's territories, sorted.
func (m *HexMap) ReachableNeutral(fid string) []HexCoord {
	seen := make(map[HexCoord]bool)
	for h, owner := range m.ownership {
		if owner != fid || fid == "" {
			continue
		}
		for _, n := range h.Neighbors() {
			if m.hexes[n] && m.ownership[n] == "" {
				seen[n] = true
			}
		}
	}
	out := make([]HexCoord, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sortHexes(out)
	return out
}

// ExpandTarget picks the hex an expansion claims: uniformly among
// reachable neutral hexes hosting an idol, falling back to all
// reachable neutrals. Reports false when the faction is boxed in.
func (m *HexMap) ExpandTarget(fid string, rng *rand.Rand) (HexCoord, bool) {
	options := m.ReachableNeutral(fid)
	if len(options) == 0 {
		return HexCoord{}, false
	}
	var withIdols []HexCoord
	for _, h := range options {
		if _, ok := m.IdolAt(h); ok {
			withIdols = append(withIdols, h)
		}
	}
	if len(withIdols) > 0 {
		options = withIdols
	}
	return options[rng.Intn(len(options))], true
}

// AreNeighbors reports whether two factions own at least one pair of
// adjacent hexes.
func (m *HexMap) AreNeighbors(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	for h, owner := range m.ownership {
		if owner != a {
			continue
		}
		for _, n := range h.Neighbors() {
			if m.ownership[n] == b {
				return true
			}
		}
	}
	return false
}

// BorderPairs returns every adjacent (aHex, bHex) pair where a owns the
// first and b the second, sorted for deterministic selection.
func (m *HexMap) BorderPairs(a, b string) [][2]HexCoord {
	var out [][2]HexCoord
	for _, h := range m.Territories(a) {
		for _, n := range h.Neighbors() {
			if m.ownership[n] == b {
				out = append(out, [2]HexCoord{h, n})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			if out[i][0].Q != out[j][0].Q {
				return out[i][0].Q < out[j][0].Q
			}
			return out[i][0].R < out[j][0].R
		}
		if out[i][1].Q != out[j][1].Q {
			return out[i][1].Q < out[j][1].Q
		}
		return out[i][1].R < out[j][1].R
	})
	return out
}

// PlaceIdol puts an idol on a hex. Idols stack freely per hex, but a
// spirit keeps at most one idol on neutral ground: placing removes the
// spirit's earliest idol still standing on an unowned hex. The removed
// idol's position is returned, if any.
func (m *HexMap) PlaceIdol(spirit string, t IdolType, h HexCoord) (Idol, *HexCoord) {
	var displaced *HexCoord
	for i, idol := range m.idols {
		if idol.Spirit == spirit && m.ownership[idol.Position] == "" {
			pos := idol.Position
			displaced = &pos
			m.idols = append(m.idols[:i], m.idols[i+1:]...)
			break
		}
	}
	placed := Idol{Type: t, Position: h, Spirit: spirit}
	m.idols = append(m.idols, placed)
	return placed, displaced
}

// Idols returns all idols on the map in placement order.
func (m *HexMap) Idols() []Idol {
	out := make([]Idol, len(m.idols))
	copy(out, m.idols)
	return out
}

// IdolAt returns the idol on a hex, if any.
func (m *HexMap) IdolAt(h HexCoord) (Idol, bool) {
	for _, idol := range m.idols {
		if idol.Position == h {
			return idol, true
		}
	}
	return Idol{}, false
}

// CountIdols returns how many idols of the given type stand inside a
// faction's territory. An empty spirit counts everyone's idols; an
// empty type counts all types.
func (m *HexMap) CountIdols(spirit, fid string, t IdolType) int {
	n := 0
	for _, idol := range m.idols {
		if spirit != "" && idol.Spirit != spirit {
			continue
		}
		if t != "" && idol.Type != t {
			continue
		}
		if m.ownership[idol.Position] == fid && fid != "" {
			n++
		}
	}
	return n
}

// OwnershipStrings returns ownership keyed by "q,r" strings, with ""
// for neutral hexes. Used for snapshots and the wire format.
func (m *HexMap) OwnershipStrings() map[string]string {
	out := make(map[string]string, len(m.ownership))
	for h, owner := range m.ownership {
		out[h.String()] = owner
	}
	return out
}
