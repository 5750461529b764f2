package impetus

import (
	"math/rand"

	"github.com/google/uuid"
)

// War is an open conflict between two factions. A war erupts unripe;
// it ripens once a battleground pair of border hexes is fixed, and
// resolves the turn after ripening.
type War struct {
	ID       string
	FactionA string
	FactionB string
	Ripe     bool

	// Battleground is the (aHex, bHex) border pair fighting happens
	// over. Nil until the war ripens.
	Battleground *[2]HexCoord
}

// NewWar creates an unripe war between two factions.
func NewWar(a, b string) *War {
	return &War{ID: uuid.NewString(), FactionA: a, FactionB: b}
}

// Involves reports whether the faction is a belligerent.
func (w *War) Involves(fid string) bool {
	return w.FactionA == fid || w.FactionB == fid
}

// Between reports whether the war is between the two given factions,
// in either order.
func (w *War) Between(a, b string) bool {
	return (w.FactionA == a && w.FactionB == b) || (w.FactionA == b && w.FactionB == a)
}

// Other returns the opposing faction id.
func (w *War) Other(fid string) string {
	if w.FactionA == fid {
		return w.FactionB
	}
	return w.FactionA
}

// Ripen fixes a battleground by picking a random border pair between
// the belligerents. It reports whether the war ripened; a war with no
// shared border stays unripe and tries again next turn.
func (w *War) Ripen(m *HexMap, rng *rand.Rand) bool {
	pairs := m.BorderPairs(w.FactionA, w.FactionB)
	if len(pairs) == 0 {
		return false
	}
	pair := pairs[rng.Intn(len(pairs))]
	w.Battleground = &pair
	w.Ripe = true
	return true
}

// OnHex reports whether the hex is part of the battleground.
func (w *War) OnHex(h HexCoord) bool {
	return w.Battleground != nil && (w.Battleground[0] == h || w.Battleground[1] == h)
}

// WarResult records the dice and outcome of a resolved war.
type WarResult struct {
	WarID        string
	FactionA     string
	FactionB     string
	RollA        int
	RollB        int
	PowerA       int
	PowerB       int
	Winner       string
	Loser        string
	Battleground *[2]HexCoord
}

// Resolve rolls a d6 for each side and adds the snapshotted territory
// powers. The strictly greater total wins; equal totals mean a draw
// with no winner. Side A rolls first.
func (w *War) Resolve(powerA, powerB int, rng *rand.Rand) WarResult {
	rollA := rng.Intn(6) + 1
	rollB := rng.Intn(6) + 1
	res := WarResult{
		WarID:        w.ID,
		FactionA:     w.FactionA,
		FactionB:     w.FactionB,
		RollA:        rollA,
		RollB:        rollB,
		PowerA:       powerA,
		PowerB:       powerB,
		Battleground: w.Battleground,
	}
	totalA := rollA + powerA
	totalB := rollB + powerB
	if totalA > totalB {
		res.Winner, res.Loser = w.FactionA, w.FactionB
	} else if totalB > totalA {
		res.Winner, res.Loser = w.FactionB, w.FactionA
	}
	return res
}
