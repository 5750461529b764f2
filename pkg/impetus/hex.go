package impetus

import (
	"fmt"
	"sort"
)

// HexCoord is an axial hex coordinate. The implicit third cube
// coordinate is s = -q-r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (h HexCoord) String() string {
	return fmt.Sprintf("%d,%d", h.Q, h.R)
}

// axialDirections lists the six neighbor offsets, clockwise from east.
var axialDirections = [6]HexCoord{
	{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

// Neighbors returns the six adjacent coordinates, whether or not they
// lie on any particular map.
func (h HexCoord) Neighbors() []HexCoord {
	out := make([]HexCoord, 6)
	for i, d := range axialDirections {
		out[i] = HexCoord{h.Q + d.Q, h.R + d.R}
	}
	return out
}

// Distance returns the hex grid distance between two coordinates.
func (h HexCoord) Distance(o HexCoord) int {
	dq := h.Q - o.Q
	dr := h.R - o.R
	ds := -dq - dr
	return max(abs(dq), abs(dr), abs(ds))
}

// hexGrid returns every coordinate strictly closer than side to the
// origin, in sorted order.
func hexGrid(side int) []HexCoord {
	var out []HexCoord
	origin := HexCoord{}
	for q := -side + 1; q < side; q++ {
		for r := -side + 1; r < side; r++ {
			h := HexCoord{q, r}
			if h.Distance(origin) < side {
				out = append(out, h)
			}
		}
	}
	sortHexes(out)
	return out
}

func sortHexes(hs []HexCoord) {
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Q != hs[j].Q {
			return hs[i].Q < hs[j].Q
		}
		return hs[i].R < hs[j].R
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
