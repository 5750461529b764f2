package impetus

// Phase names the stage a game is in. Within a turn the phases cycle
// vagrant -> agenda -> war -> scoring -> cleanup.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseVagrant  Phase = "vagrant_phase"
	PhaseAgenda   Phase = "agenda_phase"
	PhaseWar      Phase = "war_phase"
	PhaseScoring  Phase = "scoring"
	PhaseCleanup  Phase = "cleanup"
	PhaseGameOver Phase = "game_over"
)

// AgendaType identifies one of the four agenda cards a faction can play.
type AgendaType string

const (
	AgendaSteal  AgendaType = "steal"
	AgendaTrade  AgendaType = "trade"
	AgendaExpand AgendaType = "expand"
	AgendaChange AgendaType = "change"
)

// agendaResolutionOrder fixes the order agenda groups resolve in within
// a batch. Trade pays out before Steal drains, Steal drains before
// Expand checks affordability, Change lands last.
var agendaResolutionOrder = []AgendaType{AgendaTrade, AgendaSteal, AgendaExpand, AgendaChange}

// changeDeck holds the three modifier cards a Change resolution draws
// from. Change itself cannot be modified.
var changeDeck = []AgendaType{AgendaSteal, AgendaTrade, AgendaExpand}

// IdolType identifies what a placed idol scores for.
type IdolType string

const (
	IdolBattle    IdolType = "battle"
	IdolAffluence IdolType = "affluence"
	IdolSpread    IdolType = "spread"
)

var idolTypes = []IdolType{IdolBattle, IdolAffluence, IdolSpread}

const (
	// DefaultSideLength is the radius of the standard hex map. Every hex
	// strictly closer than this to the origin is on the map.
	DefaultSideLength = 5

	// MinSideLength is the smallest map that still contains every
	// faction's starting hex (all sit at distance 1 from the origin).
	MinSideLength = 2

	StartingGold      = 0
	StartingInfluence = 3
	MaxInfluence      = 3

	// DefaultVPToWin ends the game at the scoring phase where any spirit
	// reaches this many victory points.
	DefaultVPToWin = 10.0

	BattleIdolVP    = 0.5
	AffluenceIdolVP = 0.2
	SpreadIdolVP    = 0.5

	// warEruptionThreshold is the regard at or below which two adjacent
	// live factions fall into war after a steal batch.
	warEruptionThreshold = -2
)

// defaultFactionOrder is the canonical faction iteration order. All
// loops that touch the RNG or mutate shared state walk factions in this
// order so that equal seeds give equal games.
var defaultFactionOrder = []string{"mountain", "mesa", "sand", "plains", "river", "jungle"}

// defaultStartHexes maps each faction to its single starting territory
// around the origin.
var defaultStartHexes = map[string]HexCoord{
	"mountain": {1, -1},
	"mesa":     {1, 0},
	"sand":     {0, 1},
	"plains":   {-1, 1},
	"river":    {-1, 0},
	"jungle":   {0, -1},
}

func validAgendaType(t AgendaType) bool {
	switch t {
	case AgendaSteal, AgendaTrade, AgendaExpand, AgendaChange:
		return true
	}
	return false
}

func validIdolType(t IdolType) bool {
	switch t {
	case IdolBattle, IdolAffluence, IdolSpread:
		return true
	}
	return false
}
