package impetus

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates event payloads on the wire.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventIdolPlaced        EventType = "idol_placed"
	EventGuided            EventType = "guided"
	EventGuideContested    EventType = "guide_contested"
	EventPresenceGained    EventType = "presence_gained"
	EventPresenceReplaced  EventType = "presence_replaced"
	EventAgendaChosen      EventType = "agenda_chosen"
	EventAgendaRandom      EventType = "agenda_random"
	EventChangeDraw        EventType = "change_draw"
	EventSteal             EventType = "steal"
	EventTrade             EventType = "trade"
	EventTradeSpoilsBonus  EventType = "trade_spoils_bonus"
	EventExpand            EventType = "expand"
	EventExpandFailed      EventType = "expand_failed"
	EventExpandSpoils      EventType = "expand_spoils"
	EventChange            EventType = "change"
	EventWarErupted        EventType = "war_erupted"
	EventWarRipened        EventType = "war_ripened"
	EventWarResolved       EventType = "war_resolved"
	EventWarEnded          EventType = "war_ended"
	EventSpoilsDrawn       EventType = "spoils_drawn"
	EventSpoilsChoice      EventType = "spoils_choice"
	EventVPScored          EventType = "vp_scored"
	EventEjected           EventType = "ejected"
	EventFactionEliminated EventType = "faction_eliminated"
	EventGameOver          EventType = "game_over"
)

// Event is one entry in a game's append-only log. Every state change
// is attributable to an event, so replaying the log over a fresh setup
// reconstructs the game.
type Event struct {
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

// EventData is implemented by every event payload.
type EventData interface {
	eventType() EventType
}

func newEvent(d EventData) Event {
	return Event{Type: d.eventType(), Data: d}
}

// TurnStartData opens a turn. Replaying it resets per-turn counters
// and enters the vagrant phase.
type TurnStartData struct {
	Turn int `json:"turn"`
}

// IdolPlacedData records a vagrant spirit placing an idol. Replaced is
// the position of the spirit's prior neutral-ground idol, removed by
// this placement.
type IdolPlacedData struct {
	Spirit   string    `json:"spirit"`
	IdolType IdolType  `json:"idol_type"`
	Hex      HexCoord  `json:"hex"`
	Replaced *HexCoord `json:"replaced,omitempty"`
}

// GuidedData records a spirit possessing a faction. Possession
// refreshes the spirit's influence to the maximum.
type GuidedData struct {
	Spirit  string `json:"spirit"`
	Faction string `json:"faction"`
}

// GuideContestedData records two or more spirits courting the same
// faction in one vagrant phase. All attempts fail.
type GuideContestedData struct {
	Spirits []string `json:"spirits"`
	Faction string   `json:"faction"`
}

// PresenceGainedData records a spirit becoming a faction's worshipped
// spirit where none was before.
type PresenceGainedData struct {
	Spirit  string `json:"spirit"`
	Faction string `json:"faction"`
}

// PresenceReplacedData records a spirit displacing the incumbent
// worshipped spirit by idol count.
type PresenceReplacedData struct {
	Spirit    string `json:"spirit"`
	OldSpirit string `json:"old_spirit"`
	Faction   string `json:"faction"`
}

// AgendaChosenData records a guiding spirit's agenda pick. Choosing
// costs the spirit one influence.
type AgendaChosenData struct {
	Spirit  string     `json:"spirit"`
	Faction string     `json:"faction"`
	Agenda  AgendaType `json:"agenda"`
}

// AgendaRandomData records an unguided faction drawing its agenda.
type AgendaRandomData struct {
	Faction string     `json:"faction"`
	Agenda  AgendaType `json:"agenda"`
}

// ChangeDrawData records the modifier cards offered to a guiding
// spirit whose faction plays Change.
type ChangeDrawData struct {
	Spirit  string       `json:"spirit"`
	Faction string       `json:"faction"`
	Cards   []AgendaType `json:"cards"`
}

// StealData records one faction's steal resolution. Losses maps each
// victim to the gold this stealer took from it; Neighbors lists every
// live neighbor hit by the regard penalty, including those with no
// gold to lose.
type StealData struct {
	Faction       string         `json:"faction"`
	Count         int            `json:"count"`
	GoldGained    int            `json:"gold_gained"`
	RegardPenalty int            `json:"regard_penalty"`
	Neighbors     []string       `json:"neighbors"`
	Losses        map[string]int `json:"losses"`
	Spoils        bool           `json:"spoils,omitempty"`
}

// TradeData records one faction's trade resolution. RegardGain applies
// bilaterally with every co-trader.
type TradeData struct {
	Faction    string   `json:"faction"`
	Count      int      `json:"count"`
	GoldGained int      `json:"gold_gained"`
	RegardGain int      `json:"regard_gain"`
	CoTraders  []string `json:"co_traders"`
	Spoils     bool     `json:"spoils,omitempty"`
}

// TradeSpoilsBonusData records the bonus a turn's normal trader earns
// when spoils-of-war trades resolve later the same turn.
type TradeSpoilsBonusData struct {
	Faction      string `json:"faction"`
	SpoilsTrader string `json:"spoils_trader"`
	GoldGained   int    `json:"gold_gained"`
	RegardGain   int    `json:"regard_gain"`
}

// ExpandData records a successful expansion into a neutral hex.
type ExpandData struct {
	Faction string   `json:"faction"`
	Hex     HexCoord `json:"hex"`
	Cost    int      `json:"cost"`
	Spoils  bool     `json:"spoils,omitempty"`
}

// ExpandFailedData records a failed expansion and its consolation
// gold. Contested marks a spoils conquest lost to a rival claim.
type ExpandFailedData struct {
	Faction    string `json:"faction"`
	GoldGained int    `json:"gold_gained"`
	Contested  bool   `json:"contested,omitempty"`
	Spoils     bool   `json:"spoils,omitempty"`
}

// ExpandSpoilsData records a war winner conquering the loser's
// battleground hex through a spoils Expand.
type ExpandSpoilsData struct {
	Faction string   `json:"faction"`
	Hex     HexCoord `json:"hex"`
	From    string   `json:"from"`
}

// ChangeData records one Change resolution landing a modifier.
type ChangeData struct {
	Faction  string     `json:"faction"`
	Modifier AgendaType `json:"modifier"`
	Spoils   bool       `json:"spoils,omitempty"`
}

// WarEruptedData records a new unripe war.
type WarEruptedData struct {
	WarID    string `json:"war_id"`
	FactionA string `json:"faction_a"`
	FactionB string `json:"faction_b"`
}

// WarRipenedData records a war fixing its battleground.
type WarRipenedData struct {
	WarID        string      `json:"war_id"`
	FactionA     string      `json:"faction_a"`
	FactionB     string      `json:"faction_b"`
	Battleground [2]HexCoord `json:"battleground"`
}

// WarResolvedData records a ripe war's dice and outcome. The winner
// gains one gold and the loser loses one; a draw moves no gold. The
// war ends either way.
type WarResolvedData struct {
	WarID        string       `json:"war_id"`
	FactionA     string       `json:"faction_a"`
	FactionB     string       `json:"faction_b"`
	RollA        int          `json:"roll_a"`
	RollB        int          `json:"roll_b"`
	PowerA       int          `json:"power_a"`
	PowerB       int          `json:"power_b"`
	Winner       string       `json:"winner,omitempty"`
	Loser        string       `json:"loser,omitempty"`
	Battleground *[2]HexCoord `json:"battleground,omitempty"`
}

// WarEndedData records a war ending without resolution, for example
// when its battleground is conquered or a belligerent is eliminated.
type WarEndedData struct {
	WarID    string `json:"war_id"`
	FactionA string `json:"faction_a"`
	FactionB string `json:"faction_b"`
	Reason   string `json:"reason"`
}

// SpoilsDrawnData records the spoils agenda a war winner will resolve.
// Spirit is empty when the winner is unguided.
type SpoilsDrawnData struct {
	Faction string     `json:"faction"`
	Spirit  string     `json:"spirit,omitempty"`
	Agenda  AgendaType `json:"agenda"`
}

// SpoilsChoiceData records the cards offered to a guiding spirit whose
// spoils draw produced more than one distinct agenda type.
type SpoilsChoiceData struct {
	Spirit  string       `json:"spirit"`
	Faction string       `json:"faction"`
	Cards   []AgendaType `json:"cards"`
}

// VPScoredData records one spirit's scoring-phase gain and the counts
// behind it.
type VPScoredData struct {
	Spirit            string  `json:"spirit"`
	Faction           string  `json:"faction"`
	BattleIdols       int     `json:"battle_idols"`
	AffluenceIdols    int     `json:"affluence_idols"`
	SpreadIdols       int     `json:"spread_idols"`
	WarsWon           int     `json:"wars_won"`
	GoldGained        int     `json:"gold_gained"`
	TerritoriesGained int     `json:"territories_gained"`
	VPGained          float64 `json:"vp_gained"`
	TotalVP           float64 `json:"total_vp"`
}

// EjectedData records a spirit leaving its faction at zero influence,
// after editing the faction's agenda pool.
type EjectedData struct {
	Spirit     string     `json:"spirit"`
	Faction    string     `json:"faction"`
	RemoveType AgendaType `json:"remove_type"`
	AddType    AgendaType `json:"add_type"`
}

// FactionEliminatedData records a faction falling to zero territories.
type FactionEliminatedData struct {
	Faction string `json:"faction"`
}

// GameOverData ends the log. Joint winners share the top score.
type GameOverData struct {
	Winners []string           `json:"winners"`
	Scores  map[string]float64 `json:"scores"`
}

func (TurnStartData) eventType() EventType         { return EventTurnStart }
func (IdolPlacedData) eventType() EventType        { return EventIdolPlaced }
func (GuidedData) eventType() EventType            { return EventGuided }
func (GuideContestedData) eventType() EventType    { return EventGuideContested }
func (PresenceGainedData) eventType() EventType    { return EventPresenceGained }
func (PresenceReplacedData) eventType() EventType  { return EventPresenceReplaced }
func (AgendaChosenData) eventType() EventType      { return EventAgendaChosen }
func (AgendaRandomData) eventType() EventType      { return EventAgendaRandom }
func (ChangeDrawData) eventType() EventType        { return EventChangeDraw }
func (StealData) eventType() EventType             { return EventSteal }
func (TradeData) eventType() EventType             { return EventTrade }
func (TradeSpoilsBonusData) eventType() EventType  { return EventTradeSpoilsBonus }
func (ExpandData) eventType() EventType            { return EventExpand }
func (ExpandFailedData) eventType() EventType      { return EventExpandFailed }
func (ExpandSpoilsData) eventType() EventType      { return EventExpandSpoils }
func (ChangeData) eventType() EventType            { return EventChange }
func (WarEruptedData) eventType() EventType        { return EventWarErupted }
func (WarRipenedData) eventType() EventType        { return EventWarRipened }
func (WarResolvedData) eventType() EventType       { return EventWarResolved }
func (WarEndedData) eventType() EventType          { return EventWarEnded }
func (SpoilsDrawnData) eventType() EventType       { return EventSpoilsDrawn }
func (SpoilsChoiceData) eventType() EventType      { return EventSpoilsChoice }
func (VPScoredData) eventType() EventType          { return EventVPScored }
func (EjectedData) eventType() EventType           { return EventEjected }
func (FactionEliminatedData) eventType() EventType { return EventFactionEliminated }
func (GameOverData) eventType() EventType          { return EventGameOver }

// MarshalJSON writes the {type, data} envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Data EventData `json:"data"`
	}{e.Type, e.Data})
}

// UnmarshalJSON reads the envelope and decodes the payload into the
// concrete type named by the discriminant.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	data, err := emptyEventData(env.Type)
	if err != nil {
		return err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return fmt.Errorf("decode %s event: %w", env.Type, err)
		}
	}
	e.Type = env.Type
	e.Data = data
	return nil
}

func emptyEventData(t EventType) (EventData, error) {
	switch t {
	case EventTurnStart:
		return &TurnStartData{}, nil
	case EventIdolPlaced:
		return &IdolPlacedData{}, nil
	case EventGuided:
		return &GuidedData{}, nil
	case EventGuideContested:
		return &GuideContestedData{}, nil
	case EventPresenceGained:
		return &PresenceGainedData{}, nil
	case EventPresenceReplaced:
		return &PresenceReplacedData{}, nil
	case EventAgendaChosen:
		return &AgendaChosenData{}, nil
	case EventAgendaRandom:
		return &AgendaRandomData{}, nil
	case EventChangeDraw:
		return &ChangeDrawData{}, nil
	case EventSteal:
		return &StealData{}, nil
	case EventTrade:
		return &TradeData{}, nil
	case EventTradeSpoilsBonus:
		return &TradeSpoilsBonusData{}, nil
	case EventExpand:
		return &ExpandData{}, nil
	case EventExpandFailed:
		return &ExpandFailedData{}, nil
	case EventExpandSpoils:
		return &ExpandSpoilsData{}, nil
	case EventChange:
		return &ChangeData{}, nil
	case EventWarErupted:
		return &WarEruptedData{}, nil
	case EventWarRipened:
		return &WarRipenedData{}, nil
	case EventWarResolved:
		return &WarResolvedData{}, nil
	case EventWarEnded:
		return &WarEndedData{}, nil
	case EventSpoilsDrawn:
		return &SpoilsDrawnData{}, nil
	case EventSpoilsChoice:
		return &SpoilsChoiceData{}, nil
	case EventVPScored:
		return &VPScoredData{}, nil
	case EventEjected:
		return &EjectedData{}, nil
	case EventFactionEliminated:
		return &FactionEliminatedData{}, nil
	case EventGameOver:
		return &GameOverData{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}
