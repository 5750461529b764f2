package impetus

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	ErrUnknownSpirit    = errors.New("unknown spirit")
	ErrActionNotNeeded  = errors.New("no action needed from this spirit right now")
	ErrAlreadySubmitted = errors.New("action already submitted this phase")
)

// Config tunes a single game. Zero values fall back to the standard
// rules.
type Config struct {
	SideLength int
	VPToWin    float64
	Seed       int64
}

func (c Config) withDefaults() Config {
	if c.SideLength <= 0 {
		c.SideLength = DefaultSideLength
	}
	if c.SideLength < MinSideLength {
		c.SideLength = MinSideLength
	}
	if c.VPToWin <= 0 {
		c.VPToWin = DefaultVPToWin
	}
	return c
}

// PlayerInfo names one joining player.
type PlayerInfo struct {
	SpiritID string `json:"spirit_id"`
	Name     string `json:"name"`
}

// Action is the single submission payload for every phase. Which
// fields matter depends on the phase and sub-state: guide/idol fields
// during the vagrant phase, AgendaIndex during agenda collection,
// CardIndex for change and spoils choices, RemoveType/AddType for
// ejection.
type Action struct {
	GuideTarget string     `json:"guide_target,omitempty"`
	IdolType    IdolType   `json:"idol_type,omitempty"`
	IdolQ       *int       `json:"idol_q,omitempty"`
	IdolR       *int       `json:"idol_r,omitempty"`
	AgendaIndex *int       `json:"agenda_index,omitempty"`
	CardIndex   *int       `json:"card_index,omitempty"`
	RemoveType  AgendaType `json:"remove_type,omitempty"`
	AddType     AgendaType `json:"add_type,omitempty"`
}

// PhaseOptions describes what a spirit may do right now. It is derived
// purely from current state, except that an agenda hand, once drawn,
// stays cached for the rest of the phase.
type PhaseOptions struct {
	Action       string       `json:"action"`
	Reason       string       `json:"reason,omitempty"`
	Factions     []string     `json:"factions,omitempty"`
	NeutralHexes []HexCoord   `json:"neutral_hexes,omitempty"`
	IdolTypes    []IdolType   `json:"idol_types,omitempty"`
	Hand         []AgendaCard `json:"hand,omitempty"`
	Cards        []AgendaType `json:"cards,omitempty"`
	PoolTypes    []AgendaType `json:"pool_types,omitempty"`
	Faction      string       `json:"faction,omitempty"`
}

type poolEdit struct {
	remove AgendaType
	add    AgendaType
}

type spoilsStage int

const (
	spoilsStageCard spoilsStage = iota
	spoilsStageModifier
)

// spoilsEntry is one war's pending spoils choice for a guiding spirit.
// Entries queue per spirit; each CardIndex submission settles the head
// of the queue.
type spoilsEntry struct {
	winner       string
	loser        string
	cards        []AgendaType
	battleground *[2]HexCoord
	stage        spoilsStage
	changeCards  []AgendaType
	chosen       AgendaType
	modifier     AgendaType
}

// resolvedSpoils is a settled spoils draw waiting for the batch
// finalization at the end of the war phase.
type resolvedSpoils struct {
	winner       string
	loser        string
	agenda       AgendaType
	battleground *[2]HexCoord
	modifier     AgendaType
	fromChoice   bool
}

// GameState is the aggregate root for one game. It is not safe for
// concurrent use; callers serialize access per game.
type GameState struct {
	Turn     int
	Phase    Phase
	VPToWin  float64
	HexMap   *HexMap
	Factions map[string]*Faction
	Spirits  map[string]*Spirit
	Wars     []*War

	rng          *rand.Rand
	factionOrder []string
	spiritOrder  []string

	// Per-phase transient bookkeeping.
	pendingActions  map[string]Action
	drawnHands      map[string][]AgendaCard
	storedChoices   agendaBatch
	normalTraders   []string
	changePending   map[string][]AgendaType
	changeChosen    map[string][]AgendaType
	ejectionPending map[string]string
	ejectionChoices map[string]poolEdit
	spoilsPending   map[string][]*spoilsEntry
	spoilsResolved  []resolvedSpoils
	agendaPrepared  bool
	warsResolved    bool
}

// NewGame sets up a game on a fresh map and opens turn one. The
// returned events begin the game's log.
func NewGame(players []PlayerInfo, cfg Config) (*GameState, []Event, error) {
	g, err := newGameState(players, cfg)
	if err != nil {
		return nil, nil, err
	}
	g.Turn = 1
	g.Phase = PhaseVagrant
	return g, []Event{newEvent(TurnStartData{Turn: 1})}, nil
}

func newGameState(players []PlayerInfo, cfg Config) (*GameState, error) {
	cfg = cfg.withDefaults()
	if len(players) == 0 {
		return nil, errors.New("at least one player required")
	}
	g := &GameState{
		Phase:           PhaseLobby,
		VPToWin:         cfg.VPToWin,
		Factions:        make(map[string]*Faction),
		Spirits:         make(map[string]*Spirit),
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		factionOrder:    append([]string(nil), defaultFactionOrder...),
		pendingActions:  make(map[string]Action),
		drawnHands:      make(map[string][]AgendaCard),
		storedChoices:   make(agendaBatch),
		changePending:   make(map[string][]AgendaType),
		changeChosen:    make(map[string][]AgendaType),
		ejectionPending: make(map[string]string),
		ejectionChoices: make(map[string]poolEdit),
		spoilsPending:   make(map[string][]*spoilsEntry),
	}
	g.HexMap = NewHexMap(cfg.SideLength, defaultStartHexes, g.factionOrder)
	for _, fid := range g.factionOrder {
		g.Factions[fid] = NewFaction(fid, g.factionOrder)
	}
	for _, p := range players {
		if p.SpiritID == "" {
			return nil, errors.New("player with empty spirit id")
		}
		if _, dup := g.Spirits[p.SpiritID]; dup {
			return nil, fmt.Errorf("duplicate spirit id %q", p.SpiritID)
		}
		g.Spirits[p.SpiritID] = NewSpirit(p.SpiritID, p.Name)
		g.spiritOrder = append(g.spiritOrder, p.SpiritID)
	}
	sort.Strings(g.spiritOrder)
	return g, nil
}

// FactionOrder returns the canonical faction iteration order.
func (g *GameState) FactionOrder() []string {
	return append([]string(nil), g.factionOrder...)
}

// SpiritOrder returns the spirit ids in stable order.
func (g *GameState) SpiritOrder() []string {
	return append([]string(nil), g.spiritOrder...)
}

// liveNeighbors returns the live factions bordering fid, in canonical
// order.
func (g *GameState) liveNeighbors(fid string) []string {
	var out []string
	for _, o := range g.factionOrder {
		if o == fid || g.Factions[o].Eliminated {
			continue
		}
		if g.HexMap.AreNeighbors(fid, o) {
			out = append(out, o)
		}
	}
	return out
}

func (g *GameState) warBetween(a, b string) *War {
	for _, w := range g.Wars {
		if w.Between(a, b) {
			return w
		}
	}
	return nil
}

// SubmitAction validates and records one spirit's input for the
// current phase or sub-state. Submissions never mutate game state
// beyond the spirit's own pending entry; all consequences land when
// the phase resolves.
func (g *GameState) SubmitAction(spiritID string, a Action) error {
	s, ok := g.Spirits[spiritID]
	if !ok {
		return ErrUnknownSpirit
	}
	switch g.Phase {
	case PhaseVagrant:
		return g.submitVagrant(s, a)
	case PhaseAgenda:
		if !g.agendaPrepared {
			return g.submitAgenda(s, a)
		}
		if len(g.changePending) > 0 {
			return g.submitChangeChoice(s, a)
		}
		if len(g.ejectionPending) > 0 {
			return g.submitEjectionChoice(s, a)
		}
		return ErrActionNotNeeded
	case PhaseWar:
		return g.submitSpoilsChoice(s, a)
	}
	return ErrActionNotNeeded
}

func (g *GameState) submitVagrant(s *Spirit, a Action) error {
	if !s.Vagrant {
		return ErrActionNotNeeded
	}
	if _, dup := g.pendingActions[s.ID]; dup {
		return ErrAlreadySubmitted
	}
	if a.GuideTarget == "" && a.IdolType == "" {
		return errors.New("vagrant action needs a guide target or an idol placement")
	}
	if a.GuideTarget != "" {
		f, ok := g.Factions[a.GuideTarget]
		if !ok {
			return fmt.Errorf("unknown faction %q", a.GuideTarget)
		}
		if f.Eliminated {
			return fmt.Errorf("faction %q is eliminated", a.GuideTarget)
		}
		if f.GuidingSpirit != "" {
			return fmt.Errorf("faction %q is already guided", a.GuideTarget)
		}
	}
	if a.IdolType != "" {
		if !validIdolType(a.IdolType) {
			return fmt.Errorf("invalid idol type %q", a.IdolType)
		}
		if a.IdolQ == nil || a.IdolR == nil {
			return errors.New("idol placement needs idol_q and idol_r")
		}
		h := HexCoord{*a.IdolQ, *a.IdolR}
		if !g.HexMap.Contains(h) {
			return fmt.Errorf("hex %s is off the map", h)
		}
		if g.HexMap.OwnerOf(h) != "" {
			return fmt.Errorf("hex %s is not neutral", h)
		}
	}
	g.pendingActions[s.ID] = a
	return nil
}

// agendaHand returns the spirit's drawn hand for this agenda phase,
// drawing and caching it on first use.
func (g *GameState) agendaHand(s *Spirit) []AgendaCard {
	if hand, ok := g.drawnHands[s.ID]; ok {
		return hand
	}
	f := g.Factions[s.Faction]
	hand := f.DrawAgendaCards(1+s.Influence, g.rng)
	g.drawnHands[s.ID] = hand
	return hand
}

func (g *GameState) submitAgenda(s *Spirit, a Action) error {
	if s.Vagrant || s.Faction == "" {
		return ErrActionNotNeeded
	}
	if _, dup := g.pendingActions[s.ID]; dup {
		return ErrAlreadySubmitted
	}
	hand := g.agendaHand(s)
	if a.AgendaIndex == nil || *a.AgendaIndex < 0 || *a.AgendaIndex >= len(hand) {
		return fmt.Errorf("invalid agenda index")
	}
	g.pendingActions[s.ID] = a
	return nil
}

func (g *GameState) submitChangeChoice(s *Spirit, a Action) error {
	cards, ok := g.changePending[s.ID]
	if !ok {
		return ErrActionNotNeeded
	}
	if a.CardIndex == nil || *a.CardIndex < 0 || *a.CardIndex >= len(cards) {
		return fmt.Errorf("invalid card index")
	}
	g.changeChosen[s.Faction] = append(g.changeChosen[s.Faction], cards[*a.CardIndex])
	delete(g.changePending, s.ID)
	return nil
}

func (g *GameState) submitEjectionChoice(s *Spirit, a Action) error {
	fid, ok := g.ejectionPending[s.ID]
	if !ok {
		return ErrActionNotNeeded
	}
	if _, dup := g.ejectionChoices[s.ID]; dup {
		return ErrAlreadySubmitted
	}
	if !validAgendaType(a.RemoveType) {
		return fmt.Errorf("invalid remove type %q", a.RemoveType)
	}
	if !validAgendaType(a.AddType) {
		return fmt.Errorf("invalid add type %q", a.AddType)
	}
	f := g.Factions[fid]
	found := false
	for _, c := range f.Pool {
		if c.Type == a.RemoveType {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("type %q not in faction's agenda pool", a.RemoveType)
	}
	g.ejectionChoices[s.ID] = poolEdit{remove: a.RemoveType, add: a.AddType}
	return nil
}

func (g *GameState) submitSpoilsChoice(s *Spirit, a Action) error {
	entries := g.spoilsPending[s.ID]
	if len(entries) == 0 {
		return ErrActionNotNeeded
	}
	e := entries[0]
	if a.CardIndex == nil {
		return fmt.Errorf("invalid card index")
	}
	idx := *a.CardIndex
	switch e.stage {
	case spoilsStageCard:
		if idx < 0 || idx >= len(e.cards) {
			return fmt.Errorf("invalid card index")
		}
		e.chosen = e.cards[idx]
		if e.chosen == AgendaChange && s.Influence > 0 {
			e.stage = spoilsStageModifier
			e.changeCards = sampleChangeCards(1+s.Influence, g.rng)
			return nil
		}
	case spoilsStageModifier:
		if idx < 0 || idx >= len(e.changeCards) {
			return fmt.Errorf("invalid card index")
		}
		e.modifier = e.changeCards[idx]
	}
	g.spoilsResolved = append(g.spoilsResolved, resolvedSpoils{
		winner:       e.winner,
		loser:        e.loser,
		agenda:       e.chosen,
		battleground: e.battleground,
		modifier:     e.modifier,
		fromChoice:   true,
	})
	if len(entries) == 1 {
		delete(g.spoilsPending, s.ID)
	} else {
		g.spoilsPending[s.ID] = entries[1:]
	}
	return nil
}

// NeedsInput reports whether the game is blocked on this spirit.
func (g *GameState) NeedsInput(spiritID string) bool {
	s, ok := g.Spirits[spiritID]
	if !ok {
		return false
	}
	switch g.Phase {
	case PhaseVagrant:
		if !s.Vagrant {
			return false
		}
		if _, submitted := g.pendingActions[spiritID]; submitted {
			return false
		}
		return g.vagrantHasOptions()
	case PhaseAgenda:
		if !g.agendaPrepared {
			if s.Vagrant || s.Faction == "" {
				return false
			}
			_, submitted := g.pendingActions[spiritID]
			return !submitted
		}
		if _, ok := g.changePending[spiritID]; ok {
			return true
		}
		if _, ok := g.ejectionPending[spiritID]; ok {
			_, chosen := g.ejectionChoices[spiritID]
			return !chosen
		}
		return false
	case PhaseWar:
		return len(g.spoilsPending[spiritID]) > 0
	}
	return false
}

// vagrantHasOptions reports whether a vagrant spirit has any legal
// submission left: an unguided live faction to join, or a neutral hex
// for an idol. A spirit with neither is skipped for the phase instead
// of blocking it.
func (g *GameState) vagrantHasOptions() bool {
	for _, fid := range g.factionOrder {
		f := g.Factions[fid]
		if !f.Eliminated && f.GuidingSpirit == "" {
			return true
		}
	}
	return len(g.HexMap.NeutralHexes()) > 0
}

// SpiritsNeedingInput lists the spirits the current phase is waiting
// on, in stable order.
func (g *GameState) SpiritsNeedingInput() []string {
	var out []string
	for _, sid := range g.spiritOrder {
		if g.NeedsInput(sid) {
			out = append(out, sid)
		}
	}
	return out
}

// AllInputsReceived reports whether the current phase can resolve.
func (g *GameState) AllInputsReceived() bool {
	return len(g.SpiritsNeedingInput()) == 0
}

// GetPhaseOptions tells a spirit what it may do right now.
func (g *GameState) GetPhaseOptions(spiritID string) (PhaseOptions, error) {
	s, ok := g.Spirits[spiritID]
	if !ok {
		return PhaseOptions{}, ErrUnknownSpirit
	}
	switch g.Phase {
	case PhaseVagrant:
		if !s.Vagrant {
			return PhaseOptions{Action: "none", Reason: "not a vagrant"}, nil
		}
		if _, submitted := g.pendingActions[spiritID]; submitted {
			return PhaseOptions{Action: "none", Reason: "already submitted"}, nil
		}
		if !g.vagrantHasOptions() {
			return PhaseOptions{Action: "none", Reason: "no faction to guide and no neutral hex"}, nil
		}
		var available []string
		for _, fid := range g.factionOrder {
			f := g.Factions[fid]
			if !f.Eliminated && f.GuidingSpirit == "" {
				available = append(available, fid)
			}
		}
		return PhaseOptions{
			Action:       "choose",
			Factions:     available,
			NeutralHexes: g.HexMap.NeutralHexes(),
			IdolTypes:    append([]IdolType(nil), idolTypes...),
		}, nil
	case PhaseAgenda:
		if !g.agendaPrepared {
			if s.Vagrant || s.Faction == "" {
				return PhaseOptions{Action: "none", Reason: "not guiding a faction"}, nil
			}
			if _, submitted := g.pendingActions[spiritID]; submitted {
				return PhaseOptions{Action: "none", Reason: "already submitted"}, nil
			}
			return PhaseOptions{
				Action:  "choose_agenda",
				Faction: s.Faction,
				Hand:    g.agendaHand(s),
			}, nil
		}
		if cards, ok := g.changePending[spiritID]; ok {
			return PhaseOptions{Action: "choose", Faction: s.Faction, Cards: cards}, nil
		}
		if fid, ok := g.ejectionPending[spiritID]; ok {
			if _, chosen := g.ejectionChoices[spiritID]; !chosen {
				return PhaseOptions{
					Action:    "choose",
					Faction:   fid,
					PoolTypes: g.Factions[fid].PoolTypes(),
				}, nil
			}
		}
		return PhaseOptions{Action: "none", Reason: "waiting for phase resolution"}, nil
	case PhaseWar:
		entries := g.spoilsPending[spiritID]
		if len(entries) == 0 {
			return PhaseOptions{Action: "none", Reason: "no spoils pending"}, nil
		}
		e := entries[0]
		cards := e.cards
		if e.stage == spoilsStageModifier {
			cards = e.changeCards
		}
		return PhaseOptions{Action: "choose", Faction: e.winner, Cards: cards}, nil
	case PhaseGameOver:
		return PhaseOptions{Action: "none", Reason: "game over"}, nil
	}
	return PhaseOptions{Action: "none", Reason: "phase resolves automatically"}, nil
}
