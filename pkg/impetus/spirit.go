package impetus

// Spirit is a player. Spirits alternate between vagrancy, where they
// place idols and court factions, and possession, where they choose a
// faction's agenda each turn.
type Spirit struct {
	ID            string
	Name          string
	Vagrant       bool
	Faction       string
	Influence     int
	VictoryPoints float64
}

// NewSpirit builds a vagrant spirit with full influence.
func NewSpirit(id, name string) *Spirit {
	return &Spirit{
		ID:        id,
		Name:      name,
		Vagrant:   true,
		Influence: StartingInfluence,
	}
}

// Possess binds the spirit to a faction and refreshes influence.
func (s *Spirit) Possess(fid string) {
	s.Vagrant = false
	s.Faction = fid
	s.Influence = MaxInfluence
}

// BecomeVagrant ejects the spirit from its faction.
func (s *Spirit) BecomeVagrant() {
	s.Vagrant = true
	s.Faction = ""
	s.Influence = StartingInfluence
}

// SpendInfluence removes influence down to a floor of zero.
func (s *Spirit) SpendInfluence(n int) {
	s.Influence -= n
	if s.Influence < 0 {
		s.Influence = 0
	}
}
