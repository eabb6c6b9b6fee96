package duel

// HeroView is the externally visible state of one participant.
type HeroView struct {
	Side     string `json:"side"`
	Claimed  string `json:"claimed_hero,omitempty"`
	Hero     string `json:"hero,omitempty"`
	Health   int    `json:"health"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Defeated bool   `json:"defeated"`
}

// Snapshot is a value copy of a session, safe to hand to other goroutines.
type Snapshot struct {
	ID      string      `json:"id"`
	State   string      `json:"state"`
	Heroes  [2]HeroView `json:"heroes"`
	Winner  string      `json:"winner,omitempty"`
	Failure string      `json:"failure,omitempty"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{ID: s.ID, State: s.state.String()}
	for _, side := range []Side{SideA, SideB} {
		p := s.participants[side]
		snap.Heroes[side] = HeroView{
			Side:     side.String(),
			Claimed:  s.claims[side],
			Hero:     p.Hero.Name,
			Health:   p.Health,
			X:        p.X,
			Y:        p.Y,
			Defeated: p.Hero.Name != "" && p.Health <= 0,
		}
	}
	if w, ok := s.Winner(); ok {
		snap.Winner = s.participants[w].Hero.Name
	}
	if s.endErr != nil {
		snap.Failure = s.endErr.Error()
	}
	return snap
}
