// internal/duel/session.go
// Authoritative state of one two-party duel. The owning goroutine is the only caller.
package duel

import (
	"errors"
	"fmt"

	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/protocol"
)

var (
	// ErrPeerTimeout means the second login did not arrive in time.
	ErrPeerTimeout = errors.New("peer login timed out")
	// ErrNotActive rejects gameplay before both heroes are bound.
	ErrNotActive = errors.New("session is not active")
	// ErrSessionTerminated rejects gameplay after a hero died.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrAlreadyLoggedIn rejects a login once hero identities are fixed.
	ErrAlreadyLoggedIn = errors.New("heroes already bound")
)

// State is the session lifecycle tag.
type State int

const (
	AwaitingLogins State = iota
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingLogins:
		return "awaiting_logins"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Side identifies one of the two participants.
type Side int

const (
	SideA Side = iota
	SideB
)

// Other returns the opposing side.
func (s Side) Other() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

// HeroSource looks up hero definitions by name.
type HeroSource interface {
	Lookup(name string) (catalog.Hero, error)
}

// DamageResolver computes the damage of one skill use.
type DamageResolver interface {
	Resolve(skill catalog.Skill, attackPower int) int
}

// Participant is one side's mutable in-session state.
type Participant struct {
	Hero   catalog.Hero
	Health int
	X, Y   int
}

// Delivery is one outbound record addressed to a side.
type Delivery struct {
	To      Side
	Message protocol.Outbound
}

// CombatResult describes a resolved attack.
type CombatResult struct {
	Attacker       Side
	Defender       Side
	AttackerHero   string
	DefenderHero   string
	SkillIndex     int
	Damage         int
	DefenderHealth int
	Died           bool
}

// Outcome is everything a handled message produced.
type Outcome struct {
	Deliveries []Delivery
	Started    bool
	Combat     *CombatResult
}

// Options tunes rule variants.
type Options struct {
	// AllowPlayAfterDeath keeps accepting moves and attacks once a hero died,
	// matching older clients that keep playing on negative health.
	AllowPlayAfterDeath bool
}

// Session owns exactly two participants.
type Session struct {
	ID string

	heroes   HeroSource
	resolver DamageResolver
	opts     Options

	state        State
	claims       [2]string
	claimed      [2]bool
	participants [2]Participant
	winner       *Side
	endErr       error
}

// New creates a session in AwaitingLogins.
func New(id string, heroes HeroSource, resolver DamageResolver, opts Options) *Session {
	return &Session{
		ID:       id,
		heroes:   heroes,
		resolver: resolver,
		opts:     opts,
		state:    AwaitingLogins,
	}
}

// State returns the current lifecycle tag.
func (s *Session) State() State {
	return s.state
}

// LoginsReceived returns how many sides have claimed a hero.
func (s *Session) LoginsReceived() int {
	n := 0
	for _, ok := range s.claimed {
		if ok {
			n++
		}
	}
	return n
}

// Participant returns a copy of one side's state.
func (s *Session) Participant(side Side) Participant {
	p := s.participants[side]
	p.Hero.Skills = append([]catalog.Skill(nil), p.Hero.Skills...)
	return p
}

// Handle applies one inbound message from side and returns the records to relay.
// Per-message rejections (ErrNotActive, ErrAlreadyLoggedIn, ErrSessionTerminated,
// catalog.ErrUnknownSkill) leave the session unchanged. catalog.ErrUnknownHero is
// fatal and moves the session to Terminated.
func (s *Session) Handle(from Side, msg protocol.Inbound) (Outcome, error) {
	switch msg.Op {
	case protocol.OpLogin:
		return s.login(from, msg.HeroName)
	case protocol.OpMove:
		if err := s.ensurePlayable(); err != nil {
			return Outcome{}, err
		}
		return s.move(from, msg.X, msg.Y), nil
	case protocol.OpAttack:
		if err := s.ensurePlayable(); err != nil {
			return Outcome{}, err
		}
		return s.attack(from, msg.Skill)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown op %q", protocol.ErrMalformedMessage, msg.Op)
	}
}

// Expire fails a session still waiting for a login.
func (s *Session) Expire() error {
	if s.state != AwaitingLogins {
		return nil
	}
	missing := SideA
	if s.claimed[SideA] {
		missing = SideB
	}
	s.state = Terminated
	s.endErr = fmt.Errorf("%w: side %s never logged in", ErrPeerTimeout, missing)
	return s.endErr
}

func (s *Session) ensurePlayable() error {
	switch s.state {
	case AwaitingLogins:
		return ErrNotActive
	case Terminated:
		if s.winner == nil || !s.opts.AllowPlayAfterDeath {
			return ErrSessionTerminated
		}
	}
	return nil
}

func (s *Session) login(from Side, name string) (Outcome, error) {
	if s.state != AwaitingLogins {
		return Outcome{}, ErrAlreadyLoggedIn
	}
	s.claims[from] = name
	s.claimed[from] = true
	if !s.claimed[from.Other()] {
		return Outcome{}, nil
	}

	var heroes [2]catalog.Hero
	for _, side := range []Side{SideA, SideB} {
		h, err := s.heroes.Lookup(s.claims[side])
		if err != nil {
			s.state = Terminated
			s.endErr = fmt.Errorf("side %s: %w", side, err)
			return Outcome{}, s.endErr
		}
		heroes[side] = h
	}
	for _, side := range []Side{SideA, SideB} {
		s.participants[side] = Participant{Hero: heroes[side], Health: heroes[side].BaseHealth}
	}
	s.state = Active

	return Outcome{
		Started: true,
		Deliveries: []Delivery{
			{To: from, Message: protocol.LoginAck(s.heroState(from), s.heroState(from.Other()))},
			{To: from.Other(), Message: protocol.LoginAck(s.heroState(from.Other()), s.heroState(from))},
		},
	}, nil
}

func (s *Session) move(from Side, x, y *int) Outcome {
	p := &s.participants[from]
	if x != nil {
		p.X = *x
	}
	if y != nil {
		p.Y = *y
	}

	self, peer := s.name(from), s.name(from.Other())
	return Outcome{Deliveries: []Delivery{
		{To: from, Message: protocol.MoveUpdate(self, peer, x, y, true)},
		{To: from.Other(), Message: protocol.MoveUpdate(peer, self, x, y, false)},
	}}
}

func (s *Session) attack(from Side, index int) (Outcome, error) {
	attacker := s.participants[from]
	skill, err := attacker.Hero.Skill(index)
	if err != nil {
		return Outcome{}, err
	}

	to := from.Other()
	damage := s.resolver.Resolve(skill, attacker.Hero.AttackPower)
	s.participants[to].Health -= damage
	died := s.participants[to].Health <= 0
	if died && s.winner == nil {
		winner := from
		s.winner = &winner
		s.state = Terminated
	}

	atk, def := s.heroState(from), s.heroState(to)
	if died {
		def.Health = 0
	}
	return Outcome{
		Combat: &CombatResult{
			Attacker:       from,
			Defender:       to,
			AttackerHero:   atk.Name,
			DefenderHero:   def.Name,
			SkillIndex:     index,
			Damage:         damage,
			DefenderHealth: s.participants[to].Health,
			Died:           died,
		},
		Deliveries: []Delivery{
			{To: from, Message: protocol.CombatUpdate(atk, def, index, true, died)},
			{To: to, Message: protocol.CombatUpdate(def, atk, index, false, died)},
		},
	}, nil
}

func (s *Session) name(side Side) string {
	return s.participants[side].Hero.Name
}

func (s *Session) heroState(side Side) protocol.HeroState {
	p := s.participants[side]
	return protocol.HeroState{Name: p.Hero.Name, Health: p.Health}
}

// Winner returns the side that landed the killing blow, if any.
func (s *Session) Winner() (Side, bool) {
	if s.winner == nil {
		return 0, false
	}
	return *s.winner, true
}

// Err returns the fatal error that terminated the session, if any.
func (s *Session) Err() error {
	return s.endErr
}
