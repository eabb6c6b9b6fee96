package duel

import (
	"errors"
	"testing"

	"github.com/erilali/duelserver/internal/catalog"
	"github.com/erilali/duelserver/internal/combat"
	"github.com/erilali/duelserver/internal/protocol"
)

const testCatalog = `{"heroes":[
	{"name":"A","base_health":1000,"physical_attack":50,"skills":[
		{"base_damage":100,"physical_damage_multiplier":1.0},
		{"base_damage":400,"physical_damage_multiplier":2.0}]},
	{"name":"B","base_health":1000,"physical_attack":40,"skills":[
		{"base_damage":100,"physical_damage_multiplier":1.0}]},
	{"name":"Weak","base_health":30,"physical_attack":0,"skills":[]}
]}`

type fixedDamage int

func (d fixedDamage) Resolve(catalog.Skill, int) int { return int(d) }

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return c
}

func intp(v int) *int { return &v }

func login(name string) protocol.Inbound {
	return protocol.Inbound{Op: protocol.OpLogin, HeroName: name}
}

func attack(skill int) protocol.Inbound {
	return protocol.Inbound{Op: protocol.OpAttack, Skill: skill}
}

func startSession(t *testing.T, resolver DamageResolver, opts Options, heroA, heroB string) *Session {
	t.Helper()
	s := New("test", newCatalog(t), resolver, opts)
	if _, err := s.Handle(SideA, login(heroA)); err != nil {
		t.Fatalf("login A: %v", err)
	}
	out, err := s.Handle(SideB, login(heroB))
	if err != nil {
		t.Fatalf("login B: %v", err)
	}
	if !out.Started || s.State() != Active {
		t.Fatalf("expected session to start, state %s", s.State())
	}
	return s
}

func deliveryTo(t *testing.T, out Outcome, side Side) protocol.Outbound {
	t.Helper()
	for _, d := range out.Deliveries {
		if d.To == side {
			return d.Message
		}
	}
	t.Fatalf("no delivery to side %s in %+v", side, out.Deliveries)
	return protocol.Outbound{}
}

// TestLoginAckIsOrderIndependent ensures both peers see the same pair regardless of who logs in first.
func TestLoginAckIsOrderIndependent(t *testing.T) {
	for _, first := range []Side{SideA, SideB} {
		s := New("test", newCatalog(t), fixedDamage(0), Options{})
		names := map[Side]string{SideA: "A", SideB: "B"}

		out, err := s.Handle(first, login(names[first]))
		if err != nil {
			t.Fatalf("first login: %v", err)
		}
		if len(out.Deliveries) != 0 || s.State() != AwaitingLogins || s.LoginsReceived() != 1 {
			t.Fatalf("first login should only be recorded, got %+v in %s", out, s.State())
		}

		out, err = s.Handle(first.Other(), login(names[first.Other()]))
		if err != nil {
			t.Fatalf("second login: %v", err)
		}
		if len(out.Deliveries) != 2 {
			t.Fatalf("expected 2 deliveries, got %d", len(out.Deliveries))
		}
		toA, toB := deliveryTo(t, out, SideA), deliveryTo(t, out, SideB)
		wantA := protocol.LoginAck(protocol.HeroState{Name: "A", Health: 1000}, protocol.HeroState{Name: "B", Health: 1000})
		wantB := protocol.LoginAck(protocol.HeroState{Name: "B", Health: 1000}, protocol.HeroState{Name: "A", Health: 1000})
		if toA != wantA || toB != wantB {
			t.Fatalf("first=%s: acks = %+v / %+v", first, toA, toB)
		}
	}
}

func TestLoginUnknownHeroIsFatal(t *testing.T) {
	s := New("test", newCatalog(t), fixedDamage(0), Options{})
	if _, err := s.Handle(SideA, login("A")); err != nil {
		t.Fatalf("login A: %v", err)
	}
	_, err := s.Handle(SideB, login("Nobody"))
	if !errors.Is(err, catalog.ErrUnknownHero) {
		t.Fatalf("login error = %v, want %v", err, catalog.ErrUnknownHero)
	}
	if s.State() != Terminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
	if !errors.Is(s.Err(), catalog.ErrUnknownHero) {
		t.Fatalf("Err = %v", s.Err())
	}
	if _, err := s.Handle(SideA, attack(0)); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("attack error = %v, want %v", err, ErrSessionTerminated)
	}
}

func TestReloginBeforePairingOverwritesClaim(t *testing.T) {
	s := New("test", newCatalog(t), fixedDamage(0), Options{})
	s.Handle(SideA, login("Nobody"))
	s.Handle(SideA, login("A"))
	out, err := s.Handle(SideB, login("B"))
	if err != nil {
		t.Fatalf("login B: %v", err)
	}
	if deliveryTo(t, out, SideA).Hero1Name != "A" {
		t.Fatalf("expected latest claim to win: %+v", out.Deliveries)
	}
	if _, err := s.Handle(SideA, login("B")); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Fatalf("login after start error = %v, want %v", err, ErrAlreadyLoggedIn)
	}
	if s.Participant(SideA).Hero.Name != "A" {
		t.Fatal("hero identity must not change once bound")
	}
}

func TestGameplayBeforeLoginIsRejected(t *testing.T) {
	s := New("test", newCatalog(t), fixedDamage(0), Options{})
	s.Handle(SideA, login("A"))
	for _, msg := range []protocol.Inbound{attack(0), {Op: protocol.OpMove, X: intp(1)}} {
		if _, err := s.Handle(SideA, msg); !errors.Is(err, ErrNotActive) {
			t.Fatalf("Handle(%s) error = %v, want %v", msg.Op, err, ErrNotActive)
		}
	}
}

// TestMoveRelaysWithoutTouchingHealth ensures moves swap roles and leave health alone.
func TestMoveRelaysWithoutTouchingHealth(t *testing.T) {
	s := startSession(t, fixedDamage(0), Options{}, "A", "B")

	out, err := s.Handle(SideA, protocol.Inbound{Op: protocol.OpMove, X: intp(650), Y: intp(100)})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	self, peer := deliveryTo(t, out, SideA), deliveryTo(t, out, SideB)
	if self.Type != protocol.RespMove || self.Hero1X != "650" || self.Hero1Y != "100" || self.Hero2X != "" {
		t.Fatalf("self update = %+v", self)
	}
	if peer.Hero2X != "650" || peer.Hero2Y != "100" || peer.Hero1X != "" || peer.Hero1Name != "B" || peer.Hero2Name != "A" {
		t.Fatalf("peer update = %+v", peer)
	}

	// Only Y is provided: X keeps its previous value.
	out, err = s.Handle(SideA, protocol.Inbound{Op: protocol.OpMove, Y: intp(140)})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := deliveryTo(t, out, SideB); got.Hero2X != "" || got.Hero2Y != "140" {
		t.Fatalf("single axis update = %+v", got)
	}
	p := s.Participant(SideA)
	if p.X != 650 || p.Y != 140 {
		t.Fatalf("position = (%d,%d), want (650,140)", p.X, p.Y)
	}
	if p.Health != 1000 || s.Participant(SideB).Health != 1000 {
		t.Fatal("move must not change health")
	}
	if self.Hero1Health != "" || self.Hero2Health != "" {
		t.Fatalf("move update must not carry health: %+v", self)
	}
}

// TestAttackScenario follows A (attack 50) hitting B with a 100 x1.0 skill.
func TestAttackScenario(t *testing.T) {
	s := startSession(t, combat.NewResolver(3), Options{}, "A", "B")

	out, err := s.Handle(SideA, protocol.Inbound{Op: protocol.OpAttack, Skill: 0, PeerHero: "ignored"})
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	res := out.Combat
	if res == nil {
		t.Fatal("expected combat result")
	}
	if res.Damage < 130 || res.Damage > 170 {
		t.Fatalf("damage %d outside [130,170]", res.Damage)
	}
	health := 1000 - res.Damage
	if got := s.Participant(SideB).Health; got != health {
		t.Fatalf("B health = %d, want %d", got, health)
	}

	toA := deliveryTo(t, out, SideA)
	wantA := protocol.CombatUpdate(protocol.HeroState{Name: "A", Health: 1000}, protocol.HeroState{Name: "B", Health: health}, 0, true, false)
	if toA != wantA {
		t.Fatalf("attacker copy = %+v, want %+v", toA, wantA)
	}
	toB := deliveryTo(t, out, SideB)
	wantB := protocol.CombatUpdate(protocol.HeroState{Name: "B", Health: health}, protocol.HeroState{Name: "A", Health: 1000}, 0, false, false)
	if toB != wantB {
		t.Fatalf("defender copy = %+v, want %+v", toB, wantB)
	}
	if toA.Died != protocol.FlagFalse {
		t.Fatalf("died = %v, want false", toA.Died)
	}
}

func TestAttackUnknownSkillIsRejected(t *testing.T) {
	s := startSession(t, fixedDamage(10), Options{}, "A", "B")
	if _, err := s.Handle(SideB, attack(5)); !errors.Is(err, catalog.ErrUnknownSkill) {
		t.Fatalf("attack error = %v, want %v", err, catalog.ErrUnknownSkill)
	}
	if s.Participant(SideA).Health != 1000 {
		t.Fatal("rejected attack must not change health")
	}
}

// TestDeathReportsZeroHealth ensures a lethal hit reports exactly 0 and died=true.
func TestDeathReportsZeroHealth(t *testing.T) {
	s := startSession(t, combat.NewResolver(11), Options{}, "A", "Weak")

	// Skill 1: 400 + 50*2.0 = 500, so every hit deals at least 480.
	out, err := s.Handle(SideA, attack(1))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !out.Combat.Died {
		t.Fatal("expected death")
	}
	if internal := s.Participant(SideB).Health; internal >= 0 {
		t.Fatalf("internal health = %d, expected it to go negative", internal)
	}
	toA, toB := deliveryTo(t, out, SideA), deliveryTo(t, out, SideB)
	if toA.Hero2Health != "0" || toB.Hero1Health != "0" {
		t.Fatalf("dying side reported as %q/%q, want 0", toA.Hero2Health, toB.Hero1Health)
	}
	if toA.Hero1Health != "1000" || toB.Hero2Health != "1000" {
		t.Fatalf("attacker health reported as %q/%q", toA.Hero1Health, toB.Hero2Health)
	}
	if toA.Died != protocol.FlagTrue || toB.Died != protocol.FlagTrue {
		t.Fatal("died flag must be set on both copies")
	}
	if s.State() != Terminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
	if w, ok := s.Winner(); !ok || w != SideA {
		t.Fatalf("winner = %v, %v", w, ok)
	}
	if _, err := s.Handle(SideA, attack(0)); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("attack after death error = %v, want %v", err, ErrSessionTerminated)
	}
	if _, err := s.Handle(SideB, protocol.Inbound{Op: protocol.OpMove, X: intp(1)}); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("move after death error = %v, want %v", err, ErrSessionTerminated)
	}
}

// TestRepeatedAttacksEventuallyKill ensures a 30 health target dies after repeated 30+ damage hits.
func TestRepeatedAttacksEventuallyKill(t *testing.T) {
	s := startSession(t, fixedDamage(20), Options{}, "A", "Weak")

	var last Outcome
	for i := 0; i < 2; i++ {
		out, err := s.Handle(SideA, attack(0))
		if err != nil {
			t.Fatalf("attack %d: %v", i, err)
		}
		last = out
	}
	if !last.Combat.Died || deliveryTo(t, last, SideB).Hero1Health != "0" {
		t.Fatalf("expected death with zero health, got %+v", last.Combat)
	}
	if s.Participant(SideB).Health != -10 {
		t.Fatalf("internal health = %d, want -10", s.Participant(SideB).Health)
	}
}

func TestAllowPlayAfterDeath(t *testing.T) {
	s := startSession(t, fixedDamage(50), Options{AllowPlayAfterDeath: true}, "A", "Weak")
	if _, err := s.Handle(SideA, attack(0)); err != nil {
		t.Fatalf("attack: %v", err)
	}
	out, err := s.Handle(SideA, attack(0))
	if err != nil {
		t.Fatalf("attack after death: %v", err)
	}
	if !out.Combat.Died || s.Participant(SideB).Health != -70 {
		t.Fatalf("unexpected result %+v, health %d", out.Combat, s.Participant(SideB).Health)
	}
	if w, _ := s.Winner(); w != SideA {
		t.Fatal("winner must not change")
	}
}

func TestExpire(t *testing.T) {
	s := New("test", newCatalog(t), fixedDamage(0), Options{})
	s.Handle(SideB, login("B"))
	err := s.Expire()
	if !errors.Is(err, ErrPeerTimeout) {
		t.Fatalf("Expire error = %v, want %v", err, ErrPeerTimeout)
	}
	if s.State() != Terminated {
		t.Fatalf("state = %s, want terminated", s.State())
	}
	if _, err := s.Handle(SideA, login("A")); !errors.Is(err, ErrAlreadyLoggedIn) {
		t.Fatalf("late login error = %v, want %v", err, ErrAlreadyLoggedIn)
	}

	active := startSession(t, fixedDamage(0), Options{}, "A", "B")
	if err := active.Expire(); err != nil || active.State() != Active {
		t.Fatalf("Expire on active session = %v, state %s", err, active.State())
	}
}

func TestSnapshot(t *testing.T) {
	s := startSession(t, fixedDamage(1000), Options{}, "A", "B")
	s.Handle(SideB, protocol.Inbound{Op: protocol.OpMove, X: intp(3), Y: intp(4)})
	s.Handle(SideB, attack(0))

	snap := s.Snapshot()
	if snap.State != "terminated" || snap.Winner != "B" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.Heroes[SideA].Defeated || snap.Heroes[SideA].Health != 0 {
		t.Fatalf("side a view = %+v", snap.Heroes[SideA])
	}
	if snap.Heroes[SideB].X != 3 || snap.Heroes[SideB].Y != 4 {
		t.Fatalf("side b view = %+v", snap.Heroes[SideB])
	}
}
