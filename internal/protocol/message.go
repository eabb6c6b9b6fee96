// internal/protocol/message.go
// Contains the records exchanged between duel clients and the server.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedMessage marks input that can never decode into a valid record.
var ErrMalformedMessage = errors.New("malformed message")

// ErrIncompleteMessage marks a buffer that holds only part of a record.
var ErrIncompleteMessage = errors.New("incomplete message")

// Op is the client operation carried in opr_type.
type Op string

const (
	OpLogin  Op = "0"
	OpMove   Op = "1"
	OpAttack Op = "2"
)

func (o Op) String() string {
	switch o {
	case OpLogin:
		return "login"
	case OpMove:
		return "move"
	case OpAttack:
		return "attack"
	default:
		return "unknown"
	}
}

// RespType is the server response kind carried in s_resp_type.
type RespType string

const (
	RespLogin    RespType = "0"
	RespMove     RespType = "1"
	RespCombat   RespType = "2"
	RespPeerLeft RespType = "3"
	RespError    RespType = "4"
)

// NoSkill is sent in the skill slot of the hero that did not attack.
const NoSkill = "99"

// Field is a client string field. Numbers and null are accepted and
// normalized, since clients are loose about coordinate types.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("field must be a string or number, got %s", data)
		}
		*f = Field(n.String())
		return nil
	}
}

type wireInbound struct {
	OprType   Field `json:"opr_type"`
	HeroName  Field `json:"hero_name"`
	HeroX     Field `json:"hero_x"`
	HeroY     Field `json:"hero_y"`
	HeroSkill Field `json:"hero_skill"`
	PeerHero  Field `json:"peer_hero"`
}

// Inbound is a decoded client record. X and Y are nil when unspecified.
type Inbound struct {
	Op       Op
	HeroName string
	X        *int
	Y        *int
	Skill    int
	PeerHero string
}

// ParseInbound decodes one JSON object into an Inbound. Any failure is ErrMalformedMessage.
func ParseInbound(data []byte) (Inbound, error) {
	var w wireInbound
	if err := json.Unmarshal(data, &w); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := Inbound{
		Op:       Op(w.OprType),
		HeroName: string(w.HeroName),
		PeerHero: string(w.PeerHero),
	}
	switch msg.Op {
	case OpLogin, OpMove, OpAttack:
	default:
		return Inbound{}, fmt.Errorf("%w: unknown opr_type %q", ErrMalformedMessage, w.OprType)
	}

	var err error
	if msg.X, err = optionalInt("hero_x", w.HeroX); err != nil {
		return Inbound{}, err
	}
	if msg.Y, err = optionalInt("hero_y", w.HeroY); err != nil {
		return Inbound{}, err
	}
	skill, err := optionalInt("hero_skill", w.HeroSkill)
	if err != nil {
		return Inbound{}, err
	}
	if skill != nil {
		msg.Skill = *skill
	}
	return msg, nil
}

func optionalInt(name string, f Field) (*int, error) {
	if f == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(string(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedMessage, name, f)
	}
	return &v, nil
}

// Encode renders an Inbound the way clients send it. Used by tests and tools.
func (m Inbound) Encode() ([]byte, error) {
	w := wireInbound{
		OprType:  Field(m.Op),
		HeroName: Field(m.HeroName),
		PeerHero: Field(m.PeerHero),
	}
	if m.X != nil {
		w.HeroX = Field(strconv.Itoa(*m.X))
	}
	if m.Y != nil {
		w.HeroY = Field(strconv.Itoa(*m.Y))
	}
	if m.Op == OpAttack {
		w.HeroSkill = Field(strconv.Itoa(m.Skill))
	}
	return json.Marshal(w)
}

// Flag is a tri-state boolean: unset encodes as "", otherwise true/false.
type Flag int8

const (
	FlagUnset Flag = iota
	FlagFalse
	FlagTrue
)

// FlagOf converts a bool into a set Flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagFalse:
		return []byte("false"), nil
	default:
		return []byte(`""`), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = FlagTrue
	case "false":
		*f = FlagFalse
	case `""`, "null":
		*f = FlagUnset
	default:
		return fmt.Errorf("invalid died flag %s", data)
	}
	return nil
}

// Outbound is a server record. hero1 always describes the recipient's own hero,
// hero2 the opponent. Blank fields mean "unchanged".
type Outbound struct {
	Type        RespType `json:"s_resp_type"`
	Hero1Name   string   `json:"s_hero1_name"`
	Hero1Health string   `json:"s_hero1_health"`
	Hero2Name   string   `json:"s_hero2_name"`
	Hero2Health string   `json:"s_hero2_health"`
	Hero1X      string   `json:"s_hero1_x"`
	Hero1Y      string   `json:"s_hero1_y"`
	Hero2X      string   `json:"s_hero2_x"`
	Hero2Y      string   `json:"s_hero2_y"`
	Hero1Skill  string   `json:"s_hero1_skill"`
	Hero2Skill  string   `json:"s_hero2_skill"`
	Died        Flag     `json:"died"`
	Reason      string   `json:"s_reason,omitempty"`
}

// Encode serializes the record as one JSON object with no trailing newline.
func (m Outbound) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// HeroState is the part of a participant that appears in an outbound record.
type HeroState struct {
	Name   string
	Health int
}

// LoginAck tells the recipient both heroes and their initial health.
func LoginAck(self, peer HeroState) Outbound {
	return Outbound{
		Type:        RespLogin,
		Hero1Name:   self.Name,
		Hero1Health: strconv.Itoa(self.Health),
		Hero2Name:   peer.Name,
		Hero2Health: strconv.Itoa(peer.Health),
	}
}

// MoveUpdate relays coordinates. When mine is true the coordinates belong to
// the recipient's hero and fill the hero1 slots, otherwise the hero2 slots.
// Nil coordinates are sent blank.
func MoveUpdate(selfName, peerName string, x, y *int, mine bool) Outbound {
	m := Outbound{Type: RespMove, Hero1Name: selfName, Hero2Name: peerName}
	if mine {
		m.Hero1X, m.Hero1Y = itoaPtr(x), itoaPtr(y)
	} else {
		m.Hero2X, m.Hero2Y = itoaPtr(x), itoaPtr(y)
	}
	return m
}

// CombatUpdate reports both healths after an attack. attacked is true when the
// recipient is the one who cast the skill.
func CombatUpdate(self, peer HeroState, skill int, attacked bool, died bool) Outbound {
	m := Outbound{
		Type:        RespCombat,
		Hero1Name:   self.Name,
		Hero1Health: strconv.Itoa(self.Health),
		Hero2Name:   peer.Name,
		Hero2Health: strconv.Itoa(peer.Health),
		Hero1Skill:  NoSkill,
		Hero2Skill:  NoSkill,
		Died:        FlagOf(died),
	}
	if attacked {
		m.Hero1Skill = strconv.Itoa(skill)
	} else {
		m.Hero2Skill = strconv.Itoa(skill)
	}
	return m
}

// PeerLeft tells the recipient the opponent disconnected.
func PeerLeft(peerName string) Outbound {
	return Outbound{Type: RespPeerLeft, Hero2Name: peerName, Reason: "peer disconnected"}
}

// SessionError tells the recipient the session ended because of reason.
func SessionError(reason string) Outbound {
	return Outbound{Type: RespError, Reason: reason}
}

// ParseOutbound decodes a server record. Used by clients and tests.
func ParseOutbound(data []byte) (Outbound, error) {
	var m Outbound
	if err := json.Unmarshal(data, &m); err != nil {
		return Outbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

func itoaPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
