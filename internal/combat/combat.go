// Package combat computes randomized skill damage.
package combat

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"github.com/erilali/duelserver/internal/catalog"
)

// Spread is the half-width of the damage interval around the raw damage.
const Spread = 20

// epsilon absorbs float noise such as 50*1.1 = 55.000000000000007.
const epsilon = 1e-9

// Raw returns the deterministic part of a skill's damage:
// base damage plus attack power scaled by the skill multiplier. It is not rounded.
func Raw(skill catalog.Skill, attackPower int) float64 {
	return float64(skill.BaseDamage) + float64(attackPower)*skill.Multiplier
}

// Bounds returns the integer damage range inside [Raw-Spread, Raw+Spread].
func Bounds(skill catalog.Skill, attackPower int) (lo, hi int) {
	raw := Raw(skill, attackPower)
	lo = int(math.Ceil(raw - Spread - epsilon))
	hi = int(math.Floor(raw + Spread + epsilon))
	return lo, hi
}

// Resolver samples damage uniformly from Bounds. No clamping is applied,
// so damage can be negative for weak skills.
//
// A Resolver is not safe for concurrent use; each session owns its own.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver returns a Resolver whose sequence is fully determined by seed.
func NewResolver(seed int64) *Resolver {
	return &Resolver{rng: rand.New(rand.NewSource(seed))}
}

// Seed draws a resolver seed from crypto/rand, or from the clock if that fails.
func Seed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.BigEndian.Uint64(b[:]))
}

// Resolve returns the damage dealt by skill when used by a hero with attackPower.
func (r *Resolver) Resolve(skill catalog.Skill, attackPower int) int {
	lo, hi := Bounds(skill, attackPower)
	return lo + r.rng.Intn(hi-lo+1)
}
