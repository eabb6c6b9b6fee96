// internal/catalog/catalog.go
// Read-only table of hero definitions, loaded once at startup and shared by every session.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

//go:embed heroes.json
var defaultHeroes []byte

// ErrUnknownHero is returned when a hero name has no catalog entry.
var ErrUnknownHero = errors.New("unknown hero")

// ErrUnknownSkill is returned when a skill index is outside a hero's skill list.
var ErrUnknownSkill = errors.New("unknown skill")

// ErrInvalidCatalog indicates the catalog resource failed validation.
var ErrInvalidCatalog = errors.New("invalid hero catalog")

// Skill is one entry of a hero's skill list, referenced by position.
type Skill struct {
	Name       string  `json:"name,omitempty"`
	BaseDamage int     `json:"base_damage"`
	Multiplier float64 `json:"physical_damage_multiplier"`
}

// Hero is an immutable hero definition.
type Hero struct {
	Name        string  `json:"name"`
	BaseHealth  int     `json:"base_health"`
	AttackPower int     `json:"physical_attack"`
	Skills      []Skill `json:"skills"`
}

// Skill returns the skill at index i.
func (h Hero) Skill(i int) (Skill, error) {
	if i < 0 || i >= len(h.Skills) {
		return Skill{}, fmt.Errorf("%w: %s has no skill %d", ErrUnknownSkill, h.Name, i)
	}
	return h.Skills[i], nil
}

type document struct {
	Heroes []Hero `json:"heroes"`
}

// Catalog maps hero names to definitions. It is never mutated after Parse.
type Catalog struct {
	heroes map[string]Hero
	order  []string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultHeroes)
}

// Load reads a catalog from path, falling back to the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hero catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Heroes) == 0 {
		return nil, fmt.Errorf("%w: no heroes", ErrInvalidCatalog)
	}

	c := &Catalog{heroes: make(map[string]Hero, len(doc.Heroes))}
	for _, h := range doc.Heroes {
		switch {
		case h.Name == "":
			return nil, fmt.Errorf("%w: hero without a name", ErrInvalidCatalog)
		case h.BaseHealth <= 0:
			return nil, fmt.Errorf("%w: %s base_health must be positive", ErrInvalidCatalog, h.Name)
		case h.AttackPower < 0:
			return nil, fmt.Errorf("%w: %s physical_attack must not be negative", ErrInvalidCatalog, h.Name)
		}
		if _, dup := c.heroes[h.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate hero %s", ErrInvalidCatalog, h.Name)
		}
		skills := make([]Skill, len(h.Skills))
		copy(skills, h.Skills)
		h.Skills = skills
		c.heroes[h.Name] = h
		c.order = append(c.order, h.Name)
	}
	return c, nil
}

// Lookup returns the hero registered under name.
func (c *Catalog) Lookup(name string) (Hero, error) {
	h, ok := c.heroes[name]
	if !ok {
		return Hero{}, fmt.Errorf("%w: %q", ErrUnknownHero, name)
	}
	return h, nil
}

// Heroes returns every hero in catalog order. Skill slices are copies.
func (c *Catalog) Heroes() []Hero {
	out := make([]Hero, 0, len(c.order))
	for _, name := range c.order {
		h := c.heroes[name]
		h.Skills = append([]Skill(nil), h.Skills...)
		out = append(out, h)
	}
	return out
}

// Names returns the sorted hero names.
func (c *Catalog) Names() []string {
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of heroes.
func (c *Catalog) Len() int {
	return len(c.order)
}
