package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultCatalogLoads ensures the embedded catalog parses and is usable.
func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("expected heroes in default catalog")
	}
	for _, h := range c.Heroes() {
		if h.BaseHealth <= 0 {
			t.Fatalf("hero %s has base health %d", h.Name, h.BaseHealth)
		}
		if len(h.Skills) != 3 {
			t.Fatalf("hero %s has %d skills, want 3", h.Name, len(h.Skills))
		}
	}
}

func TestLookup(t *testing.T) {
	c, err := Parse([]byte(`{"heroes":[{"name":"A","base_health":1000,"physical_attack":50,"skills":[{"base_damage":100,"physical_damage_multiplier":1.0}]}]}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	h, err := c.Lookup("A")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if h.BaseHealth != 1000 || h.AttackPower != 50 {
		t.Fatalf("unexpected hero: %+v", h)
	}
	s, err := h.Skill(0)
	if err != nil {
		t.Fatalf("Skill returned error: %v", err)
	}
	if s.BaseDamage != 100 || s.Multiplier != 1.0 {
		t.Fatalf("unexpected skill: %+v", s)
	}

	if _, err := h.Skill(3); !errors.Is(err, ErrUnknownSkill) {
		t.Fatalf("Skill(3) error = %v, want %v", err, ErrUnknownSkill)
	}
	if _, err := h.Skill(-1); !errors.Is(err, ErrUnknownSkill) {
		t.Fatalf("Skill(-1) error = %v, want %v", err, ErrUnknownSkill)
	}
	if _, err := c.Lookup("B"); !errors.Is(err, ErrUnknownHero) {
		t.Fatalf("Lookup(B) error = %v, want %v", err, ErrUnknownHero)
	}
}

// TestParseRejectsInvalidCatalogs ensures validation failures are reported.
func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tcs := map[string]string{
		"not json":         `{"heroes":`,
		"empty":            `{"heroes":[]}`,
		"missing name":     `{"heroes":[{"base_health":10}]}`,
		"zero health":      `{"heroes":[{"name":"A","base_health":0}]}`,
		"negative attack":  `{"heroes":[{"name":"A","base_health":10,"physical_attack":-1}]}`,
		"duplicate heroes": `{"heroes":[{"name":"A","base_health":10},{"name":"A","base_health":20}]}`,
	}
	for name, doc := range tcs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("Parse error = %v, want %v", err, ErrInvalidCatalog)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "property.json")
	doc := `{"heroes":[{"name":"B","base_health":500,"physical_attack":10,"skills":[]},{"name":"A","base_health":700,"physical_attack":20,"skills":[]}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("unexpected names: %v", names)
	}
	if heroes := c.Heroes(); heroes[0].Name != "B" {
		t.Fatalf("expected catalog order to be preserved, got %s first", heroes[0].Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
