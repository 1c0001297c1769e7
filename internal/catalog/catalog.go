// Package catalog holds the static content the companion draws on: life
// paths and event definitions, the gift shop, the daily routine and the
// proactive message banks. The content ships embedded as YAML.
package catalog

import (
	"embed"
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

//go:embed data/*.yaml
var files embed.FS

type LifeStage struct {
	Name   string   `yaml:"name" json:"name"`
	Events []string `yaml:"events" json:"events"`
}

type LifePath struct {
	Name   string      `yaml:"name" json:"name"`
	Stages []LifeStage `yaml:"stages" json:"stages"`
}

type lifeEventsFile struct {
	Paths       []LifePath                            `yaml:"paths"`
	Definitions map[string]domain.LifeEventDefinition `yaml:"definitions"`
}

// Catalog is read-only after Load.
type Catalog struct {
	Paths       []LifePath
	Definitions map[string]domain.LifeEventDefinition
	Gifts       []domain.Gift
	Routine     []domain.RoutineSlot
	Proactive   map[string][]string
}

// Load parses the embedded content.
func Load() (*Catalog, error) {
	var le lifeEventsFile
	if err := decode("data/life_events.yaml", &le); err != nil {
		return nil, err
	}
	c := &Catalog{
		Paths:       le.Paths,
		Definitions: le.Definitions,
	}
	for name, def := range c.Definitions {
		def.Name = name
		if def.Duration <= 0 {
			def.Duration = domain.DefaultEventDuration
		}
		c.Definitions[name] = def
	}

	if err := decode("data/gifts.yaml", &c.Gifts); err != nil {
		return nil, err
	}
	if err := decode("data/routine.yaml", &c.Routine); err != nil {
		return nil, err
	}
	if err := decode("data/proactive.yaml", &c.Proactive); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLoad is Load for program start-up; the content is compiled in, so a
// failure is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func decode(name string, v any) error {
	b, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validate() error {
	for name, def := range c.Definitions {
		for ch := range def.Effects {
			if !domain.ValidChannel(ch) {
				return fmt.Errorf("event %s: unknown effect channel %q", name, ch)
			}
		}
		for ch := range def.Reward.Channels {
			if !domain.ValidChannel(ch) {
				return fmt.Errorf("event %s: unknown reward channel %q", name, ch)
			}
		}
		if def.Goal != nil && def.Goal.Amount <= 0 {
			return fmt.Errorf("event %s: goal amount must be positive", name)
		}
	}
	seen := make(map[string]bool, len(c.Gifts))
	for _, g := range c.Gifts {
		if g.ID == "" || seen[g.ID] {
			return fmt.Errorf("gift %q: missing or duplicate id", g.ID)
		}
		seen[g.ID] = true
		for ch := range g.Effects {
			if !domain.ValidChannel(ch) {
				return fmt.Errorf("gift %s: unknown effect channel %q", g.ID, ch)
			}
		}
	}
	if !slices.IsSortedFunc(c.Routine, func(a, b domain.RoutineSlot) int { return int(a.Time) - int(b.Time) }) {
		return fmt.Errorf("routine schedule is not ordered by time")
	}
	return nil
}

// Definition returns the definition for name. Names that appear in a life
// path but carry no definition get a synthesized one; ok is false only for
// names the catalog does not know at all.
func (c *Catalog) Definition(name string) (domain.LifeEventDefinition, bool) {
	if def, ok := c.Definitions[name]; ok {
		return def, true
	}
	for _, p := range c.Paths {
		for _, s := range p.Stages {
			if slices.Contains(s.Events, name) {
				return domain.SynthesizeDefinition(name), true
			}
		}
	}
	return domain.LifeEventDefinition{}, false
}

// DefinitionNames returns the defined event names, sorted.
func (c *Catalog) DefinitionNames() []string {
	names := make([]string, 0, len(c.Definitions))
	for name := range c.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Gift(id string) (domain.Gift, bool) {
	for _, g := range c.Gifts {
		if g.ID == id {
			return g, true
		}
	}
	return domain.Gift{}, false
}

// Moods returns the proactive mood names, sorted so random picks are
// reproducible under a seeded source.
func (c *Catalog) Moods() []string {
	moods := make([]string, 0, len(c.Proactive))
	for m := range c.Proactive {
		moods = append(moods, m)
	}
	sort.Strings(moods)
	return moods
}
