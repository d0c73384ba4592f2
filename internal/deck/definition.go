// Package deck holds the card configuration the balance analyzer joins
// against: costs, flexibility, per-use output and typed effect descriptors.
package deck

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Card kinds.
const (
	KindUpgrade = "upgrade"
	KindWeapon  = "weapon"
)

// CardDefinition describes one card as configured for the simulation.
type CardDefinition struct {
	Name         string         `toml:"name"`
	Kind         string         `toml:"kind"`
	Cost         map[string]int `toml:"cost"`           // resource -> amount
	Flexibility  float64        `toml:"flexibility"`    // 0..1, share of situations the card is usable in
	PerUseOutput float64        `toml:"per_use_output"` // damage/VP yield per activation
	EffectTags   []string       `toml:"effects"`        // raw engine tags, e.g. "fight:cost_reduction:R3:day"

	// Effects is the parsed form of EffectTags, populated at load time so
	// analysis passes never re-parse strings.
	Effects []EffectDescriptor `toml:"-"`
}

// TotalCost returns the summed resource cost of the card.
func (c *CardDefinition) TotalCost() int {
	total := 0
	for _, amount := range c.Cost {
		total += amount
	}
	return total
}

// Definition is a loaded card pool keyed by card name.
type Definition struct {
	cards map[string]*CardDefinition
}

// deckFile is the on-disk TOML shape.
type deckFile struct {
	Cards []*CardDefinition `toml:"cards"`
}

// New builds a Definition from a list of cards, parsing effect tags.
// Duplicate names are rejected.
func New(cards []*CardDefinition) (*Definition, error) {
	byName := make(map[string]*CardDefinition, len(cards))
	for _, card := range cards {
		if card.Name == "" {
			return nil, fmt.Errorf("card with empty name")
		}
		if card.Kind != KindUpgrade && card.Kind != KindWeapon {
			return nil, fmt.Errorf("card %q has unknown kind %q", card.Name, card.Kind)
		}
		if _, exists := byName[card.Name]; exists {
			return nil, fmt.Errorf("duplicate card %q", card.Name)
		}
		card.Effects = card.Effects[:0]
		for _, tag := range card.EffectTags {
			effect, err := ParseEffectTag(tag)
			if err != nil {
				return nil, fmt.Errorf("card %q: %w", card.Name, err)
			}
			card.Effects = append(card.Effects, effect)
		}
		byName[card.Name] = card
	}
	return &Definition{cards: byName}, nil
}

// Load reads a deck definition from a TOML file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck file: %w", err)
	}

	var file deckFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse deck file: %w", err)
	}

	def, err := New(file.Cards)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Get returns the definition of a card, if the deck knows it.
func (d *Definition) Get(name string) (*CardDefinition, bool) {
	card, ok := d.cards[name]
	return card, ok
}

// Names returns all card names in sorted order.
func (d *Definition) Names() []string {
	names := make([]string, 0, len(d.cards))
	for name := range d.cards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cards in the deck.
func (d *Definition) Len() int {
	return len(d.cards)
}
