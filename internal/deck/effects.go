package deck

import (
	"fmt"
	"strconv"
	"strings"
)

// EffectDescriptor is the typed form of an engine effect tag such as
// "fight:cost_reduction:R3:day". The engine encodes effects as colon-joined
// strings; they are parsed exactly once, at deck load.
type EffectDescriptor struct {
	Action string // triggering action, e.g. "fight", "buy_weapon"
	Effect string // effect name, e.g. "cost_reduction"
	Round  int    // 0 when the effect is not round-bound
	Era    string // "" when the effect is not era-bound
}

// String renders the descriptor back into tag form.
func (e EffectDescriptor) String() string {
	parts := []string{e.Action, e.Effect}
	if e.Round > 0 {
		parts = append(parts, fmt.Sprintf("R%d", e.Round))
	}
	if e.Era != "" {
		parts = append(parts, e.Era)
	}
	return strings.Join(parts, ":")
}

// ParseEffectTag parses an engine effect tag. The format is
// "action:effect[:Rn][:era]" with the optional parts in any order after the
// first two.
func ParseEffectTag(tag string) (EffectDescriptor, error) {
	parts := strings.Split(tag, ":")
	if len(parts) < 2 {
		return EffectDescriptor{}, fmt.Errorf("effect tag %q: need at least action:effect", tag)
	}

	desc := EffectDescriptor{Action: parts[0], Effect: parts[1]}
	if desc.Action == "" || desc.Effect == "" {
		return EffectDescriptor{}, fmt.Errorf("effect tag %q: empty action or effect", tag)
	}

	for _, part := range parts[2:] {
		switch {
		case part == "day" || part == "night":
			if desc.Era != "" {
				return EffectDescriptor{}, fmt.Errorf("effect tag %q: duplicate era", tag)
			}
			desc.Era = part
		case len(part) > 1 && part[0] == 'R':
			round, err := strconv.Atoi(part[1:])
			if err != nil || round < 1 {
				return EffectDescriptor{}, fmt.Errorf("effect tag %q: bad round %q", tag, part)
			}
			if desc.Round != 0 {
				return EffectDescriptor{}, fmt.Errorf("effect tag %q: duplicate round", tag)
			}
			desc.Round = round
		default:
			return EffectDescriptor{}, fmt.Errorf("effect tag %q: unknown part %q", tag, part)
		}
	}
	return desc, nil
}
