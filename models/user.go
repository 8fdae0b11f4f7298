package models

import "fmt"

// Avatar maps customization slot names to selected values. The uniformcolor
// slot is special: game rooms overwrite it per occupant so everyone in a
// fight wears a different color.
type Avatar map[string]int

const UniformColorSlot = "uniformcolor"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Nickname string `json:"nickname"`
	Avatar   Avatar `json:"avatar"`
	Level    int    `json:"level"`
	School   string `json:"school"`
}

// avatarSlots defines the legal customization slots, the highest legal value
// for each, and the user level required to use them.
var avatarSlots = map[string]struct {
	Max      int
	MinLevel int
}{
	UniformColorSlot: {Max: 5, MinLevel: 0},
	"hair":           {Max: 7, MinLevel: 0},
	"face":           {Max: 5, MinLevel: 0},
	"skin":           {Max: 5, MinLevel: 0},
	"dress":          {Max: 9, MinLevel: 0},
	"accessory":      {Max: 9, MinLevel: 2},
	"badge":          {Max: 4, MinLevel: 5},
}

// ValidateAvatar gates avatar writes: unknown slots, out-of-range values and
// slots above the user's level are all rejected.
func ValidateAvatar(avatar Avatar, level int) error {
	for slot, value := range avatar {
		rule, ok := avatarSlots[slot]
		if !ok {
			return fmt.Errorf("unknown avatar slot %q", slot)
		}
		if value < 0 || value > rule.Max {
			return fmt.Errorf("avatar slot %q value %d out of range", slot, value)
		}
		if level < rule.MinLevel {
			return fmt.Errorf("avatar slot %q requires level %d", slot, rule.MinLevel)
		}
	}
	return nil
}

// Clone returns an independent copy so a room can restyle an occupant without
// touching the persisted avatar.
func (a Avatar) Clone() Avatar {
	clone := make(Avatar, len(a))
	for k, v := range a {
		clone[k] = v
	}
	return clone
}
