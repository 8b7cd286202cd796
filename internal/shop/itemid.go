package shop

import (
	"errors"
	"fmt"
	"strings"
)

// ItemID is the parsed form of an item identifier like
// "weapons_sword_iron_sword": category and subcategory drive local data
// lookup, the rest is the item name.
type ItemID struct {
	Category    string
	Subcategory string
	Name        string
}

var ErrBadItemID = errors.New("bad item id")

// twoWordCategories are the grammar exceptions: their category spans the
// first two underscore-delimited tokens.
var twoWordCategories = map[string]bool{
	"learning_modifiers": true,
	"reward_modifiers":   true,
}

// ParseItemID splits category_subcategory_name. Two-word categories may
// omit the subcategory when only one token follows.
func ParseItemID(id string) (ItemID, error) {
	parts := strings.Split(id, "_")
	if len(parts) >= 2 {
		if two := parts[0] + "_" + parts[1]; twoWordCategories[two] {
			rest := parts[2:]
			switch len(rest) {
			case 0:
				return ItemID{}, fmt.Errorf("%w: %q has no name", ErrBadItemID, id)
			case 1:
				return ItemID{Category: two, Name: rest[0]}, nil
			default:
				return ItemID{Category: two, Subcategory: rest[0], Name: strings.Join(rest[1:], "_")}, nil
			}
		}
	}
	if len(parts) < 3 {
		return ItemID{}, fmt.Errorf("%w: %q needs category_subcategory_name", ErrBadItemID, id)
	}
	return ItemID{Category: parts[0], Subcategory: parts[1], Name: strings.Join(parts[2:], "_")}, nil
}
