package replay

import "fmt"

// SubState is one stage of an attack, block or jump action.
type SubState uint8

const (
	SubNone SubState = iota
	SubStartup
	SubActive
	SubRecovery
	SubWait
)

func (s SubState) String() string {
	switch s {
	case SubNone:
		return "none"
	case SubStartup:
		return "startup"
	case SubActive:
		return "active"
	case SubRecovery:
		return "recovery"
	case SubWait:
		return "wait"
	default:
		return fmt.Sprintf("substate(%d)", uint8(s))
	}
}

// StateFlags is the unpacked form of a player's packed state integer:
// attack in bits 0-2, block in bits 3-5, jump in bits 6-8, stunned in
// bit 9. Bits 10 and up are reserved and must be zero.
type StateFlags struct {
	Attack  SubState
	Block   SubState
	Jump    SubState
	Stunned bool
}

const flagsMax = 1<<10 - 1

// DecodeFlags unpacks a state integer. Reserved bits and sub-states
// outside the five defined values are rejected rather than masked, so a
// payload from a newer protocol revision fails loudly instead of
// decoding to garbage. EncodeFlags(DecodeFlags(x)) == x therefore holds
// only over the accepted domain: every sub-state in [SubNone, SubWait],
// not every integer in [0, 1023].
func DecodeFlags(packed int) (StateFlags, error) {
	if packed < 0 || packed > flagsMax {
		return StateFlags{}, fmt.Errorf("state flags %d: reserved bits set", packed)
	}
	f := StateFlags{
		Attack:  SubState(packed & 0x7),
		Block:   SubState((packed >> 3) & 0x7),
		Jump:    SubState((packed >> 6) & 0x7),
		Stunned: (packed>>9)&0x1 == 1,
	}
	if f.Attack > SubWait || f.Block > SubWait || f.Jump > SubWait {
		return StateFlags{}, fmt.Errorf("state flags %d: sub-state out of range", packed)
	}
	return f, nil
}

// EncodeFlags is the exact inverse of DecodeFlags for every value
// DecodeFlags accepts.
func EncodeFlags(f StateFlags) int {
	packed := int(f.Attack) & 0x7
	packed |= (int(f.Block) & 0x7) << 3
	packed |= (int(f.Jump) & 0x7) << 6
	if f.Stunned {
		packed |= 1 << 9
	}
	return packed
}
