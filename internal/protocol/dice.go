package protocol

import "fmt"

// DiceRoll is a pair of die faces, each in 1..=6.
type DiceRoll struct {
	D1 uint8
	D2 uint8
}

// NewDiceRoll validates and constructs a DiceRoll.
func NewDiceRoll(d1, d2 uint8) (DiceRoll, error) {
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return DiceRoll{}, fmt.Errorf("%w: invalid dice faces %d,%d", ErrValidation, d1, d2)
	}
	return DiceRoll{D1: d1, D2: d2}, nil
}

// Total returns the sum of both faces.
func (d DiceRoll) Total() uint8 { return d.D1 + d.D2 }

// IsNatural reports whether the total is 7 or 11.
func (d DiceRoll) IsNatural() bool {
	t := d.Total()
	return t == 7 || t == 11
}

// IsCraps reports whether the total is 2, 3, or 12.
func (d DiceRoll) IsCraps() bool {
	t := d.Total()
	return t == 2 || t == 3 || t == 12
}

// IsHardWay reports whether both dice show the same face and the total
// is a hard-way-eligible point (4, 6, 8, or 10).
func (d DiceRoll) IsHardWay() bool {
	if d.D1 != d.D2 {
		return false
	}
	t := d.Total()
	return t == 4 || t == 6 || t == 8 || t == 10
}

// Phase is the craps come-out/point state machine.
type Phase struct {
	// Point is 0 for ComeOut, or one of {4,5,6,8,9,10} when a point is
	// established.
	Point uint8
}

// ComeOut constructs the initial come-out phase.
func ComeOut() Phase { return Phase{Point: 0} }

// IsComeOut reports whether the phase is the come-out phase.
func (p Phase) IsComeOut() bool { return p.Point == 0 }

// IsValidPoint reports whether v is one of the five legal point numbers.
func IsValidPoint(v uint8) bool {
	switch v {
	case 4, 5, 6, 8, 9, 10:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	if p.IsComeOut() {
		return "come-out"
	}
	return fmt.Sprintf("point(%d)", p.Point)
}
