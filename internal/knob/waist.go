package knob

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/rws/internal/optics"
)

// Side is the side of the IP towards which the waist is moved.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// ParseSide accepts left/right or l/r, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("invalid side %q: want left or right", s)
}

// WaistShiftUnit is the relative triplet powering change of a unit setting.
const WaistShiftUnit = 0.005

// RigidWaistShift returns the triplet knobs of a rigid waist shift at ip. The
// triplet on the given side is strengthened by setting*WaistShiftUnit of its
// nominal powering and the opposite triplet weakened by the same fraction.
// The nominal powering is read from the table like Derive reads it.
func RigidWaistShift(nominal *optics.Table, ip int, setting float64, side Side) (*Set, error) {
	if math.IsNaN(setting) || math.IsInf(setting, 0) {
		return nil, fmt.Errorf("invalid waist shift setting %v", setting)
	}

	left := fmt.Sprintf("kqx.l%d", ip)
	right := fmt.Sprintf("kqx.r%d", ip)
	nomLeft, ok := Strength(nominal, left)
	if !ok {
		return nil, &UnknownCircuitError{Circuit: left}
	}
	nomRight, ok := Strength(nominal, right)
	if !ok {
		return nil, &UnknownCircuitError{Circuit: right}
	}

	change := WaistShiftUnit * setting
	if side == Right {
		change = -change
	}

	meta := Metadata{
		Beam:     nominal.Beam(),
		IP:       ip,
		Energy:   nominal.Energy(),
		Scenario: "bare",
		Label:    "triplets",
	}
	return NewSet(meta,
		Knob{Circuit: left, Delta: nomLeft * change},
		Knob{Circuit: right, Delta: -nomRight * change},
	)
}
