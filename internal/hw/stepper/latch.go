package stepper

// Coil-enable bits. Bit i set means coil line i is held high.
const (
	coilAIN2 uint8 = 1 << iota
	coilBIN1
	coilAIN1
	coilBIN2
)

// Half-step energization sequence, one entry per octant of the cycle:
// single coil, then the pair it shares with the next coil.
var octantMasks = [8]uint8{
	0b0001,
	0b0011,
	0b0010,
	0b0110,
	0b0100,
	0b1100,
	0b1000,
	0b1001,
}

// Microstepping always energizes the pair that spans the quadrant.
var quadrantMasks = [4]uint8{
	0b0011,
	0b0110,
	0b1100,
	0b1001,
}

// coilMask derives the enable pattern from the wrapped position.
func coilMask(s, m int, style Style) uint8 {
	if style == Microstep {
		return quadrantMasks[s/m]
	}
	return octantMasks[(s/(m/2))%8]
}
