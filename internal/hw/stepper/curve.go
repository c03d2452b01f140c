package stepper

// Quarter-sine current envelopes, one entry per microstep plus the end point.
var (
	microstepCurve8  = []int{0, 50, 98, 142, 180, 212, 236, 250, 255}
	microstepCurve16 = []int{0, 25, 50, 74, 98, 120, 141, 162, 180, 197, 212, 225, 236, 244, 250, 253, 255}
)

// curveFor returns the envelope for m microsteps per phase.
func curveFor(m int) ([]int, error) {
	switch m {
	case 8:
		return microstepCurve8, nil
	case 16:
		return microstepCurve16, nil
	default:
		return nil, &ConfigurationError{Microsteps: m}
	}
}

// magnitudes returns the coil A and B currents (0-255) for position s.
// The two envelopes are 90° apart so the blend rotates smoothly.
func magnitudes(curve []int, s, m int) (a, b int) {
	switch s / m {
	case 0:
		return curve[m-s], curve[s]
	case 1:
		return curve[s-m], curve[2*m-s]
	case 2:
		return curve[3*m-s], curve[s-2*m]
	default:
		return curve[s-3*m], curve[4*m-s]
	}
}
