package fleet

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Euler is a roll/pitch/yaw triple in radians. It is diagnostic only and never
// feeds control decisions.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// EulerFromQuat converts an orientation to roll/pitch/yaw. At the pitch
// singularity yaw is pinned to zero and the whole rotation is reported as roll.
func EulerFromQuat(q quat.Number) Euler {
	n := quat.Abs(q)
	if n == 0 {
		return Euler{}
	}
	w, x, y, z := q.Real/n, q.Imag/n, q.Jmag/n, q.Kmag/n

	r00 := 1 - 2*(y*y+z*z)
	r10 := 2 * (x*y + w*z)
	r20 := 2 * (x*z - w*y)
	r21 := 2 * (y*z + w*x)
	r22 := 1 - 2*(x*x+y*y)

	if math.Abs(r20) >= 1 {
		out := Euler{Yaw: 0, Roll: math.Atan2(r21, r22)}
		if r20 < 0 {
			out.Pitch = math.Pi / 2
		} else {
			out.Pitch = -math.Pi / 2
		}
		return out
	}

	pitch := -math.Asin(r20)
	c := math.Cos(pitch)
	return Euler{
		Roll:  math.Atan2(r21/c, r22/c),
		Pitch: pitch,
		Yaw:   math.Atan2(r10/c, r00/c),
	}
}
