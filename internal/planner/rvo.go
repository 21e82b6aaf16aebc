package planner

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const rvoEpsilon = 0.00001

// Plane is one half-space constraint in velocity space; permitted velocities
// lie on the side the normal points to.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

type line struct {
	point     r3.Vec
	direction r3.Vec
}

// Avoider holds one agent's reciprocal velocity obstacle state: its neighbor set
// and last computed velocity. Every neighbor is assumed to take half of the
// responsibility for avoiding a collision.
type Avoider struct {
	ID          string
	Radius      float64
	MaxSpeed    float64
	TimeHorizon float64
	TimeStep    float64

	position    r3.Vec
	velocity    r3.Vec
	preferred   r3.Vec
	newVelocity r3.Vec
	neighbors   []Neighbor
	planes      []Plane
}

func (a *Avoider) ClearNeighbors() {
	a.neighbors = a.neighbors[:0]
}

// InsertNeighbor adds n when it lies within rangeDist of the avoider.
func (a *Avoider) InsertNeighbor(n Neighbor, rangeDist float64) {
	if r3.Norm2(r3.Sub(a.position, n.Position)) > rangeDist*rangeDist {
		return
	}
	a.neighbors = append(a.neighbors, n)
}

func (a *Avoider) NoNeighbors() bool { return len(a.neighbors) == 0 }

func (a *Avoider) Neighbors() []Neighbor {
	return append([]Neighbor(nil), a.neighbors...)
}

func (a *Avoider) UpdateState(position, velocity, preferred r3.Vec) {
	a.position = position
	a.velocity = velocity
	a.preferred = preferred
}

func (a *Avoider) Velocity() r3.Vec { return a.newVelocity }

// Planes returns the constraints built by the last ComputeNewVelocity call.
func (a *Avoider) Planes() []Plane {
	return append([]Plane(nil), a.planes...)
}

// ComputeNewVelocity solves for the velocity closest to the preferred one that
// satisfies every neighbor's half-plane, falling back to the least-violating
// velocity when the constraints are infeasible.
func (a *Avoider) ComputeNewVelocity() r3.Vec {
	a.planes = a.planes[:0]
	invTimeHorizon := 1.0 / a.TimeHorizon

	for _, other := range a.neighbors {
		relativePosition := r3.Sub(other.Position, a.position)
		relativeVelocity := r3.Sub(a.velocity, other.Velocity)
		distSq := r3.Norm2(relativePosition)
		combinedRadius := a.Radius + other.Radius
		combinedRadiusSq := combinedRadius * combinedRadius

		var p Plane
		var u r3.Vec

		if distSq > combinedRadiusSq {
			w := r3.Sub(relativeVelocity, r3.Scale(invTimeHorizon, relativePosition))
			wLengthSq := r3.Norm2(w)
			dotProduct := r3.Dot(w, relativePosition)

			if dotProduct < 0 && dotProduct*dotProduct > combinedRadiusSq*wLengthSq {
				// cut-off sphere
				wLength := math.Sqrt(wLengthSq)
				unitW := a.separation(w, relativePosition, other.ID)
				p.Normal = unitW
				u = r3.Scale(combinedRadius*invTimeHorizon-wLength, unitW)
			} else {
				// cone side
				av := distSq
				bv := r3.Dot(relativePosition, relativeVelocity)
				cv := r3.Norm2(relativeVelocity) -
					r3.Norm2(r3.Cross(relativePosition, relativeVelocity))/(distSq-combinedRadiusSq)
				t := (bv + math.Sqrt(math.Max(0, bv*bv-av*cv))) / av
				ww := r3.Sub(relativeVelocity, r3.Scale(t, relativePosition))
				wLength := r3.Norm(ww)
				unitW := a.separation(ww, relativePosition, other.ID)
				p.Normal = unitW
				u = r3.Scale(combinedRadius*t-wLength, unitW)
			}
		} else {
			// already overlapping: resolve within one time step
			invTimeStep := 1.0 / a.TimeStep
			w := r3.Sub(relativeVelocity, r3.Scale(invTimeStep, relativePosition))
			wLength := r3.Norm(w)
			unitW := a.separation(w, relativePosition, other.ID)
			p.Normal = unitW
			u = r3.Scale(combinedRadius*invTimeStep-wLength, unitW)
		}

		p.Point = r3.Add(a.velocity, r3.Scale(0.5, u))
		a.planes = append(a.planes, p)
	}

	result, fail := linearProgram3(a.planes, a.MaxSpeed, a.preferred, false)
	if fail < len(a.planes) {
		result = linearProgram4(a.planes, fail, a.MaxSpeed, result)
	}
	a.newVelocity = result
	return result
}

// separation returns w normalized. When w vanishes it falls back to the
// direction from the neighbor to the avoider, and for coincident positions to
// the x axis, signed by id order so the pair pushes apart.
func (a *Avoider) separation(w, relativePosition r3.Vec, otherID string) r3.Vec {
	if n := r3.Norm(w); n > rvoEpsilon {
		return r3.Scale(1/n, w)
	}
	if n := r3.Norm(relativePosition); n > rvoEpsilon {
		return r3.Scale(-1/n, relativePosition)
	}
	if a.ID < otherID {
		return r3.Vec{X: -1}
	}
	return r3.Vec{X: 1}
}

// linearProgram1 optimizes along one line constrained by planes[:planeNo].
func linearProgram1(planes []Plane, planeNo int, l line, radius float64, optVelocity r3.Vec, directionOpt bool, result r3.Vec) (r3.Vec, bool) {
	dotProduct := r3.Dot(l.point, l.direction)
	discriminant := dotProduct*dotProduct + radius*radius - r3.Norm2(l.point)
	if discriminant < 0 {
		return result, false
	}
	sqrtDiscriminant := math.Sqrt(discriminant)
	tLeft := -dotProduct - sqrtDiscriminant
	tRight := -dotProduct + sqrtDiscriminant

	for i := 0; i < planeNo; i++ {
		numerator := r3.Dot(r3.Sub(planes[i].Point, l.point), planes[i].Normal)
		denominator := r3.Dot(l.direction, planes[i].Normal)
		if denominator*denominator <= rvoEpsilon {
			if numerator > 0 {
				return result, false
			}
			continue
		}
		t := numerator / denominator
		if denominator >= 0 {
			tLeft = math.Max(tLeft, t)
		} else {
			tRight = math.Min(tRight, t)
		}
		if tLeft > tRight {
			return result, false
		}
	}

	switch {
	case directionOpt:
		if r3.Dot(optVelocity, l.direction) > 0 {
			return r3.Add(l.point, r3.Scale(tRight, l.direction)), true
		}
		return r3.Add(l.point, r3.Scale(tLeft, l.direction)), true
	default:
		t := r3.Dot(l.direction, r3.Sub(optVelocity, l.point))
		if t < tLeft {
			t = tLeft
		} else if t > tRight {
			t = tRight
		}
		return r3.Add(l.point, r3.Scale(t, l.direction)), true
	}
}

// linearProgram2 optimizes on planes[planeNo] constrained by planes[:planeNo].
func linearProgram2(planes []Plane, planeNo int, radius float64, optVelocity r3.Vec, directionOpt bool, result r3.Vec) (r3.Vec, bool) {
	pl := planes[planeNo]
	planeDist := r3.Dot(pl.Point, pl.Normal)
	planeDistSq := planeDist * planeDist
	radiusSq := radius * radius
	if planeDistSq > radiusSq {
		return result, false
	}
	planeRadiusSq := radiusSq - planeDistSq
	planeCenter := r3.Scale(planeDist, pl.Normal)

	if directionOpt {
		planeOptVelocity := r3.Sub(optVelocity, r3.Scale(r3.Dot(optVelocity, pl.Normal), pl.Normal))
		planeOptVelocityLengthSq := r3.Norm2(planeOptVelocity)
		if planeOptVelocityLengthSq <= rvoEpsilon {
			result = planeCenter
		} else {
			result = r3.Add(planeCenter, r3.Scale(math.Sqrt(planeRadiusSq/planeOptVelocityLengthSq), planeOptVelocity))
		}
	} else {
		result = r3.Add(optVelocity, r3.Scale(r3.Dot(r3.Sub(pl.Point, optVelocity), pl.Normal), pl.Normal))
		if r3.Norm2(result) > radiusSq {
			planeResult := r3.Sub(result, planeCenter)
			planeResultLengthSq := r3.Norm2(planeResult)
			result = r3.Add(planeCenter, r3.Scale(math.Sqrt(planeRadiusSq/planeResultLengthSq), planeResult))
		}
	}

	for i := 0; i < planeNo; i++ {
		if r3.Dot(planes[i].Normal, r3.Sub(planes[i].Point, result)) <= 0 {
			continue
		}
		crossProduct := r3.Cross(planes[i].Normal, pl.Normal)
		if r3.Norm2(crossProduct) <= rvoEpsilon {
			// parallel and pointing away: infeasible
			return result, false
		}
		var l line
		l.direction = r3.Unit(crossProduct)
		lineNormal := r3.Cross(l.direction, pl.Normal)
		l.point = r3.Add(pl.Point, r3.Scale(
			r3.Dot(r3.Sub(planes[i].Point, pl.Point), planes[i].Normal)/r3.Dot(lineNormal, planes[i].Normal),
			lineNormal,
		))
		var ok bool
		result, ok = linearProgram1(planes, i, l, radius, optVelocity, directionOpt, result)
		if !ok {
			return result, false
		}
	}
	return result, true
}

// linearProgram3 returns the optimum within the speed sphere and the index of
// the first plane that could not be satisfied (len(planes) on success).
func linearProgram3(planes []Plane, radius float64, optVelocity r3.Vec, directionOpt bool) (r3.Vec, int) {
	var result r3.Vec
	switch {
	case directionOpt:
		result = r3.Scale(radius, optVelocity)
	case r3.Norm2(optVelocity) > radius*radius:
		result = r3.Scale(radius, r3.Unit(optVelocity))
	default:
		result = optVelocity
	}

	for i := range planes {
		if r3.Dot(planes[i].Normal, r3.Sub(planes[i].Point, result)) <= 0 {
			continue
		}
		prev := result
		var ok bool
		result, ok = linearProgram2(planes, i, radius, optVelocity, directionOpt, result)
		if !ok {
			return prev, i
		}
	}
	return result, len(planes)
}

// linearProgram4 minimizes the maximum constraint violation from beginPlane on.
func linearProgram4(planes []Plane, beginPlane int, radius float64, result r3.Vec) r3.Vec {
	distance := 0.0
	for i := beginPlane; i < len(planes); i++ {
		if r3.Dot(planes[i].Normal, r3.Sub(planes[i].Point, result)) <= distance {
			continue
		}
		projPlanes := make([]Plane, 0, i)
		for j := 0; j < i; j++ {
			var p Plane
			crossProduct := r3.Cross(planes[j].Normal, planes[i].Normal)
			if r3.Norm2(crossProduct) <= rvoEpsilon {
				if r3.Dot(planes[i].Normal, planes[j].Normal) > 0 {
					continue
				}
				p.Point = r3.Scale(0.5, r3.Add(planes[i].Point, planes[j].Point))
			} else {
				lineNormal := r3.Cross(crossProduct, planes[i].Normal)
				p.Point = r3.Add(planes[i].Point, r3.Scale(
					r3.Dot(r3.Sub(planes[j].Point, planes[i].Point), planes[j].Normal)/r3.Dot(lineNormal, planes[j].Normal),
					lineNormal,
				))
			}
			p.Normal = r3.Unit(r3.Sub(planes[j].Normal, planes[i].Normal))
			projPlanes = append(projPlanes, p)
		}

		prev := result
		candidate, fail := linearProgram3(projPlanes, radius, planes[i].Normal, true)
		if fail < len(projPlanes) {
			// numerical edge case: keep the previous velocity
			result = prev
		} else {
			result = candidate
		}
		distance = r3.Dot(planes[i].Normal, r3.Sub(planes[i].Point, result))
	}
	return result
}
