// Package geometry maps points between the orbital plane and the
// observation frame.
//
// The orbital plane is the x-y plane of the orbit frame with the periapsis
// direction along x when the argument of periapsis is zero. The observation
// frame has X and Y spanning the plane of the sky and Z along the line of sight.
// The mapping is the usual 3-1-3 Euler sequence
//
//	P_obs = Rz(Ω) · Rx(i) · Rz(ω) · P_orb
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisZ = r3.Vec{Z: 1}
)

// Angles are the three orientation angles of an orbit, in radians.
type Angles struct {
	Node        float64 // longitude of the ascending node Ω
	Inclination float64 // i
	Periapsis   float64 // argument of periapsis ω
}

// forward returns the rotation from the orbit frame to the observation frame.
func (a Angles) forward() [3]r3.Rotation {
	return [3]r3.Rotation{
		r3.NewRotation(a.Periapsis, axisZ),
		r3.NewRotation(a.Inclination, axisX),
		r3.NewRotation(a.Node, axisZ),
	}
}

// inverse returns the rotations undoing forward, in application order.
func (a Angles) inverse() [3]r3.Rotation {
	return [3]r3.Rotation{
		r3.NewRotation(-a.Node, axisZ),
		r3.NewRotation(-a.Inclination, axisX),
		r3.NewRotation(-a.Periapsis, axisZ),
	}
}

// ToObservation rotates the orbital-plane point with polar coordinates
// (r, phi) into the observation frame.
func ToObservation(a Angles, r, phi float64) r3.Vec {
	p := r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi)}
	for _, rot := range a.forward() {
		p = rot.Rotate(p)
	}
	return p
}

// ToOrbital undoes ToObservation and returns the polar coordinates of v in
// the orbital plane. Any out-of-plane component of v is discarded; phi lies
// in (-π, π].
func ToOrbital(a Angles, v r3.Vec) (r, phi float64) {
	p := v
	for _, rot := range a.inverse() {
		p = rot.Rotate(p)
	}
	return math.Hypot(p.X, p.Y), math.Atan2(p.Y, p.X)
}

// SkyTransform is the precomputed linear map from in-plane Cartesian
// coordinates to sky-plane (X, Y). Fits evaluate it thousands of times per
// solve, so the rotation is folded into four coefficients once per parameter
// vector. These are the classical Thiele–Innes constants for unit semi-major axis.
type SkyTransform struct {
	A, B, F, G float64
}

// NewSkyTransform folds the orientation angles into a SkyTransform.
func NewSkyTransform(a Angles) SkyTransform {
	ex := ToObservation(a, 1, 0)
	ey := ToObservation(a, 1, math.Pi/2)
	return SkyTransform{A: ex.X, B: ey.X, F: ex.Y, G: ey.Y}
}

// Apply maps the in-plane polar point (r, phi) to sky-plane (X, Y).
func (s SkyTransform) Apply(r, phi float64) (x, y float64) {
	cx, cy := r*math.Cos(phi), r*math.Sin(phi)
	return s.A*cx + s.B*cy, s.F*cx + s.G*cy
}

// WrapAngle maps a to (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
