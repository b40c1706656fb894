// Package orbit turns a short list of orbit state vectors into continuous
// sensor position, velocity and acceleration functions of time.
//
// Each run of adjacent vectors (a window) gets its own least-squares
// polynomial per Cartesian component. All windows are fitted when the model is
// built, so a Model is immutable and safe for concurrent use.
package orbit

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
)

// DefaultDegree is the polynomial degree used when none is configured.
const DefaultDegree = 3

// Degree bounds accepted by NewModel.
const (
	MinDegree = 1
	MaxDegree = 5
)

// minWindow is the smallest number of vectors fitted together.
const minWindow = 4

var (
	// ErrTooFewVectors is returned when fewer than degree+1 distinct
	// state vectors are supplied.
	ErrTooFewVectors = errors.New("orbit: too few state vectors")
	// ErrInvalidDegree is returned for a degree outside [MinDegree, MaxDegree].
	ErrInvalidDegree = errors.New("orbit: invalid polynomial degree")
)

// StateVector is one orbit sample in ECEF metres and metres per second.
type StateVector struct {
	Time     time.Time
	Position r3.Vec
	Velocity r3.Vec
}

// window holds the fit for vectors [start, start+size).
type window struct {
	center float64
	pos    [3][]float64
	vel    [3][]float64
	acc    [3][]float64
}

// Model is a fitted orbit. Times are float64 seconds since Epoch.
type Model struct {
	epoch   time.Time
	times   []float64
	degree  int
	size    int
	windows []window
}

// NewModel fits a Model of the given degree to vectors. Vectors must be in
// time order; any vector not strictly later than its predecessor is dropped.
func NewModel(vectors []StateVector, degree int) (*Model, error) {
	if degree < MinDegree || degree > MaxDegree {
		return nil, fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidDegree, degree, MinDegree, MaxDegree)
	}

	vs := removeRedundant(vectors)
	if len(vs) < degree+1 {
		return nil, fmt.Errorf("%w: have %d, need %d for degree %d", ErrTooFewVectors, len(vs), degree+1, degree)
	}

	m := &Model{
		epoch:  vs[0].Time,
		times:  make([]float64, len(vs)),
		degree: degree,
		size:   max(minWindow, degree+1),
	}
	m.size = min(m.size, len(vs))
	for i, v := range vs {
		m.times[i] = v.Time.Sub(m.epoch).Seconds()
	}

	m.windows = make([]window, len(vs)-m.size+1)
	for start := range m.windows {
		w, err := fitWindow(m.times[start:start+m.size], vs[start:start+m.size], degree)
		if err != nil {
			return nil, fmt.Errorf("fit window at vector %d: %w", start, err)
		}
		m.windows[start] = w
	}
	return m, nil
}

func removeRedundant(vectors []StateVector) []StateVector {
	out := make([]StateVector, 0, len(vectors))
	for i, v := range vectors {
		if i > 0 && !v.Time.After(out[len(out)-1].Time) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// fitWindow solves the Vandermonde least-squares system for each position
// and velocity component, with time centred on the window mean.
func fitWindow(times []float64, vs []StateVector, degree int) (window, error) {
	n := len(times)
	center := 0.0
	for _, t := range times {
		center += t
	}
	center /= float64(n)

	a := mat.NewDense(n, degree+1, nil)
	for i, t := range times {
		p := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, p)
			p *= t - center
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	w := window{center: center}
	solve := func(component func(StateVector) float64) ([]float64, error) {
		b := mat.NewVecDense(n, nil)
		for i, v := range vs {
			b.SetVec(i, component(v))
		}
		var x mat.VecDense
		if err := qr.SolveVecTo(&x, false, b); err != nil {
			return nil, err
		}
		return mat.Col(nil, 0, &x), nil
	}

	components := [3]struct{ pos, vel func(StateVector) float64 }{
		{func(v StateVector) float64 { return v.Position.X }, func(v StateVector) float64 { return v.Velocity.X }},
		{func(v StateVector) float64 { return v.Position.Y }, func(v StateVector) float64 { return v.Velocity.Y }},
		{func(v StateVector) float64 { return v.Position.Z }, func(v StateVector) float64 { return v.Velocity.Z }},
	}
	for k, c := range components {
		var err error
		if w.pos[k], err = solve(c.pos); err != nil {
			return window{}, err
		}
		if w.vel[k], err = solve(c.vel); err != nil {
			return window{}, err
		}
		w.acc[k] = derivative(w.vel[k])
	}
	return w, nil
}

// derivative returns the coefficients of dc/dx.
func derivative(c []float64) []float64 {
	if len(c) < 2 {
		return []float64{0}
	}
	d := make([]float64, len(c)-1)
	for i := 1; i < len(c); i++ {
		d[i-1] = float64(i) * c[i]
	}
	return d
}

// windowFor picks the window for t. With t_i <= t < t_i+1 the window starts
// so that t falls in its middle interval, clamped at either end.
func (m *Model) windowFor(t float64) *window {
	i := sort.Search(len(m.times), func(k int) bool { return m.times[k] > t }) - 1
	start := i - (m.size/2 - 1)
	start = max(0, min(start, len(m.windows)-1))
	return &m.windows[start]
}

func evalVec(c [3][]float64, x float64) r3.Vec {
	return r3.Vec{
		X: geometry.PolyVal(c[0], x),
		Y: geometry.PolyVal(c[1], x),
		Z: geometry.PolyVal(c[2], x),
	}
}

// Position returns the sensor position at t.
func (m *Model) Position(t float64) r3.Vec {
	w := m.windowFor(t)
	return evalVec(w.pos, t-w.center)
}

// PositionVelocity returns the sensor position and velocity at t.
func (m *Model) PositionVelocity(t float64) (pos, vel r3.Vec) {
	w := m.windowFor(t)
	x := t - w.center
	return evalVec(w.pos, x), evalVec(w.vel, x)
}

// State returns position, velocity and acceleration at t.
func (m *Model) State(t float64) (pos, vel, acc r3.Vec) {
	w := m.windowFor(t)
	x := t - w.center
	return evalVec(w.pos, x), evalVec(w.vel, x), evalVec(w.acc, x)
}

// Epoch is the time of the first state vector; model time zero.
func (m *Model) Epoch() time.Time { return m.epoch }

// Seconds converts an absolute time to model time.
func (m *Model) Seconds(t time.Time) float64 { return t.Sub(m.epoch).Seconds() }

// Time converts model time back to an absolute time.
func (m *Model) Time(s float64) time.Time {
	return m.epoch.Add(time.Duration(s * float64(time.Second)))
}

// Domain returns the first and last state vector times.
func (m *Model) Domain() (first, last float64) {
	return m.times[0], m.times[len(m.times)-1]
}

// Covers reports whether [first-margin, last+margin] lies inside the domain.
func (m *Model) Covers(first, last, margin float64) bool {
	lo, hi := m.Domain()
	return first-margin >= lo && last+margin <= hi
}

// Degree returns the fitted polynomial degree.
func (m *Model) Degree() int { return m.degree }

// Len returns the number of distinct state vectors in the model.
func (m *Model) Len() int { return len(m.times) }
