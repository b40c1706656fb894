// Package geometry holds the vector, polynomial and ellipsoid primitives the
// range-Doppler and terrain packages are built on. Positions are Earth
// centred, Earth fixed (ECEF) metres on the WGS-84 ellipsoid.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters.
const (
	SemiMajorAxis = 6378137.0                        // metres
	Flattening    = 1.0 / 298.257223563              // flattening
	SemiMinorAxis = SemiMajorAxis * (1 - Flattening) // metres

	wgs84E2  = Flattening * (2 - Flattening) // first eccentricity squared
	wgs84EP2 = wgs84E2 / (1 - wgs84E2)       // second eccentricity squared
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// LightSpeed is the speed of light in vacuum, m/s.
const LightSpeed = 299792458.0

// GeoToECEF converts geodetic latitude and longitude (degrees) and height
// above the ellipsoid (metres) to an ECEF position.
func GeoToECEF(lat, lon, height float64) r3.Vec {
	latRad := lat * degToRad
	lonRad := lon * degToRad

	sinLat, cosLat := math.Sincos(latRad)
	sinLon, cosLon := math.Sincos(lonRad)

	// Radius of curvature in the prime vertical.
	n := SemiMajorAxis / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return r3.Vec{
		X: (n + height) * cosLat * cosLon,
		Y: (n + height) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + height) * sinLat,
	}
}

// ECEFToGeo converts an ECEF position to geodetic latitude and longitude in
// degrees and height in metres, iterating Bowring's formula.
func ECEFToGeo(p r3.Vec) (lat, lon, height float64) {
	lon = math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	// Parametric latitude seed.
	beta := math.Atan2(p.Z*SemiMajorAxis, rho*SemiMinorAxis)
	latRad := 0.0
	for i := 0; i < 5; i++ {
		sinB, cosB := math.Sincos(beta)
		latRad = math.Atan2(
			p.Z+wgs84EP2*SemiMinorAxis*sinB*sinB*sinB,
			rho-wgs84E2*SemiMajorAxis*cosB*cosB*cosB,
		)
		beta = math.Atan((1 - Flattening) * math.Tan(latRad))
	}

	sinLat, cosLat := math.Sincos(latRad)
	n := SemiMajorAxis / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		height = rho/cosLat - n
	} else {
		height = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}
	return latRad * radToDeg, lon * radToDeg, height
}

// Distance returns |a - b|.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// TriangleArea returns the area of the triangle abc by Heron's formula.
// Rounding on degenerate triangles can drive the product negative; the
// result is clamped at zero.
func TriangleArea(a, b, c r3.Vec) float64 {
	ab := Distance(a, b)
	bc := Distance(b, c)
	ca := Distance(c, a)
	s := 0.5 * (ab + bc + ca)
	prod := s * (s - ab) * (s - bc) * (s - ca)
	if prod <= 0 {
		return 0
	}
	return math.Sqrt(prod)
}

// ElevationAngle returns the angle in degrees, seen from the sensor, between
// the nadir direction and the earth point. It is the law of cosines on the
// triangle (Earth centre, sensor, earth point); angles grow with distance
// from the nadir line.
func ElevationAngle(slantRange float64, earthPoint, sensorPos r3.Vec) float64 {
	h2 := r3.Norm2(sensorPos)
	r2 := r3.Norm2(earthPoint)
	c := (slantRange*slantRange + h2 - r2) / (2 * slantRange * math.Sqrt(h2))
	// acos is undefined outside [-1, 1]; rounding can nudge c past it.
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * radToDeg
}

// IncidenceAngle returns the angle in degrees between the ellipsoid normal
// at earthPoint and the direction to the sensor.
func IncidenceAngle(earthPoint, sensorPos r3.Vec) float64 {
	lat, lon, _ := ECEFToGeo(earthPoint)
	sinLat, cosLat := math.Sincos(lat * degToRad)
	sinLon, cosLon := math.Sincos(lon * degToRad)
	n := r3.Vec{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
	c := r3.Dot(n, r3.Unit(r3.Sub(sensorPos, earthPoint)))
	return math.Acos(math.Max(-1, math.Min(1, c))) * radToDeg
}

// PolyVal evaluates c[0] + c[1]x + c[2]x² + ... by Horner's rule.
func PolyVal(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}

// InterpolateLinear returns the value at x on the line through (x0, y0) and
// (x1, y1). When x0 == x1 it returns y0.
func InterpolateLinear(x0, y0, x1, y1, x float64) float64 {
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
