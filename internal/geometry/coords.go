package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfiguration reports malformed geometry: empty arrays, non-finite
// coordinates, zero wave vectors or invalid scan grids.
var ErrConfiguration = errors.New("configuration error")

// SphericalToCartesian converts (radius, inclination, azimuth) to (x, y, z).
// Inclination is measured from +z, azimuth from +x towards +y.
func SphericalToCartesian(r, inclination, azimuth float64) (x, y, z float64) {
	sinInc, cosInc := math.Sincos(inclination)
	sinAz, cosAz := math.Sincos(azimuth)
	return r * sinInc * cosAz, r * sinInc * sinAz, r * cosInc
}

// CartesianToSpherical converts (x, y, z) to (radius, inclination, azimuth).
// Azimuth is in (-pi, pi] and inclination in [0, pi]. The origin has no
// direction and is rejected.
func CartesianToSpherical(x, y, z float64) (r, inclination, azimuth float64, err error) {
	r = math.Sqrt(x*x + y*y + z*z)
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, 0, 0, fmt.Errorf("%w: spherical form undefined for (%g, %g, %g)", ErrConfiguration, x, y, z)
	}
	cosInc := z / r
	if cosInc > 1 {
		cosInc = 1
	} else if cosInc < -1 {
		cosInc = -1
	}
	return r, math.Acos(cosInc), math.Atan2(y, x), nil
}

func finite3(v [3]float64) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
