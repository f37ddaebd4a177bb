// Package geodesy provides distance and bearing helpers used by the
// route-check engine. The primary distance solver is an iterative
// ellipsoidal method (Vincenty inverse, WGS84); when it fails to
// converge we fall back to paulmach/orb's non-iterative spherical
// solve and log the fallback.
package geodesy

import (
	"log"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/avbind/flightbind/monitoring"
)

// WGS84 ellipsoid parameters.
const (
	semiMajorAxis = 6378137.0         // a, metres
	flattening    = 1 / 298.257223563 // f
	semiMinorAxis = semiMajorAxis * (1 - flattening)
)

// LegLength returns the geodesic distance in metres between two points.
// It tries Vincenty's iterative formula first; on non-convergence it
// logs and falls back to orb/geo's spherical geo.Distance (an
// equirectangular approximation).
func LegLength(aLat, aLon, bLat, bLon float64) float64 {
	d, ok := vincentyDistance(aLat, aLon, bLat, bLon)
	if ok {
		return d
	}
	monitoring.GeodesyFallbacksTotal.WithLabelValues().Inc()
	log.Printf("geodesy: vincenty did not converge for (%.4f,%.4f)->(%.4f,%.4f), falling back to spherical", aLat, aLon, bLat, bLon)
	return geo.Distance(orb.Point{aLon, aLat}, orb.Point{bLon, bLat})
}

// DistanceAndBearings returns (distance metres, initial bearing degrees
// 0-360, final bearing degrees 0-360) from `from` to `to`. Undefined
// (and unchecked here) when from == to; callers must guard.
func DistanceAndBearings(fromLat, fromLon, toLat, toLon float64) (distance, initialBearing, finalBearing float64) {
	distance = LegLength(fromLat, fromLon, toLat, toLon)
	from := orb.Point{fromLon, fromLat}
	to := orb.Point{toLon, toLat}
	initialBearing = normalizeBearing(geo.Bearing(from, to))
	finalBearing = normalizeBearing(geo.Bearing(to, from) + 180)
	return distance, initialBearing, finalBearing
}

// Bearing returns the initial bearing in degrees [0,360) from (fromLat,fromLon)
// to (toLat,toLon).
func Bearing(fromLat, fromLon, toLat, toLon float64) float64 {
	return normalizeBearing(geo.Bearing(orb.Point{fromLon, fromLat}, orb.Point{toLon, toLat}))
}

func normalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	return b
}

// vincentyDistance implements Vincenty's iterative inverse formula on
// the WGS84 ellipsoid. Returns (distance, false) if the series fails to
// converge within the iteration budget (nearly-antipodal points).
func vincentyDistance(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	if lat1 == lat2 && lon1 == lon2 {
		return 0, true
	}
	const iterationLimit = 200
	const convergenceThreshold = 1e-12

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	L := toRadians(lon2 - lon1)

	U1 := math.Atan((1 - flattening) * math.Tan(phi1))
	U2 := math.Atan((1 - flattening) * math.Tan(phi2))
	sinU1, cosU1 := math.Sin(U1), math.Cos(U1)
	sinU2, cosU2 := math.Sin(U2), math.Cos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64

	for i := 0; i < iterationLimit; i++ {
		sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)
		sinSigma = math.Sqrt(
			math.Pow(cosU2*sinLambda, 2) +
				math.Pow(cosU1*sinU2-sinU1*cosU2*cosLambda, 2))
		if sinSigma == 0 {
			return 0, true // coincident points
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			cos2SigmaM = 0 // equatorial line
		}
		C := flattening / 16 * cosSqAlpha * (4 + flattening*(4-3*cosSqAlpha))
		lambdaPrev := lambda
		lambda = L + (1-C)*flattening*sinAlpha*
			(sigma + C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-lambdaPrev) < convergenceThreshold {
			uSq := cosSqAlpha * (semiMajorAxis*semiMajorAxis - semiMinorAxis*semiMinorAxis) / (semiMinorAxis * semiMinorAxis)
			A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
			B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
			deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
				B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
			return semiMinorAxis * A * (sigma - deltaSigma), true
		}
	}
	return 0, false
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
