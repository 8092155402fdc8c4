// Package ephem answers the two astronomy questions the actor has:
// how high is the sun over Mauna Kea, and what hour angle corresponds
// to a given right ascension right now.
package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// Subaru telescope site. Longitude is positive west, per the Meeus
// convention used throughout the ephemeris routines.
const (
	subaruLatDeg     = 19.8256
	subaruLonWestDeg = 155.4761
)

// The sun counts as down once its altitude drops below -2 degrees.
// Exposures during nautical or astronomical twilight are fine for SuNSS.
const sunDownAltDeg = -2.0

var (
	siteLat = unit.AngleFromDeg(subaruLatDeg)
	siteLon = unit.AngleFromDeg(subaruLonWestDeg)
)

// SunAltitude computes the apparent altitude of the sun at Subaru.
// This is a full ephemeris evaluation and can take a few milliseconds;
// callers should not invoke it more than once per status update.
func SunAltitude(t time.Time) unit.Angle {
	jd := julian.TimeToJD(t.UTC())
	ra, dec := solar.ApparentEquatorial(jd)
	st := sidereal.Apparent(jd)
	_, alt := coord.EqToHz(ra, dec, siteLat, siteLon, st)
	return alt
}

// SunIsDown reports whether the sun is far enough below the horizon to
// permit exposures.
func SunIsDown(t time.Time) bool {
	return SunAltitude(t).Deg() < sunDownAltDeg
}

// RAToHA converts a right ascension in degrees to the hour angle, in
// degrees reduced to [0,360), at Subaru at time t. The stage controller
// takes the hour angle together with the unix time it was computed for.
func RAToHA(raDeg float64, t time.Time) (haDeg float64, unix int64) {
	jd := julian.TimeToJD(t.UTC())
	lst := sidereal.Apparent(jd).Rad() - siteLon.Rad()
	haDeg = wrap360(lst*180/math.Pi - raDeg)
	return haDeg, t.Unix()
}

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
