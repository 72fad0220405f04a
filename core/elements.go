package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// WGS72 constants, matching the gravity model used for SGP4 propagation.
const (
	earthRadiusWGS72Km = 6378.135
	muWGS72            = 398600.8 // km^3/s^2
)

var errInvalidTLE = errors.New("invalid two-line element set")

// AltitudesFromTLE propagates a two-line element set to epoch with SGP4 and
// returns the apoapsis and periapsis altitudes, in kilometres, of the
// osculating orbit at that instant.
func AltitudesFromTLE(line1, line2 string, epoch time.Time) (apoKm, periKm float64, err error) {
	if err := checkTLE(line1, line2); err != nil {
		return 0, 0, err
	}

	pos, vel, err := propagate(line1, line2, epoch.UTC())
	if err != nil {
		return 0, 0, err
	}

	r := pos.Norm()
	v := vel.Norm()
	if r == 0 || math.IsNaN(r) || math.IsNaN(v) {
		return 0, 0, fmt.Errorf("%w: propagation produced no state", errInvalidTLE)
	}

	// vis-viva for the semi-major axis, angular momentum for eccentricity
	a := 1 / (2/r - v*v/muWGS72)
	if a <= 0 || math.IsInf(a, 0) {
		return 0, 0, fmt.Errorf("%w: orbit is not bound (a=%.3f km)", errInvalidTLE, a)
	}
	h := pos.Cross(vel).Norm()
	e := math.Sqrt(math.Max(0, 1-h*h/(muWGS72*a)))

	return a*(1+e) - earthRadiusWGS72Km, a*(1-e) - earthRadiusWGS72Km, nil
}

func propagate(line1, line2 string, t time.Time) (pos, vel Vec3, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sgp4: %v", errInvalidTLE, r)
		}
	}()

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	p, v := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
	return Vec3{X: p.X, Y: p.Y, Z: p.Z}, Vec3{X: v.X, Y: v.Y, Z: v.Z}, nil
}

// checkTLE rejects element sets whose fixed columns would not parse. The
// propagator exits the process on a parse error instead of reporting it,
// so every column it reads is checked here first.
func checkTLE(line1, line2 string) error {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < 69 || len(line2) < 69 {
		return fmt.Errorf("%w: lines must be 69 columns", errInvalidTLE)
	}
	if line1[0] != '1' || line2[0] != '2' {
		return fmt.Errorf("%w: bad line numbers", errInvalidTLE)
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("%w: catalog numbers differ between lines", errInvalidTLE)
	}
	ints := []string{
		strings.TrimSpace(line1[2:7]), // catalog number
		line1[18:20],                  // epoch year
	}
	for _, c := range ints {
		if _, err := strconv.ParseInt(c, 10, 0); err != nil {
			return fmt.Errorf("%w: column %q", errInvalidTLE, c)
		}
	}
	// Rebuilt exactly as the propagator rebuilds them before parsing.
	floats := []string{
		line1[20:32], // epoch day
		strings.Replace(line1[33:43], " ", "", 2),                                   // first derivative of mean motion
		strings.Replace(line1[44:45]+"."+line1[45:50]+"e"+line1[50:52], " ", "", 2), // second derivative, implied exponent
		strings.Replace(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "", 2), // B*, implied exponent
		strings.Replace(line2[8:16], " ", "", 2),                                    // inclination
		strings.Replace(line2[17:25], " ", "", 2),                                   // right ascension of the ascending node
		"." + line2[26:33],                        // eccentricity, implied decimal point
		strings.Replace(line2[34:42], " ", "", 2), // argument of perigee
		strings.Replace(line2[43:51], " ", "", 2), // mean anomaly
		strings.Replace(line2[52:63], " ", "", 2), // mean motion
	}
	for _, c := range floats {
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return fmt.Errorf("%w: column %q", errInvalidTLE, c)
		}
	}
	return nil
}
