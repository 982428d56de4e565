// Package kinematics holds the constant-deceleration braking curves used by the
// protection supervisor and the automatic operation controller.
//
// Rates are signed accelerations in m/s² (negative when braking), distances are
// metres and speeds passed across the package boundary are noted per function.
package kinematics

import (
	"math"

	"github.com/openato/onboard/pkg/core"
)

// SpeedToStop returns the highest speed in km/h from which the vehicle can slow
// to arrivalKmh within distance metres at the given rate.
// A negative radicand, such as a distance already behind the vehicle, yields 0.
func SpeedToStop(rate, distance, arrivalKmh float64) float64 {
	arrival := arrivalKmh / core.KmhPerMps
	v := math.Sqrt(2*(-rate)*distance + arrival*arrival)
	if math.IsNaN(v) {
		return 0
	}
	return v * core.KmhPerMps
}

// DistanceToStop returns the distance in metres needed to stop from speed (m/s)
// at the given rate. A zero rate never stops and reports 0.
func DistanceToStop(rate, speed float64) float64 {
	if rate == 0 {
		return 0
	}
	return -(speed * speed) / (2 * rate)
}

// DecelerationDistance returns the distance in metres needed to go from v0 to v1
// (both m/s) at rate. ok is false when rate does not decelerate.
func DecelerationDistance(v0, rate, v1 float64) (float64, bool) {
	if rate >= 0 {
		return 0, false
	}
	return (v1*v1 - v0*v0) / (2 * rate), true
}
