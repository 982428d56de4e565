// pkg/core/vehicle.go
package core

import "math"

// KmhPerMps converts metres per second to kilometres per hour.
const KmhPerMps = 3.6

// Speed is a signed vehicle speed stored in metres per second.
// Negative values mean the vehicle is moving backwards.
type Speed float64

// KMH builds a Speed from kilometres per hour.
func KMH(v float64) Speed {
	return Speed(v / KmhPerMps)
}

// MPS builds a Speed from metres per second.
func MPS(v float64) Speed {
	return Speed(v)
}

// KilometersPerHour returns the speed in km/h.
func (s Speed) KilometersPerHour() float64 {
	return float64(s) * KmhPerMps
}

// MetersPerSecond returns the speed in m/s.
func (s Speed) MetersPerSecond() float64 {
	return float64(s)
}

// Abs returns the unsigned speed.
func (s Speed) Abs() Speed {
	return Speed(math.Abs(float64(s)))
}

// Handles is the position of the driver's controls.
type Handles struct {
	Reverser   int
	PowerNotch int
	BrakeNotch int
}

// ManualDemand is the signed notch the driver is asking for.
func (h Handles) ManualDemand() Notch {
	return Notch(h.PowerNotch - h.BrakeNotch)
}

// VehicleState is the kinematic snapshot supplied by the host on every tick.
// Location is the track coordinate in metres, increasing in the direction of travel.
// ElapsedTime and TotalTime are simulation seconds.
type VehicleState struct {
	Location    float64
	Speed       Speed
	ElapsedTime float64
	TotalTime   float64
	Handles     Handles
	Preceding   Opt[float64] // distance to the preceding vehicle in metres
}

// VehicleSpecs describes the notch layout of the vehicle.
type VehicleSpecs struct {
	PowerNotches int
	BrakeNotches int
	// B67Notch is the holding brake step used when the vehicle is stopped.
	// Zero means the vehicle has none and full service is used instead.
	B67Notch int
	AtsNotch int
	Cars     int
}

// DefaultVehicleSpecs is a five power / eight brake notch layout.
func DefaultVehicleSpecs() VehicleSpecs {
	return VehicleSpecs{
		PowerNotches: 5,
		BrakeNotches: 8,
		B67Notch:     6,
		AtsNotch:     1,
		Cars:         6,
	}
}

// FullService returns the full service brake demand.
func (s VehicleSpecs) FullService() Notch {
	return Notch(-s.BrakeNotches)
}

// Emergency returns the emergency brake demand, one step beyond full service.
func (s VehicleSpecs) Emergency() Notch {
	return Notch(-s.BrakeNotches - 1)
}

// HoldingBrake returns the brake demand used to hold a stopped vehicle.
func (s VehicleSpecs) HoldingBrake() Notch {
	if s.B67Notch > 0 && s.B67Notch <= s.BrakeNotches {
		return Notch(-s.B67Notch)
	}
	return s.FullService()
}
