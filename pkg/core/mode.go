package core

import "fmt"

// Notch is a signed control demand. Negative values are brake steps,
// positive values are power steps and zero is coast.
type Notch int

// Mode is a train operating mode. The order matters: the mode selector
// steps through it with the mode up/down keys.
type Mode int

const (
	ModeOff Mode = iota
	ModeAuto
	ModeCodedManual
	ModeRestrictedReverse
	ModeRestrictedForward
)

// ModeCount is the number of selectable modes.
const ModeCount = 5

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "Off"
	case ModeAuto:
		return "Auto"
	case ModeCodedManual:
		return "CodedManual"
	case ModeRestrictedReverse:
		return "RMReverse"
	case ModeRestrictedForward:
		return "RMForward"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Restricted reports whether m is one of the restricted manual modes.
func (m Mode) Restricted() bool {
	return m == ModeRestrictedReverse || m == ModeRestrictedForward
}

// Reverser is the direction a mode forces onto the vehicle.
func (m Mode) Reverser() int {
	switch m {
	case ModeAuto, ModeCodedManual, ModeRestrictedForward:
		return 1
	case ModeRestrictedReverse:
		return -1
	default:
		return 0
	}
}

// InitMode is how the host asks the plugin to start up.
type InitMode int

// Values follow the host's encoding.
const (
	InitOnService    InitMode = -1
	InitOnEmergency  InitMode = 0
	InitOffEmergency InitMode = 1
)

func (m InitMode) String() string {
	switch m {
	case InitOnService:
		return "OnService"
	case InitOnEmergency:
		return "OnEmergency"
	case InitOffEmergency:
		return "OffEmergency"
	default:
		return fmt.Sprintf("InitMode(%d)", int(m))
	}
}

// StartMode is the operating mode a vehicle comes up in.
func (m InitMode) StartMode() Mode {
	if m == InitOffEmergency {
		return ModeOff
	}
	return ModeCodedManual
}
