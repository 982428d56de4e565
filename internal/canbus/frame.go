// Package canbus puts the controller output on the vehicle bus as a single
// 8-byte command frame.
package canbus

import (
	"math"

	"github.com/openato/onboard/internal/atp"
	"github.com/openato/onboard/internal/train"
	"github.com/openato/onboard/pkg/core"
	"go.einride.tech/can"
)

// DefaultFrameID is used when no frame ID is configured.
const DefaultFrameID uint32 = 0x210

// Command frame layout, little endian bit numbering.
const (
	powerStart    = 0
	brakeStart    = 8
	reverserStart = 16
	modeStart     = 24
	flagsStart    = 32
	speedStart    = 40 // 0.1 km/h
	counterStart  = 56

	flagTripped = flagsStart + 0
	flagDoors   = flagsStart + 1
	flagAuto    = flagsStart + 2
	flagFault   = flagsStart + 3
)

// Command is the decoded content of a command frame.
type Command struct {
	Power    int
	Brake    int
	Reverser int
	Mode     core.Mode
	Tripped  bool
	DoorOpen bool
	Auto     bool
	Fault    bool
	SpeedKmh float64
	Counter  uint8
}

// CommandFromSnapshot picks the frame content out of a tick snapshot.
func CommandFromSnapshot(s train.Snapshot) Command {
	return Command{
		Power:    s.Output.Power,
		Brake:    s.Output.Brake,
		Reverser: s.Output.Reverser,
		Mode:     s.ActualMode,
		Tripped:  s.ATPState == atp.StateTripped,
		DoorOpen: s.Doors != core.DoorsClosed,
		Auto:     s.ActualMode == core.ModeAuto,
		Fault:    s.Faulted,
		SpeedKmh: s.State.Speed.Abs().KilometersPerHour(),
	}
}

// Encode builds the frame. Out of range values saturate.
func Encode(id uint32, c Command) can.Frame {
	var d can.Data
	d.SetUnsignedBitsLittleEndian(powerStart, 8, uint64(saturate(c.Power, 0, math.MaxUint8)))
	d.SetUnsignedBitsLittleEndian(brakeStart, 8, uint64(saturate(c.Brake, 0, math.MaxUint8)))
	d.SetSignedBitsLittleEndian(reverserStart, 8, int64(saturate(c.Reverser, -1, 1)))
	d.SetUnsignedBitsLittleEndian(modeStart, 8, uint64(saturate(int(c.Mode), 0, math.MaxUint8)))
	d.SetBit(flagTripped, c.Tripped)
	d.SetBit(flagDoors, c.DoorOpen)
	d.SetBit(flagAuto, c.Auto)
	d.SetBit(flagFault, c.Fault)
	d.SetUnsignedBitsLittleEndian(speedStart, 16, uint64(saturate(int(math.Round(c.SpeedKmh*10)), 0, math.MaxUint16)))
	d.SetUnsignedBitsLittleEndian(counterStart, 8, uint64(c.Counter))
	return can.Frame{ID: id, Length: 8, Data: d}
}

// Decode is the inverse of Encode.
func Decode(f can.Frame) Command {
	d := f.Data
	return Command{
		Power:    int(d.UnsignedBitsLittleEndian(powerStart, 8)),
		Brake:    int(d.UnsignedBitsLittleEndian(brakeStart, 8)),
		Reverser: int(d.SignedBitsLittleEndian(reverserStart, 8)),
		Mode:     core.Mode(d.UnsignedBitsLittleEndian(modeStart, 8)),
		Tripped:  d.Bit(flagTripped),
		DoorOpen: d.Bit(flagDoors),
		Auto:     d.Bit(flagAuto),
		Fault:    d.Bit(flagFault),
		SpeedKmh: float64(d.UnsignedBitsLittleEndian(speedStart, 16)) / 10,
		Counter:  uint8(d.UnsignedBitsLittleEndian(counterStart, 8)),
	}
}

func saturate(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
