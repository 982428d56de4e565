// Package parser turns the string arguments of host commands into typed values.
// It has no state and no dependencies beyond the core types.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openato/onboard/pkg/core"
)

// ErrArgCount is returned when a command has the wrong number of arguments.
var ErrArgCount = errors.New("wrong number of arguments")

// clean strips the one pair of quotes the host puts around every argument
// and unescapes doubled quotes inside it.
func clean(args []string) []string {
	out := make([]string, len(args))
	for i, v := range args {
		v = strings.TrimSpace(v)
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		out[i] = strings.ReplaceAll(v, `""`, `"`)
	}
	return out
}

func expectArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("%w: want %d, got %d", ErrArgCount, lo, len(args))
		}
		return fmt.Errorf("%w: want %d to %d, got %d", ErrArgCount, lo, hi, len(args))
	}
	return nil
}

// parseIntFromFloat parses a string that may be an integer ("32") or float ("32.00").
// Hosts without an integer type send every number as a float.
func parseIntFromFloat(s string) (int, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a whole number", s)
	}
	return int(f), nil
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("error converting %s to float: %w", name, err)
	}
	return v, nil
}

func parseInt(name, s string) (int, error) {
	v, err := parseIntFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("error converting %s to int: %w", name, err)
	}
	return v, nil
}

// ParseSpecs parses power, brake, b67, ats and cars.
func ParseSpecs(args []string) (core.VehicleSpecs, error) {
	var specs core.VehicleSpecs
	if err := expectArgs(args, 5, 5); err != nil {
		return specs, err
	}
	args = clean(args)

	fields := []struct {
		name string
		dst  *int
	}{
		{"power notches", &specs.PowerNotches},
		{"brake notches", &specs.BrakeNotches},
		{"b67 notch", &specs.B67Notch},
		{"ats notch", &specs.AtsNotch},
		{"cars", &specs.Cars},
	}
	for i, f := range fields {
		v, err := parseInt(f.name, args[i])
		if err != nil {
			return specs, err
		}
		if v < 0 {
			return specs, fmt.Errorf("%s must not be negative: %d", f.name, v)
		}
		*f.dst = v
	}
	if specs.BrakeNotches == 0 {
		return specs, errors.New("vehicle needs at least one brake notch")
	}
	return specs, nil
}

// ParseInitMode parses -1 (on service), 0 (on emergency) or 1 (off emergency).
func ParseInitMode(args []string) (core.InitMode, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return 0, err
	}
	v, err := parseInt("init mode", clean(args)[0])
	if err != nil {
		return 0, err
	}
	switch mode := core.InitMode(v); mode {
	case core.InitOnService, core.InitOnEmergency, core.InitOffEmergency:
		return mode, nil
	default:
		return 0, fmt.Errorf("unknown init mode %d", v)
	}
}

// ParseElapse parses the per-tick vehicle state: location, speed in km/h,
// elapsed and total seconds, reverser, power and brake notch, and
// optionally the distance to the preceding vehicle.
func ParseElapse(args []string) (core.VehicleState, error) {
	var state core.VehicleState
	if err := expectArgs(args, 7, 8); err != nil {
		return state, err
	}
	args = clean(args)

	var err error
	if state.Location, err = parseFloat("location", args[0]); err != nil {
		return state, err
	}
	speed, err := parseFloat("speed", args[1])
	if err != nil {
		return state, err
	}
	state.Speed = core.KMH(speed)
	if state.ElapsedTime, err = parseFloat("elapsed time", args[2]); err != nil {
		return state, err
	}
	if state.TotalTime, err = parseFloat("total time", args[3]); err != nil {
		return state, err
	}
	if state.Handles.Reverser, err = parseInt("reverser", args[4]); err != nil {
		return state, err
	}
	if state.Handles.PowerNotch, err = parseInt("power notch", args[5]); err != nil {
		return state, err
	}
	if state.Handles.BrakeNotch, err = parseInt("brake notch", args[6]); err != nil {
		return state, err
	}

	if len(args) == 8 && args[7] != "" {
		preceding, err := parseFloat("preceding distance", args[7])
		if err != nil {
			return state, err
		}
		state.Preceding = core.Some(preceding)
	}
	return state, nil
}

// ParseKey parses a virtual key index.
func ParseKey(args []string) (core.VirtualKey, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return 0, err
	}
	v, err := parseInt("key", clean(args)[0])
	if err != nil {
		return 0, err
	}
	if v < int(core.KeyS) || v > int(core.KeyL) {
		return 0, fmt.Errorf("unknown key %d", v)
	}
	return core.VirtualKey(v), nil
}

// ParseDoor parses the old and new door state.
func ParseDoor(args []string) (oldState, newState core.DoorState, err error) {
	if err = expectArgs(args, 2, 2); err != nil {
		return
	}
	args = clean(args)

	states := make([]core.DoorState, 2)
	for i, name := range []string{"old door state", "new door state"} {
		v, err := parseInt(name, args[i])
		if err != nil {
			return 0, 0, err
		}
		if v < int(core.DoorsClosed) || v > int(core.DoorsBoth) {
			return 0, 0, fmt.Errorf("%s out of range: %d", name, v)
		}
		states[i] = core.DoorState(v)
	}
	return states[0], states[1], nil
}

// ParseBeacon parses type, signal, distance and the optional payload.
func ParseBeacon(args []string) (core.Beacon, error) {
	var b core.Beacon
	if err := expectArgs(args, 4, 4); err != nil {
		return b, err
	}
	args = clean(args)

	var err error
	if b.Type, err = parseInt("beacon type", args[0]); err != nil {
		return b, err
	}
	if b.Signal, err = parseInt("beacon signal", args[1]); err != nil {
		return b, err
	}
	if b.Distance, err = parseFloat("beacon distance", args[2]); err != nil {
		return b, err
	}
	if b.Payload, err = parseInt("beacon payload", args[3]); err != nil {
		return b, err
	}
	return b, nil
}

// ParseSignals parses one signal section per argument, current section first.
// Each argument is "aspect" or "aspect,distance".
func ParseSignals(args []string) ([]core.SignalData, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: want at least 1, got 0", ErrArgCount)
	}
	args = clean(args)

	signals := make([]core.SignalData, 0, len(args))
	for i, arg := range args {
		aspectStr, distanceStr, hasDistance := strings.Cut(arg, ",")
		aspect, err := parseInt(fmt.Sprintf("aspect %d", i), strings.TrimSpace(aspectStr))
		if err != nil {
			return nil, err
		}
		sig := core.SignalData{Aspect: aspect}
		if hasDistance {
			if sig.Distance, err = parseFloat(fmt.Sprintf("distance %d", i), strings.TrimSpace(distanceStr)); err != nil {
				return nil, err
			}
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// ParseNotch parses a single handle position.
func ParseNotch(args []string) (int, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return 0, err
	}
	return parseInt("notch", clean(args)[0])
}
