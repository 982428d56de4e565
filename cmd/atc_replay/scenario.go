package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/openato/onboard/internal/handlers"
	"github.com/openato/onboard/internal/parser"
)

// Scenario is a recorded sequence of host calls.
type Scenario struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step is one host call. An :ELAPSE: step with Repeat > 1 is sent Repeat
// times, moving the clock and the location forward each time.
type Step struct {
	Command string `json:"cmd"`
	Args    []any  `json:"args"`
	Repeat  int    `json:"repeat"`
}

// Call is a single expanded host call.
type Call struct {
	Command string
	Args    []string
}

// LoadScenario reads a scenario file, "-" meaning stdin.
func LoadScenario(path string) (Scenario, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return Scenario{}, err
		}
		defer f.Close()
		r = f
	}

	var s Scenario
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return s, fmt.Errorf("decoding scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return s, fmt.Errorf("scenario %q has no steps", s.Name)
	}
	return s, nil
}

// Expand turns the steps into the exact calls sent to the host.
func (s Scenario) Expand() ([]Call, error) {
	var calls []Call
	for i, step := range s.Steps {
		args, err := stringArgs(step.Args)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if step.Repeat <= 1 {
			calls = append(calls, Call{Command: step.Command, Args: args})
			continue
		}
		if step.Command != handlers.CmdElapse {
			for range step.Repeat {
				calls = append(calls, Call{Command: step.Command, Args: args})
			}
			continue
		}

		// validates the arguments before they are advanced
		state, err := parser.ParseElapse(args)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		for range step.Repeat {
			next := append([]string(nil), args...)
			next[0] = formatFloat(state.Location)
			next[3] = formatFloat(state.TotalTime)
			calls = append(calls, Call{Command: step.Command, Args: next})

			state.TotalTime += state.ElapsedTime
			state.Location += state.Speed.MetersPerSecond() * state.ElapsedTime
		}
	}
	return calls, nil
}

func stringArgs(in []any) ([]string, error) {
	out := make([]string, len(in))
	for i, v := range in {
		switch v := v.(type) {
		case string:
			out[i] = v
		case float64:
			out[i] = formatFloat(v)
		case bool:
			out[i] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("argument %d has unsupported type %T", i, v)
		}
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
