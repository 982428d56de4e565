// Package hostapi is the text protocol between the simulator host and the
// plugin. Calls come in as a command plus string arguments and leave as a
// JSON array: ["ok", <result>], ["ok"] or ["error", "<message>"].
package hostapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openato/onboard/internal/dispatcher"
)

// ErrNoHandler is reported for commands nobody registered.
var ErrNoHandler = errors.New("no handler registered")

// TimestampCommand is answered by the host API itself.
const TimestampCommand = ":TIMESTAMP:"

// Dispatcher is the part of *dispatcher.Dispatcher the host API needs.
type Dispatcher interface {
	HasHandler(command string) bool
	Dispatch(r dispatcher.Request) (any, error)
}

// Host answers calls from the simulator.
type Host struct {
	d   Dispatcher
	now func() time.Time
}

// New returns a Host routing to d.
func New(d Dispatcher) *Host {
	return &Host{d: d, now: time.Now}
}

// Call handles the single string form "COMMAND|arg|arg".
func (h *Host) Call(input string) string {
	command, rest, hasArgs := strings.Cut(input, "|")
	var args []string
	if hasArgs {
		args = strings.Split(rest, "|")
	}
	return h.CallArgs(command, args)
}

// CallArgs handles a command with its arguments already split.
func (h *Host) CallArgs(command string, args []string) string {
	if command == TimestampCommand {
		return FormatResponse(strconv.FormatInt(h.now().UTC().UnixNano(), 10), nil)
	}
	if h.d == nil || !h.d.HasHandler(command) {
		return FormatResponse(nil, fmt.Errorf("%w: %s", ErrNoHandler, command))
	}

	result, err := h.d.Dispatch(dispatcher.Request{
		Command:  command,
		Args:     args,
		Received: h.now(),
	})
	return FormatResponse(result, err)
}

// FormatResponse renders a handler result for the host.
func FormatResponse(result any, err error) string {
	if err != nil {
		return `["error", ` + quote(err.Error()) + `]`
	}
	if result == nil {
		return `["ok"]`
	}
	b, mErr := json.Marshal(result)
	if mErr != nil {
		return `["error", ` + quote(fmt.Sprintf("encoding result: %v", mErr)) + `]`
	}
	return `["ok", ` + string(b) + `]`
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
