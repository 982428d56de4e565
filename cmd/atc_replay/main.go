// Command atc_replay feeds a JSON scenario of host calls through the same
// command set the simulator uses and prints every response.
//
//	atc_replay [--config dir] [--check] [--quiet] scenario.json
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openato/onboard/internal/plugin"
	"github.com/spf13/pflag"
)

var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("atc_replay", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.StringP("config", "c", ".", "directory holding atc_plugin.cfg.json")
	check := fs.Bool("check", false, "replay twice and fail when the responses differ")
	quiet := fs.BoolP("quiet", "q", false, "print only the summary")
	verbose := fs.BoolP("verbose", "v", false, "show plugin logs on stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: atc_replay [flags] scenario.json")
		fs.PrintDefaults()
		return 2
	}

	scenario, err := LoadScenario(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	calls, err := scenario.Expand()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logOut := io.Discard
	if *verbose {
		logOut = stderr
	}

	responses, err := replay(*configDir, logOut, calls)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	failed := 0
	for i, c := range calls {
		if strings.HasPrefix(responses[i], `["error"`) {
			failed++
		}
		if !*quiet {
			fmt.Fprintf(stdout, "%s %s -> %s\n", c.Command, strings.Join(c.Args, "|"), responses[i])
		}
	}
	fmt.Fprintf(stdout, "%s: %d calls, %d errors\n", scenarioName(scenario), len(calls), failed)

	if *check {
		again, err := replay(*configDir, logOut, calls)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		for i := range responses {
			if responses[i] != again[i] {
				fmt.Fprintf(stdout, "replay diverged at call %d (%s): %s != %s\n", i, calls[i].Command, responses[i], again[i])
				return 3
			}
		}
		fmt.Fprintln(stdout, "replay is deterministic")
	}
	return 0
}

// replay runs the calls against a freshly built plugin.
func replay(configDir string, logOut io.Writer, calls []Call) ([]string, error) {
	p, err := plugin.New(context.Background(), plugin.Options{
		ConfigDir: configDir,
		Name:      "atc_replay",
		Version:   CurrentVersion,
		BuildDate: BuildDate,
		Console:   logOut,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]string, len(calls))
	for i, c := range calls {
		responses[i] = p.Host.CallArgs(c.Command, c.Args)
	}
	return responses, p.Close()
}

func scenarioName(s Scenario) string {
	if s.Name == "" {
		return "scenario"
	}
	return s.Name
}
