package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const defaultDemoDuration = 30 * time.Second

var errUsage = errors.New("usage: ellipsegrip [demo [seconds]]")

// options is the parsed command line.
type options struct {
	// Demo runs a fixed amount of simulation time as fast as possible and
	// exits; otherwise ticks run in real time until stdin closes.
	Demo     bool
	Duration time.Duration
}

func parseArgs(args []string) (options, error) {
	if len(args) == 0 {
		return options{}, nil
	}

	switch strings.ToLower(args[0]) {
	case "demo":
	case "help", "-h", "--help":
		return options{}, errUsage
	default:
		return options{}, fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	opts := options{Demo: true, Duration: defaultDemoDuration}
	switch len(args) {
	case 1:
	case 2:
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil || secs <= 0 {
			return options{}, fmt.Errorf("invalid demo duration %q: %w", args[1], errUsage)
		}
		opts.Duration = time.Duration(secs * float64(time.Second))
	default:
		return options{}, errUsage
	}
	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, errUsage.Error())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without arguments the simulation runs in real time and reads")
	fmt.Fprintln(w, "EllipseGrip_* console commands from stdin. Type help for a list.")
}
