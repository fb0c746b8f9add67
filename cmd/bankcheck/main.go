// Package main provides the entry point for the bankcheck invariant suite.
// It loads a run spec, executes the suite against the target, prints the
// report, and exits non-zero when anything failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apitest "github.com/rohan-js/automated-api-testing-framework"
	"github.com/rohan-js/automated-api-testing-framework/report"
)

const (
	exitOK         = 0
	exitFailures   = 1
	exitBadSpec    = 2
	defaultSpecArg = "testspec.yaml"
)

func main() {
	os.Exit(run())
}

func run() int {
	specPath := flag.String("spec", defaultSpecArg, "path to the run spec YAML")
	reportPath := flag.String("report", "", "also write the report to this file")
	noColor := flag.Bool("no-color", false, "disable ANSI color in the report")
	flag.Parse()

	// A bare positional argument also names the spec.
	if flag.NArg() > 0 {
		*specPath = flag.Arg(0)
	}

	spec, err := apitest.LoadTestSpec(*specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bankcheck: %v\n", err)
		if errors.Is(err, apitest.ErrSpecValidation) {
			return exitBadSpec
		}
		return exitFailures
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := report.NewReporter(report.WithColor(!*noColor))
	runner := apitest.NewRunner(spec, apitest.WithRunnerSink(reporter))

	runErr := runner.Run(ctx)

	reporter.Print()
	if *reportPath != "" {
		if err := reporter.Write(*reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "bankcheck: %v\n", err)
			return exitFailures
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "bankcheck: %v\n", runErr)
		return exitFailures
	}
	if reporter.HasFailures() {
		return exitFailures
	}
	return exitOK
}
