package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"nilan/compiler"
	"nilan/vm"
)

// Exit codes per spec.md §6.
const (
	exitSuccess    = subcommands.ExitStatus(0)
	exitCompileErr = subcommands.ExitStatus(1)
	exitRuntimeErr = subcommands.ExitStatus(2)
	exitUsageErr   = subcommands.ExitStatus(84)
)

type runCmd struct {
	debug bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a Nilan source file" }
func (*runCmd) Usage() string {
	return "run <file>: compile and execute a Nilan source file.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.debug, "debug", false, "log chunk disassembly and dispatch trace")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "💥 no source file provided")
		return exitUsageErr
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return exitUsageErr
	}

	if c.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	machine := vm.New()
	machine.Debug(c.debug)

	if runErr := machine.Interpret(string(source)); runErr != nil {
		return reportError(runErr)
	}
	return exitSuccess
}

// reportError writes runErr to stderr in the format spec.md §7 mandates
// and returns the matching exit code: compile errors print one line
// per diagnostic (multierror unwraps to *compiler.CompileError values),
// runtime errors print their single formatted message.
func reportError(err error) subcommands.ExitStatus {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return exitCompileErr
	}

	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		fmt.Fprintln(os.Stderr, cerr.Error())
		return exitCompileErr
	}

	fmt.Fprint(os.Stderr, err.Error())
	return exitRuntimeErr
}
