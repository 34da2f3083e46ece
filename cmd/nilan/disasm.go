package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/hashicorp/go-multierror"

	"nilan/compiler"
)

type disasmCmd struct{}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "compile a source file and print its bytecode" }
func (*disasmCmd) Usage() string {
	return "disasm <file>: compile a Nilan source file and dump its chunk without executing it.\n"
}

func (*disasmCmd) SetFlags(*flag.FlagSet) {}

func (*disasmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	c := compiler.New()
	ch, compileErr := c.Compile(string(source))
	if compileErr != nil {
		var merr *multierror.Error
		if errors.As(compileErr, &merr) {
			for _, e := range merr.Errors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return exitCompileErr
		}
		var cerr *compiler.CompileError
		if errors.As(compileErr, &cerr) {
			fmt.Fprintln(os.Stderr, cerr.Error())
			return exitCompileErr
		}
		fmt.Fprintln(os.Stderr, compileErr.Error())
		return exitCompileErr
	}

	fmt.Print(ch.Disassemble(args[0]))
	return exitSuccess
}
