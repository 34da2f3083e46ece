package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"nilan/lexer"
	"nilan/token"
	"nilan/vm"
)

const banner = `
Welcome to the Nilan programming language!

  ███╗   ██╗██╗██╗      █████╗ ███╗   ██╗
  ████╗  ██║██║██║     ██╔══██╗████╗  ██║
  ██╔██╗ ██║██║██║     ███████║██╔██╗ ██║
  ██║╚██╗██║██║██║     ██╔══██║██║╚██╗██║
  ██║ ╚████║██║███████╗██║  ██║██║ ╚████║
  ╚═╝  ╚═══╝╚═╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝
`

type replCmd struct {
	debug bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start an interactive Nilan session" }
func (*replCmd) Usage() string    { return "repl: start an interactive Nilan session.\n" }

func (c *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.debug, "debug", false, "log chunk disassembly and dispatch trace")
}

func (c *replCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Println("💥 could not start line editor:", err)
		return exitFailure
	}
	defer rl.Close()

	fmt.Println(banner)

	machine := vm.New()
	machine.Debug(c.debug)

	var buf strings.Builder

	for {
		prompt := ">>> "
		if buf.Len() > 0 {
			prompt = "... "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt (Ctrl-C)
			return exitSuccess
		}

		if strings.TrimSpace(line) == "exit" && buf.Len() == 0 {
			return exitSuccess
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)

		if !isInputReady(buf.String()) {
			continue
		}

		source := buf.String()
		buf.Reset()

		if err := runREPLSource(machine, source); err != nil {
			reportError(err)
		}
	}
}

const exitFailure = subcommands.ExitStatus(1)

// runREPLSource compiles source as a sequence of declarations; if that
// fails and source isn't already a statement (no trailing ';' or '}'),
// it retries by wrapping source as a print statement over that
// expression's value. Grounded on original_source/src/vm.cpp's REPL
// driver and rami3l/golox's Compile(src, isREPL bool) retry.
func runREPLSource(machine *vm.VM, source string) error {
	err := machine.Interpret(source)
	if err == nil {
		return nil
	}

	trimmed := strings.TrimSpace(source)
	if strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, "}") {
		return err
	}

	if asExprErr := machine.Interpret("print " + source + ";"); asExprErr == nil {
		return nil
	}
	return err
}

// isInputReady reports whether source has balanced braces and doesn't
// end on a token that obviously expects more input, so the REPL knows
// to keep buffering lines rather than attempt a compile. Grounded on
// informatter-nilan's cmd_repl_compiled.go isInputReady.
func isInputReady(source string) bool {
	l := lexer.New(source)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Kind == token.Eof {
			break
		}
		toks = append(toks, tok)
	}

	braceBalance := 0
	for _, tok := range toks {
		switch tok.Kind {
		case token.LeftBrace:
			braceBalance++
		case token.RightBrace:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	if len(toks) == 0 {
		return true
	}

	switch toks[len(toks)-1].Kind {
	case token.Equal, token.Plus, token.Minus, token.Star, token.Slash,
		token.Bang, token.EqualEqual, token.BangEqual,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual,
		token.Comma, token.LeftParen, token.LeftBrace,
		token.If, token.Else, token.While, token.Var, token.And, token.Or, token.Print:
		return false
	}
	return true
}
