package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/emberlang/ember/internal/vm"

	"github.com/emberlang/ember"
)

// Exit codes match the reference interpreter's convention: a usage
// error never reaches the language at all, compile and runtime errors
// are distinguished so scripts (and Makefiles) can tell them apart.
const (
	exitOK           = 0
	exitCompileError = 65
	exitRuntimeError = 70
	exitUsageError   = 64
)

func main() {
	flag.Parse()

	switch flag.NArg() {
	case 0:
		runRepl()
	case 1:
		runFile(flag.Arg(0))
	default:
		fmt.Fprintln(os.Stderr, "Usage: ember [path]")
		os.Exit(exitUsageError)
	}
}

func runFile(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file %q: %v\n", path, err)
		os.Exit(exitUsageError)
	}

	e := ember.NewVM(os.Stdout)
	switch e.Interpret(string(source)) {
	case ember.OK:
		os.Exit(exitOK)
	case ember.CompileError:
		fmt.Fprintln(os.Stderr, e.LastCompileError())
		os.Exit(exitCompileError)
	case ember.RuntimeError:
		reportRuntimeError(e.LastRuntimeError())
		os.Exit(exitRuntimeError)
	}
}

// runRepl starts an interactive session that shares one VM's global
// table across lines, so a var or fun declared on one line is visible
// to the next. Each line is compiled and run independently: a syntax
// error on one line does not poison the session.
func runRepl() {
	reader := bufio.NewReader(os.Stdin)
	e := ember.NewVM(os.Stdout)

	fmt.Println("Ember (Ctrl+D to exit)")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			return
		}

		switch e.Interpret(line) {
		case ember.CompileError:
			fmt.Fprintln(os.Stderr, e.LastCompileError())
		case ember.RuntimeError:
			reportRuntimeError(e.LastRuntimeError())
		}
	}
}

func reportRuntimeError(rerr *vm.RuntimeError) {
	if rerr == nil {
		return
	}
	fmt.Fprintln(os.Stderr, rerr.Error())
}
