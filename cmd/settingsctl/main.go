package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goerrors "github.com/goliatone/go-errors"
)

func main() {
	code := runMain(Execute, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

func runMain(execute func() error, stderr io.Writer) int {
	if err := execute(); err != nil {
		return exitCodeForError(err, stderr)
	}
	return 0
}

func exitCodeForError(err error, stderr io.Writer) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			emitCommandError(resolveErrorForExitError(ee, err), stderr)
		}
		return ee.code
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "canceled")
		return 130
	}

	emitCommandError(err, stderr)
	return 1
}

// emitCommandError prints the user facing message of err. Errors carrying a
// text code are prefixed with it.
func emitCommandError(err error, stderr io.Writer) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		fmt.Fprintf(stderr, "%s: %s\n", rich.TextCode, rich.Message)
		return
	}
	fmt.Fprintln(stderr, err)
}

func resolveErrorForExitError(ee *exitError, fallback error) error {
	if ee != nil && ee.err != nil {
		return ee.err
	}
	return fallback
}
