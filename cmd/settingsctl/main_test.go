package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/goliatone/go-account-settings/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestRunMain_ExitCodes(t *testing.T) {
	var stderr bytes.Buffer
	if code := runMain(func() error { return nil }, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if code := runMain(func() error { return errors.New("boom") }, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if code := runMain(func() error { return fmt.Errorf("wrapped: %w", context.Canceled) }, &stderr); code != 130 {
		t.Fatalf("expected exit 130, got %d", code)
	}

	stderr.Reset()
	code := runMain(func() error { return &exitError{code: 3, silent: true} }, &stderr)
	if code != 3 || stderr.Len() != 0 {
		t.Fatalf("expected silent exit 3, got code=%d stderr=%q", code, stderr.String())
	}
}

func TestEmitCommandError_PrefixesTextCode(t *testing.T) {
	var out bytes.Buffer
	err := goerrors.New("The current password is incorrect", goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(core.MatrixErrorForbidden)
	emitCommandError(&exitError{code: 1, err: err}, &out)
	if got := out.String(); got != "M_FORBIDDEN: The current password is incorrect\n" {
		t.Fatalf("unexpected output %q", got)
	}

	out.Reset()
	emitCommandError(errors.New("plain boom"), &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}
