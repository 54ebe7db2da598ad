package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunLogsFailure(t *testing.T) {
	var out bytes.Buffer

	code := run(context.Background(), []string{"no-such-command"}, &out)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	logged := out.String()
	if !strings.Contains(logged, "application stopped") || !strings.Contains(logged, "no-such-command") {
		t.Fatalf("failure not logged: %q", logged)
	}
}

func TestRunHelpSucceeds(t *testing.T) {
	var out bytes.Buffer

	if code := run(context.Background(), []string{"--help"}, &out); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, out.String())
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected log output: %q", out.String())
	}
}
