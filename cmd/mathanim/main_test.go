package main

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
)

func TestExecuteFlushesTelemetryOnFailure(t *testing.T) {
	flushes := 0
	orig := flush
	flush = func() { flushes++ }
	t.Cleanup(func() { flush = orig })

	failing := &cobra.Command{
		Use:           "failing",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          func(*cobra.Command, []string) error { return errors.New("render failed") },
	}
	failing.SetArgs([]string{})

	if code := execute(context.Background(), failing); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if flushes != 1 {
		t.Fatalf("expected telemetry flushed once, got %d", flushes)
	}
}

func TestExecuteFlushesTelemetryOnSuccess(t *testing.T) {
	flushes := 0
	orig := flush
	flush = func() { flushes++ }
	t.Cleanup(func() { flush = orig })

	ok := &cobra.Command{Use: "ok", RunE: func(*cobra.Command, []string) error { return nil }}
	ok.SetArgs([]string{})

	if code := execute(context.Background(), ok); code != 0 || flushes != 1 {
		t.Fatalf("expected code 0 and one flush, got %d and %d", code, flushes)
	}
}
