package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	initMapFile = ""
	framesTable, framesZero = false, false
	heapAlign, heapZero = 0, false
	mapPerm, mapLevel, mapIdentity = "rw", 0, false
	stressOps, stressSeed, stressMaxSize, stressMetrics = 10000, 1, 512, false
}

// newTestImage creates a default image in a temp dir and returns its path.
func newTestImage(t *testing.T) string {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	path := filepath.Join(t.TempDir(), "ram.img")
	if _, err := captureOutput(t, func() error { return runInit(t.Context(), []string{path}) }); err != nil {
		t.Fatalf("init: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// run captures the output of a command that must succeed.
func run(t *testing.T, fn func() error) string {
	t.Helper()
	out, err := captureOutput(t, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v\nOutput: %s", err, out)
	}
	return out
}

// assertJSON checks that output is valid JSON and decodes it into v when non-nil
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if v == nil {
		v = new(any)
	}
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
