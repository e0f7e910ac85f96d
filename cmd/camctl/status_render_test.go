package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Recorder", statusOK, "connected", false)
	if line != "  Recorder:      [OK] connected" {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Recorder", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored line, got %q", colored)
	}
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderDetails(t *testing.T) {
	out := renderDetails([][2]string{{"File", "a.mp4"}, {"Size", "1.00 KB"}})
	for _, want := range []string{"File", "a.mp4", "Size", "1.00 KB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
