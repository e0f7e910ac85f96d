package main

import (
	"context"
	"testing"
	"time"
)

func TestWatchPrintsStatusUntilCancelled(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	if _, _, err := env.run(t, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	out, _, err := env.runWith(t, cliRun{ctx: ctx}, "watch")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, "recording rec-001.mp4")
}

func TestWatchSummary(t *testing.T) {
	tests := []struct {
		view recordingStatusView
		want string
		kind statusKind
	}{
		{recordingStatusView{}, "recorder not connected", statusError},
		{recordingStatusView{Connected: true, LastError: "boom"}, "error: boom", statusError},
		{recordingStatusView{Connected: true, Recording: true}, "recording recording", statusWarn},
		{recordingStatusView{Connected: true}, "ready", statusOK},
	}
	for _, tc := range tests {
		if got := watchSummary(tc.view, time.UTC); got != tc.want {
			t.Fatalf("watchSummary(%+v) = %q, want %q", tc.view, got, tc.want)
		}
		if got := watchKind(tc.view); got != tc.kind {
			t.Fatalf("watchKind(%+v) = %v, want %v", tc.view, got, tc.kind)
		}
	}
}
