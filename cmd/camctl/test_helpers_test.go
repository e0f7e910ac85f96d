package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scheinicam/internal/config"
	"scheinicam/internal/testsupport"
)

type cliTestEnv struct {
	fake       *testsupport.FakeServer
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	fake := testsupport.NewFakeServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(fake.URL))
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SCHEINICAM_URL", "")

	configPath := filepath.Join(base, "camctl.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		fake:       fake,
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
	}
}

type cliRun struct {
	stdin string
	ctx   context.Context
	opts  []contextOption
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return env.runWith(t, cliRun{}, args...)
}

func (env *cliTestEnv) runWith(t *testing.T, run cliRun, args ...string) (string, string, error) {
	t.Helper()
	cmd, cleanup := newRootCommand(run.opts...)
	defer cleanup()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(run.stdin))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	ctx := run.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// login remembers a transient login for the following commands.
func (env *cliTestEnv) login(t *testing.T) {
	t.Helper()
	out, _, err := env.runWith(t, cliRun{stdin: "secret\n"}, "login", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in")
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[server]\nbase_url = %q\nrequest_timeout_seconds = 5\n\n"+
			"[paths]\nstate_dir = %q\nlog_dir = %q\nruntime_dir = %q\n\n"+
			"[poll]\nstatus_interval = 1\npreview_interval = 0\nschedule_interval = 0\n\n"+
			"[display]\nlocale = %q\ntimezone = \"UTC\"\n\n"+
			"[logging]\nformat = \"console\"\nlevel = \"warn\"\n",
		cfg.Server.BaseURL,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.RuntimeDir,
		cfg.Display.Locale,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func fastTicks() (<-chan time.Time, func()) {
	ticker := time.NewTicker(time.Millisecond)
	return ticker.C, ticker.Stop
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
