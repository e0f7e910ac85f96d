package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scheinicam/internal/gateway"
	"scheinicam/internal/testsupport"
)

func seedVideos(env *cliTestEnv) {
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	duration := 3723.0
	env.fake.AddVideo(gateway.Video{
		Filename:  "2026-03-01_09-30.mp4",
		StartTime: gateway.Timestamp{Time: start},
		Duration:  &duration,
	}, testsupport.Payload(1536))
	env.fake.AddVideo(gateway.Video{
		Filename:  "2026-03-02_10-00.mp4",
		StartTime: gateway.Timestamp{Time: start.Add(24*time.Hour + 30*time.Minute)},
	}, testsupport.Payload(64))
}

func TestVideosListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	seedVideos(env)

	out, _, err := env.run(t, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "2026-03-01_09-30.mp4")
	requireContains(t, out, "2026-03-01 09:30")
	requireContains(t, out, "1h2m3s")

	out, _, err = env.run(t, "videos", "list", "--format", "json")
	if err != nil {
		t.Fatalf("videos list json: %v", err)
	}
	var views []videoView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(views) != 2 || views[1].ID != "2026-03-02_10-00.mp4" {
		t.Fatalf("unexpected list %+v", views)
	}

	out, _, err = env.run(t, "videos", "show", "2026-03-01_09-30.mp4")
	if err != nil {
		t.Fatalf("videos show: %v", err)
	}
	requireContains(t, out, "1.50 KB")
	requireContains(t, out, "2026-03-01T09:30:00Z")
}

func TestVideosListGermanLocale(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Display.Locale = "de-DE"
	writeTestConfig(t, env.configPath, env.cfg)
	env.login(t)
	seedVideos(env)

	out, _, err := env.run(t, "videos", "show", "2026-03-01_09-30.mp4")
	if err != nil {
		t.Fatalf("videos show: %v", err)
	}
	requireContains(t, out, "1.3.2026 - 09:30 Uhr")
	requireContains(t, out, "1,50 KB")
}

func TestVideosShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)

	_, _, err := env.run(t, "videos", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "Video not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestVideosFrame(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	seedVideos(env)

	still := []byte("still-image")
	env.fake.Override(testsupport.RouteFrame, func(w http.ResponseWriter, r *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"frame":   base64.StdEncoding.EncodeToString(still),
		})
	})
	target := filepath.Join(env.baseDir, "frame.jpg")

	out, _, err := env.run(t, "videos", "frame", "2026-03-01_09-30.mp4", "--at", "12.5", "-o", target)
	if err != nil {
		t.Fatalf("videos frame: %v", err)
	}
	requireContains(t, out, "Wrote frame to")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(data) != string(still) {
		t.Fatalf("unexpected frame %q", data)
	}
}

func TestVideosExportDownloadDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	seedVideos(env)

	out, _, err := env.run(t, "videos", "export", "2026-03-01_09-30.mp4", "--start", "10", "--end", "20", "--format", "json")
	if err != nil {
		t.Fatalf("videos export: %v", err)
	}
	var exported gateway.ExportedFile
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if exported.Filename != "2026-03-01_09-30_10-20.mp4" || exported.URL != "/videos/2026-03-01_09-30_10-20.mp4" {
		t.Fatalf("unexpected export %+v", exported)
	}

	target := filepath.Join(env.baseDir, "clip.mp4")
	out, _, err = env.run(t, "videos", "download", exported.Filename, "-o", target)
	if err != nil {
		t.Fatalf("videos download: %v", err)
	}
	requireContains(t, out, "Downloaded")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if int64(len(data)) != exported.Size {
		t.Fatalf("downloaded %d bytes, want %d", len(data), exported.Size)
	}

	out, _, err = env.run(t, "videos", "delete", "2026-03-02_10-00.mp4")
	if err != nil {
		t.Fatalf("videos delete: %v", err)
	}
	requireContains(t, out, "deleted")
	if remaining := env.fake.Videos(); len(remaining) != 1 {
		t.Fatalf("expected one video left on the server, got %d", len(remaining))
	}
}

func TestVideosDownloadMissingRemovesPartialFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)

	target := filepath.Join(env.baseDir, "missing.mp4")
	if _, _, err := env.run(t, "videos", "download", "missing.mp4", "-o", target); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected no file left behind, stat err = %v", err)
	}
	leftovers, err := filepath.Glob(filepath.Join(env.baseDir, ".missing.mp4.*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temporary download files left behind: %v", leftovers)
	}
}

func TestVideosExportRequiresEnd(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	if _, _, err := env.run(t, "videos", "export", "x", "--start", "1"); err == nil {
		t.Fatal("expected missing --end to fail")
	}
}
