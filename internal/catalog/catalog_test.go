package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"scheinicam/internal/catalog"
	"scheinicam/internal/gateway"
	"scheinicam/internal/services"
	"scheinicam/internal/testsupport"
)

func seed(t *testing.T, fake *testsupport.FakeServer, names ...string) {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	for i, name := range names {
		fake.AddVideo(gateway.Video{
			Filename:  name,
			StartTime: gateway.Timestamp{Time: start.Add(time.Duration(i) * time.Hour)},
		}, testsupport.Payload(1024*(i+1)))
	}
}

func newCatalog(t *testing.T, names ...string) (*testsupport.FakeServer, *catalog.Catalog) {
	t.Helper()
	fake := testsupport.NewFakeServer(t)
	seed(t, fake, names...)
	return fake, catalog.New(fake.Client())
}

func ids(videos []gateway.Video) []string {
	out := make([]string, 0, len(videos))
	for _, v := range videos {
		out = append(out, v.ID)
	}
	return out
}

func TestFetchVideosReplacesList(t *testing.T) {
	fake, cat := newCatalog(t, "a.mp4", "b.mp4")
	ctx := context.Background()

	if _, err := cat.FetchVideos(ctx); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}
	if got := ids(cat.State().Videos); len(got) != 2 || got[0] != "a.mp4" || got[1] != "b.mp4" {
		t.Fatalf("unexpected list %v", got)
	}

	seed(t, fake, "c.mp4")
	if _, err := cat.FetchVideos(ctx); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}
	if got := ids(cat.State().Videos); len(got) != 3 {
		t.Fatalf("expected full replacement, got %v", got)
	}
	if cat.State().Loading {
		t.Fatal("loading should be cleared")
	}
}

func TestFetchVideosFailureRecordsError(t *testing.T) {
	fake, cat := newCatalog(t, "a.mp4")
	ctx := context.Background()
	if _, err := cat.FetchVideos(ctx); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}

	fake.Fail(testsupport.RouteVideos, http.StatusInternalServerError, "Failed to list videos")
	_, err := cat.FetchVideos(ctx)
	if !errors.Is(err, services.ErrServerDeclined) {
		t.Fatalf("expected declined error, got %v", err)
	}
	state := cat.State()
	if state.LastError != "Failed to list videos" || state.Loading {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(state.Videos) != 1 {
		t.Fatal("failed fetch must keep the previous list")
	}
}

func TestSelectVideoLoadsDetail(t *testing.T) {
	_, cat := newCatalog(t, "a.mp4", "b.mp4")

	video, err := cat.SelectVideo(context.Background(), "b.mp4")
	if err != nil {
		t.Fatalf("SelectVideo: %v", err)
	}
	if video.SizeBytes != 2048 {
		t.Fatalf("expected detail size 2048, got %d", video.SizeBytes)
	}
	if selected := cat.State().Selected; selected == nil || selected.ID != "b.mp4" {
		t.Fatalf("unexpected selection %+v", selected)
	}

	if _, err := cat.SelectVideo(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown video")
	}
	if selected := cat.State().Selected; selected == nil || selected.ID != "b.mp4" {
		t.Fatal("failed selection must keep the previous one")
	}
	if cat.State().LastError != "Video not found" {
		t.Fatalf("unexpected error %q", cat.State().LastError)
	}
}

type frameOutcome struct {
	result catalog.FrameResult
	err    error
}

func fetchFrameAsync(cat *catalog.Catalog, id string, offset float64) <-chan frameOutcome {
	out := make(chan frameOutcome, 1)
	go func() {
		result, err := cat.FetchFrame(context.Background(), id, offset)
		out <- frameOutcome{result, err}
	}()
	return out
}

func TestFetchFrameDiscardsStaleResponses(t *testing.T) {
	tests := []struct {
		name        string
		olderFirst  bool
		olderFailed bool
	}{
		{name: "older resolves first", olderFirst: true},
		{name: "older resolves last", olderFirst: false},
		{name: "older fails after newer", olderFirst: false, olderFailed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake, cat := newCatalog(t, "a.mp4")
			gate := fake.Hold(testsupport.RouteFrame)

			older := fetchFrameAsync(cat, "a.mp4", 1)
			heldOlder := gate.Next(t)
			newer := fetchFrameAsync(cat, "a.mp4", 2)
			heldNewer := gate.Next(t)

			if !cat.State().LoadingPreview {
				t.Fatal("expected LoadingPreview while the latest request is outstanding")
			}

			releaseOlder := func() {
				if tc.olderFailed {
					heldOlder.Fail(http.StatusInternalServerError, "frame extraction failed")
					return
				}
				heldOlder.Release()
			}

			var olderOut, newerOut frameOutcome
			if tc.olderFirst {
				releaseOlder()
				olderOut = <-older
				if !cat.State().LoadingPreview {
					t.Fatal("a stale response must not clear LoadingPreview")
				}
				heldNewer.Release()
				newerOut = <-newer
			} else {
				heldNewer.Release()
				newerOut = <-newer
				releaseOlder()
				olderOut = <-older
			}

			if olderOut.err != nil || !olderOut.result.Stale || olderOut.result.Applied {
				t.Fatalf("older request should be stale without error: %+v", olderOut)
			}
			if newerOut.err != nil || newerOut.result.Stale || !newerOut.result.Applied {
				t.Fatalf("newer request should apply: %+v", newerOut)
			}
			state := cat.State()
			if state.PreviewFrame != testsupport.FrameFor("a.mp4", 2) {
				t.Fatalf("expected newest frame, got %q", state.PreviewFrame)
			}
			if state.LoadingPreview || state.LastError != "" {
				t.Fatalf("unexpected state %+v", state)
			}
		})
	}
}

func TestSelectVideoInvalidatesInFlightFrame(t *testing.T) {
	fake, cat := newCatalog(t, "a.mp4", "b.mp4")
	gate := fake.Hold(testsupport.RouteFrame)

	pending := fetchFrameAsync(cat, "a.mp4", 5)
	held := gate.Next(t)

	if _, err := cat.SelectVideo(context.Background(), "b.mp4"); err != nil {
		t.Fatalf("SelectVideo: %v", err)
	}
	if cat.State().LoadingPreview {
		t.Fatal("selection should clear LoadingPreview")
	}

	held.Release()
	out := <-pending
	if out.err != nil || !out.result.Stale {
		t.Fatalf("frame for the old selection should be stale: %+v", out)
	}
	if cat.State().PreviewFrame != "" {
		t.Fatalf("stale frame must not be applied, got %q", cat.State().PreviewFrame)
	}
}

func TestFetchFrameLatestFailureRecordsError(t *testing.T) {
	_, cat := newCatalog(t, "a.mp4")
	ctx := context.Background()

	if _, err := cat.FetchFrame(ctx, "a.mp4", 3); err != nil {
		t.Fatalf("FetchFrame: %v", err)
	}
	result, err := cat.FetchFrame(ctx, "missing", 3)
	if err == nil || result.Stale {
		t.Fatalf("expected a current failure, got %+v %v", result, err)
	}
	state := cat.State()
	if state.PreviewFrame != testsupport.FrameFor("a.mp4", 3) {
		t.Fatal("failed frame must keep the previous preview")
	}
	if state.LastError != "Video not found" || state.LoadingPreview {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestFetchFrameWithoutImageKeepsPreview(t *testing.T) {
	fake, cat := newCatalog(t, "a.mp4")
	ctx := context.Background()
	if _, err := cat.FetchFrame(ctx, "a.mp4", 1); err != nil {
		t.Fatalf("FetchFrame: %v", err)
	}
	fake.Override(testsupport.RouteFrame, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, map[string]any{"success": false})
	})
	result, err := cat.FetchFrame(ctx, "a.mp4", 2)
	if err != nil || result.Applied {
		t.Fatalf("unexpected result %+v %v", result, err)
	}
	if cat.State().PreviewFrame != testsupport.FrameFor("a.mp4", 1) {
		t.Fatal("success:false must keep the previous preview")
	}
}

func TestExportSubclip(t *testing.T) {
	_, cat := newCatalog(t, "2026-03-01_09-30.mp4")
	ctx := context.Background()

	resp, err := cat.ExportSubclip(ctx, "2026-03-01_09-30.mp4", 10, 20)
	if err != nil {
		t.Fatalf("ExportSubclip: %v", err)
	}
	exported := cat.State().ExportedFile
	if exported == nil || exported.Filename != "2026-03-01_09-30_10-20.mp4" || exported.Filename != resp.File.Filename {
		t.Fatalf("unexpected export %+v", exported)
	}
	if cat.State().Exporting {
		t.Fatal("exporting should be cleared")
	}

	// Inverted bounds go to the server unchecked.
	if _, err := cat.ExportSubclip(ctx, "2026-03-01_09-30.mp4", 30, 5); err != nil {
		t.Fatalf("ExportSubclip inverted: %v", err)
	}

	previous := cat.State().ExportedFile
	if _, err := cat.ExportSubclip(ctx, "missing", 1, 2); err == nil {
		t.Fatal("expected error for unknown video")
	}
	if cat.State().ExportedFile == nil || cat.State().ExportedFile.Filename != previous.Filename {
		t.Fatal("failed export must keep the previous file")
	}

	cat.ClearExportedFile()
	if cat.State().ExportedFile != nil {
		t.Fatal("expected export slot to be cleared")
	}
}

func TestDownloadVideoStreamsContent(t *testing.T) {
	_, cat := newCatalog(t, "a.mp4", "b.mp4")
	var buf bytes.Buffer

	written, err := cat.DownloadVideo(context.Background(), "b.mp4", &buf)
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	if written != 2048 || !bytes.Equal(buf.Bytes(), testsupport.Payload(2048)) {
		t.Fatalf("unexpected download: %d bytes", written)
	}
	if cat.State().Downloading {
		t.Fatal("downloading should be cleared")
	}

	if _, err := cat.DownloadVideo(context.Background(), "missing.mp4", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing file")
	}
	if state := cat.State(); state.Downloading || state.LastError == "" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestDeleteVideoRemovesOnlyMatchingEntry(t *testing.T) {
	fake, cat := newCatalog(t, "a.mp4", "b.mp4", "c.mp4")
	ctx := context.Background()
	if _, err := cat.FetchVideos(ctx); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}

	if _, err := cat.DeleteVideo(ctx, "b.mp4"); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if got := ids(cat.State().Videos); len(got) != 2 || got[0] != "a.mp4" || got[1] != "c.mp4" {
		t.Fatalf("unexpected list %v", got)
	}
	if calls := fake.Calls(testsupport.RouteVideos); calls != 1 {
		t.Fatalf("delete must not refetch, saw %d list calls", calls)
	}

	// The server may answer for an ID the client never listed.
	fake.Override(testsupport.RouteDeleteVideo, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	if _, err := cat.DeleteVideo(ctx, "zzz"); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if got := ids(cat.State().Videos); len(got) != 2 {
		t.Fatalf("absent id must leave the list unchanged, got %v", got)
	}
}

func TestDeleteVideoFailureKeepsList(t *testing.T) {
	_, cat := newCatalog(t, "a.mp4")
	ctx := context.Background()
	if _, err := cat.FetchVideos(ctx); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}
	if _, err := cat.DeleteVideo(ctx, "missing"); err == nil {
		t.Fatal("expected error")
	}
	state := cat.State()
	if len(state.Videos) != 1 || state.LastError != "Failed to delete video" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestStateYAMLUsesSnakeCaseKeys(t *testing.T) {
	state := catalog.State{
		Videos:         []gateway.Video{{ID: "a.mp4", Filename: "a.mp4"}},
		PreviewFrame:   "ZnJhbWU=",
		ExportedFile:   &gateway.ExportedFile{Filename: "clip.mp4", Size: 10},
		LoadingPreview: true,
		LastError:      "Video not found",
	}
	out, err := yaml.Marshal(state)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	text := string(out)
	for _, key := range []string{"videos:", "exported_file:", "loading_preview: true", "last_error: Video not found"} {
		if !strings.Contains(text, key) {
			t.Fatalf("expected %q in yaml output:\n%s", key, text)
		}
	}
	for _, key := range []string{"LoadingPreview", "lasterror", "previewframe", "ZnJhbWU="} {
		if strings.Contains(text, key) {
			t.Fatalf("unexpected %q in yaml output:\n%s", key, text)
		}
	}
}
