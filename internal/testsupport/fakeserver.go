package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"scheinicam/internal/gateway"
)

// Route names used by Calls, Override and Hold.
const (
	RouteStatus        = "GET /api/recordings/status"
	RouteStart         = "POST /api/recordings/start"
	RouteStop          = "POST /api/recordings/stop"
	RouteCurrent       = "GET /api/recordings/current"
	RoutePreview       = "GET /api/recordings/preview"
	RouteNextScheduled = "GET /api/recordings/next-scheduled"
	RouteVideos        = "GET /api/recordings/videos"
	RouteVideo         = "GET /api/recordings/videos/{id}"
	RouteFrame         = "GET /api/recordings/videos/{id}/frame"
	RouteExport        = "POST /api/recordings/videos/{id}/export"
	RouteDeleteVideo   = "DELETE /api/recordings/videos/{id}"
	RouteDownload      = "GET /videos/{filename}"
	RouteLogin         = "POST /api/auth/login"
	RouteAdminStatus   = "GET /api/admin/status"
	RouteMute          = "POST /api/admin/mute"
	RouteReloadCamera  = "POST /api/admin/camera/reload"
	RouteLogo          = "POST /api/admin/logo"
	RouteShutdown      = "POST /api/admin/shutdown"
	RouteRestart       = "POST /api/admin/restart"
	RouteAudioCheck    = "GET /api/admin/audio/check"
	RouteAudioMonitor  = "GET /api/admin/audio/monitor"
	RouteLogs          = "GET /api/admin/logs"
	RouteLogFile       = "GET /api/admin/logs/{filename}"
	RouteDeleteLogs    = "DELETE /api/admin/logs"
)

// FakeServer is an in-memory stand-in for the recording backend.
type FakeServer struct {
	t      testing.TB
	server *httptest.Server
	router *mux.Router

	// URL is the base URL of the running server.
	URL string

	mu          sync.Mutex
	password    string
	connected   bool
	recording   bool
	current     *gateway.FileRef
	preview     string
	schedule    *gateway.Schedule
	videos      []gateway.Video
	content     map[string][]byte
	muted       bool
	logo        bool
	audio       gateway.AudioCheck
	monitor     gateway.AudioMonitorStatus
	logs        []gateway.LogFile
	fileCounter int
	calls       map[string]int
	overrides   map[string]http.HandlerFunc
	gates       map[string]*Gate
}

// NewFakeServer starts a connected, idle backend that accepts password "secret".
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()

	f := &FakeServer{
		t:         t,
		password:  "secret",
		connected: true,
		content:   make(map[string][]byte),
		audio:     gateway.AudioCheck{Success: true, Range: 0.25, HasAudio: true},
		monitor:   gateway.AudioMonitorStatus{Running: true, FailureThreshold: 3, CheckInterval: 60},
		calls:     make(map[string]int),
		overrides: make(map[string]http.HandlerFunc),
		gates:     make(map[string]*Gate),
	}
	f.router = mux.NewRouter()
	f.routes()
	f.router.Use(f.intercept)

	f.server = httptest.NewServer(f.router)
	f.URL = f.server.URL
	t.Cleanup(f.Close)
	return f
}

func (f *FakeServer) routes() {
	r := f.router
	r.HandleFunc("/api/recordings/status", f.handleStatus).Methods(http.MethodGet).Name(RouteStatus)
	r.HandleFunc("/api/recordings/start", f.handleStart).Methods(http.MethodPost).Name(RouteStart)
	r.HandleFunc("/api/recordings/stop", f.handleStop).Methods(http.MethodPost).Name(RouteStop)
	r.HandleFunc("/api/recordings/current", f.handleCurrent).Methods(http.MethodGet).Name(RouteCurrent)
	r.HandleFunc("/api/recordings/preview", f.handlePreview).Methods(http.MethodGet).Name(RoutePreview)
	r.HandleFunc("/api/recordings/next-scheduled", f.handleNextScheduled).Methods(http.MethodGet).Name(RouteNextScheduled)
	r.HandleFunc("/api/recordings/videos", f.handleVideos).Methods(http.MethodGet).Name(RouteVideos)
	r.HandleFunc("/api/recordings/videos/{id}", f.handleVideo).Methods(http.MethodGet).Name(RouteVideo)
	r.HandleFunc("/api/recordings/videos/{id}/frame", f.handleFrame).Methods(http.MethodGet).Name(RouteFrame)
	r.HandleFunc("/api/recordings/videos/{id}/export", f.handleExport).Methods(http.MethodPost).Name(RouteExport)
	r.HandleFunc("/api/recordings/videos/{id}", f.handleDeleteVideo).Methods(http.MethodDelete).Name(RouteDeleteVideo)
	r.HandleFunc("/videos/{filename}", f.handleDownload).Methods(http.MethodGet).Name(RouteDownload)
	r.HandleFunc("/api/auth/login", f.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	r.HandleFunc("/api/admin/status", f.handleAdminStatus).Methods(http.MethodGet).Name(RouteAdminStatus)
	r.HandleFunc("/api/admin/mute", f.handleMute).Methods(http.MethodPost).Name(RouteMute)
	r.HandleFunc("/api/admin/camera/reload", f.handleAck("Camera reloaded")).Methods(http.MethodPost).Name(RouteReloadCamera)
	r.HandleFunc("/api/admin/logo", f.handleLogo).Methods(http.MethodPost).Name(RouteLogo)
	r.HandleFunc("/api/admin/shutdown", f.handleAck("System shutdown initiated")).Methods(http.MethodPost).Name(RouteShutdown)
	r.HandleFunc("/api/admin/restart", f.handleAck("System restart initiated")).Methods(http.MethodPost).Name(RouteRestart)
	r.HandleFunc("/api/admin/audio/check", f.handleAudioCheck).Methods(http.MethodGet).Name(RouteAudioCheck)
	r.HandleFunc("/api/admin/audio/monitor", f.handleAudioMonitor).Methods(http.MethodGet).Name(RouteAudioMonitor)
	r.HandleFunc("/api/admin/logs", f.handleLogs).Methods(http.MethodGet).Name(RouteLogs)
	r.HandleFunc("/api/admin/logs/{filename}", f.handleLogFile).Methods(http.MethodGet).Name(RouteLogFile)
	r.HandleFunc("/api/admin/logs", f.handleDeleteLogs).Methods(http.MethodDelete).Name(RouteDeleteLogs)
}

// intercept counts calls and applies holds and overrides.
func (f *FakeServer) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		f.mu.Lock()
		f.calls[name]++
		gate := f.gates[name]
		override := f.overrides[name]
		f.mu.Unlock()

		if gate != nil {
			held := &HeldRequest{Query: r.URL.Query(), Vars: mux.Vars(r), decision: make(chan http.HandlerFunc, 1)}
			select {
			case gate.Requests <- held:
			case <-r.Context().Done():
				return
			}
			select {
			case decided := <-held.decision:
				if decided != nil {
					decided(w, r)
					return
				}
			case <-r.Context().Done():
				return
			}
		}
		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close stops the server and releases any held requests.
func (f *FakeServer) Close() {
	f.mu.Lock()
	f.gates = make(map[string]*Gate)
	f.mu.Unlock()
	f.server.CloseClientConnections()
	f.server.Close()
}

// Client returns a gateway client pointed at the server.
func (f *FakeServer) Client(opts ...gateway.Option) *gateway.Client {
	f.t.Helper()
	client, err := gateway.New(f.URL, 5*time.Second, opts...)
	if err != nil {
		f.t.Fatalf("gateway.New: %v", err)
	}
	return client
}

// Calls reports how many requests reached the named route.
func (f *FakeServer) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Override replaces the handler for a route. A nil handler restores the default.
func (f *FakeServer) Override(route string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if handler == nil {
		delete(f.overrides, route)
		return
	}
	f.overrides[route] = handler
}

// Fail makes a route answer with status and a FastAPI detail body.
func (f *FakeServer) Fail(route string, status int, detail string) {
	f.Override(route, func(w http.ResponseWriter, _ *http.Request) {
		WriteDetail(w, status, detail)
	})
}

// Hold parks every request to route until the test releases it.
func (f *FakeServer) Hold(route string) *Gate {
	gate := &Gate{Requests: make(chan *HeldRequest, 16)}
	f.mu.Lock()
	f.gates[route] = gate
	f.mu.Unlock()
	return gate
}

// Gate collects held requests in arrival order.
type Gate struct {
	Requests chan *HeldRequest
}

// Next waits for the next held request.
func (g *Gate) Next(t testing.TB) *HeldRequest {
	t.Helper()
	select {
	case held := <-g.Requests:
		return held
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for held request")
		return nil
	}
}

// HeldRequest is a parked request awaiting a decision.
type HeldRequest struct {
	Query    map[string][]string
	Vars     map[string]string
	decision chan http.HandlerFunc
}

// Release lets the request continue to its normal handler.
func (h *HeldRequest) Release() {
	h.decision <- nil
}

// Fail answers the request with status and a FastAPI detail body.
func (h *HeldRequest) Fail(status int, detail string) {
	h.decision <- func(w http.ResponseWriter, _ *http.Request) {
		WriteDetail(w, status, detail)
	}
}

// Respond answers the request with status and a JSON body.
func (h *HeldRequest) Respond(status int, body any) {
	h.decision <- func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	}
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteDetail writes a FastAPI style error.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, map[string]string{"detail": detail})
}

// SetPassword changes the accepted login password.
func (f *FakeServer) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
}

// SetConnected toggles the recorder connection.
func (f *FakeServer) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

// StopExternally ends the recording without a client command, as a crash or
// the scheduler would.
func (f *FakeServer) StopExternally() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishRecordingLocked()
}

// SetPreview sets the screenshot served by the preview endpoint. Empty makes it fail.
func (f *FakeServer) SetPreview(image string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preview = image
}

// SetSchedule sets the next scheduled recording. Nil means nothing planned.
func (f *FakeServer) SetSchedule(schedule *gateway.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedule = schedule
}

// AddVideo appends a catalog entry with downloadable content.
func (f *FakeServer) AddVideo(video gateway.Video, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if video.ID == "" {
		video.ID = video.Filename
	}
	f.videos = append(f.videos, video)
	f.content[video.Filename] = content
}

// Videos returns the server's catalog.
func (f *FakeServer) Videos() []gateway.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Video(nil), f.videos...)
}

// SetLogs replaces the backend log listing.
func (f *FakeServer) SetLogs(logs []gateway.LogFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append([]gateway.LogFile(nil), logs...)
}

// Muted reports the recorder's mute state.
func (f *FakeServer) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *FakeServer) finishRecordingLocked() {
	if !f.recording {
		return
	}
	f.recording = false
	if f.current != nil {
		end := gateway.Timestamp{Time: time.Now()}
		for i := range f.videos {
			if f.videos[i].Filename == f.current.Filename {
				f.videos[i].EndTime = &end
				f.videos[i].IsRecording = false
				duration := end.Sub(f.videos[i].StartTime.Time).Seconds()
				f.videos[i].Duration = &duration
			}
		}
	}
	f.current = nil
}

func (f *FakeServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current any
	if f.current != nil {
		current = f.current.Filename
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"is_recording": f.recording,
		"is_connected": f.connected,
		"current_file": current,
	})
}

func (f *FakeServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected || f.recording {
		WriteDetail(w, http.StatusInternalServerError, "Failed to start recording")
		return
	}
	f.fileCounter++
	start := gateway.Timestamp{Time: time.Now()}
	f.recording = true
	f.current = &gateway.FileRef{Filename: fmt.Sprintf("rec-%03d.mp4", f.fileCounter), StartTime: start}
	f.videos = append(f.videos, gateway.Video{
		ID:          f.current.Filename,
		Filename:    f.current.Filename,
		StartTime:   start,
		IsRecording: true,
	})
	f.content[f.current.Filename] = []byte("recording in progress")
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Recording started"})
}

func (f *FakeServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		WriteDetail(w, http.StatusInternalServerError, "Failed to stop recording")
		return
	}
	f.finishRecordingLocked()
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Recording stopped"})
}

func (f *FakeServer) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		WriteJSON(w, http.StatusOK, nil)
		return
	}
	WriteJSON(w, http.StatusOK, f.current)
}

func (f *FakeServer) handlePreview(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.preview == "" {
		WriteDetail(w, http.StatusServiceUnavailable, "Could not get screenshot from OBS")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "image": f.preview})
}

func (f *FakeServer) handleNextScheduled(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schedule == nil {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Keine automatischen Aufnahmen geplant"})
		return
	}
	WriteJSON(w, http.StatusOK, f.schedule)
}

func (f *FakeServer) handleVideos(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]gateway.Video, 0, len(f.videos))
	for _, video := range f.videos {
		video.SizeBytes = 0
		list = append(list, video)
	}
	WriteJSON(w, http.StatusOK, list)
}

func (f *FakeServer) findVideoLocked(id string) (int, bool) {
	for i, video := range f.videos {
		if video.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (f *FakeServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.findVideoLocked(mux.Vars(r)["id"])
	if !ok {
		WriteDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	video := f.videos[idx]
	video.SizeBytes = int64(len(f.content[video.Filename]))
	WriteJSON(w, http.StatusOK, video)
}

// FrameFor is the frame payload served for id at offset seconds.
func FrameFor(id string, offset float64) string {
	return "frame:" + id + "@" + strconv.FormatFloat(offset, 'f', -1, 64)
}

func (f *FakeServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := f.findVideoLocked(id); !ok {
		WriteDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	offset, err := strconv.ParseFloat(r.URL.Query().Get("timestamp"), 64)
	if err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "timestamp must be a number")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"frame":     FrameFor(id, offset),
		"timestamp": offset,
	})
}

func (f *FakeServer) handleExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartTime float64  `json:"start_time"`
		EndTime   *float64 `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := mux.Vars(r)["id"]
	idx, ok := f.findVideoLocked(id)
	if !ok {
		WriteDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	if body.EndTime == nil {
		WriteDetail(w, http.StatusBadRequest, "end_time is required")
		return
	}
	stem := strings.TrimSuffix(f.videos[idx].Filename, path.Ext(f.videos[idx].Filename))
	name := fmt.Sprintf("%s_%g-%g.mp4", stem, body.StartTime, *body.EndTime)
	payload := []byte(fmt.Sprintf("clip %s %g-%g", id, body.StartTime, *body.EndTime))
	f.content[name] = payload
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file": map[string]any{
			"filename": name,
			"size":     len(payload),
			"url":      "/videos/" + name,
		},
	})
}

func (f *FakeServer) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := mux.Vars(r)["id"]
	idx, ok := f.findVideoLocked(id)
	if !ok {
		WriteDetail(w, http.StatusInternalServerError, "Failed to delete video")
		return
	}
	delete(f.content, f.videos[idx].Filename)
	f.videos = append(f.videos[:idx:idx], f.videos[idx+1:]...)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": fmt.Sprintf("Video %s deleted", id)})
}

func (f *FakeServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	payload, ok := f.content[mux.Vars(r)["filename"]]
	f.mu.Unlock()
	if !ok {
		WriteDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (f *FakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body gateway.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	f.mu.Lock()
	accepted := body.Password == f.password
	f.mu.Unlock()
	if accepted {
		WriteJSON(w, http.StatusOK, gateway.LoginResponse{Success: true, Message: "Login erfolgreich"})
		return
	}
	WriteJSON(w, http.StatusOK, gateway.LoginResponse{Success: false, Message: "Falsches Passwort"})
}

func (f *FakeServer) handleAdminStatus(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current *string
	if f.current != nil {
		name := f.current.Filename
		current = &name
	}
	WriteJSON(w, http.StatusOK, gateway.AdminStatus{
		OBS: gateway.OBSStatus{
			Connected:   f.connected,
			Recording:   f.recording,
			Muted:       f.muted,
			CurrentFile: current,
		},
		Files:        gateway.FilesSummary{Total: len(f.videos)},
		AudioMonitor: f.monitor,
	})
}

func (f *FakeServer) handleMute(w http.ResponseWriter, r *http.Request) {
	var body gateway.MuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	f.mu.Lock()
	f.muted = body.Muted
	f.mu.Unlock()
	WriteJSON(w, http.StatusOK, gateway.MuteResponse{Success: true, Muted: body.Muted})
}

func (f *FakeServer) handleLogo(w http.ResponseWriter, r *http.Request) {
	var body gateway.LogoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	f.mu.Lock()
	f.logo = body.Visible
	f.mu.Unlock()
	WriteJSON(w, http.StatusOK, gateway.LogoResponse{Success: true, Visible: body.Visible})
}

func (f *FakeServer) handleAck(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, gateway.AckResponse{Success: true, Message: message})
	}
}

func (f *FakeServer) handleAudioCheck(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	WriteJSON(w, http.StatusOK, f.audio)
}

func (f *FakeServer) handleAudioMonitor(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	WriteJSON(w, http.StatusOK, f.monitor)
}

func (f *FakeServer) handleLogs(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	logs := f.logs
	if logs == nil {
		logs = []gateway.LogFile{}
	}
	WriteJSON(w, http.StatusOK, gateway.LogsResponse{Logs: logs})
}

func (f *FakeServer) handleLogFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.logs {
		if entry.Filename == name {
			WriteJSON(w, http.StatusOK, gateway.LogContent{
				Filename: name,
				Content:  "log line from " + name + "\n",
				Size:     entry.Size,
			})
			return
		}
	}
	WriteDetail(w, http.StatusNotFound, "Log file not found")
}

func (f *FakeServer) handleDeleteLogs(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := len(f.logs)
	f.logs = nil
	WriteJSON(w, http.StatusOK, gateway.DeleteLogsResponse{Success: true, Deleted: deleted})
}
