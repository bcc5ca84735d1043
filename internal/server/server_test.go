package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/di"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/history"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ConfigPath: filepath.Join(dir, "lvgl.yaml"),
		OutputDir:  filepath.Join(dir, "build"),
		DataDir:    filepath.Join(dir, "data"),
		Port:       8090,
		Retention:  24 * time.Hour,
		Memory:     config.MemoryConfig{PSRAMBytes: 8 << 20, InternalBytes: 320 << 10},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anim.json"), []byte(`{"w":20,"h":10}`), 0644))

	container, _, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	s := New(Config{Log: zerolog.Nop(), Config: cfg, Container: container, Port: cfg.Port, DevMode: true})
	return s, container
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndWidgets(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/api/widgets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []interface{}{"arclabel", "lottie"}, body["widgets"])
	assert.Contains(t, body["actions"], "lvgl.lottie.pause")
}

func TestGenerate(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/generate", `
lvgl:
  widgets:
    - arclabel: {id: title, text: Hi}
    - lottie: {id: spin, file: anim.json}
    - lottie: {id: far, src: /sd/a.json, width: 100, height: 100}
`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	files := body["files"].([]interface{})
	require.Len(t, files, 2)
	source := files[1].(map[string]interface{})
	assert.Equal(t, "lvgl_widgets.cpp", source["name"])
	assert.Contains(t, source["content"], "lottie_buf_spin = lottie_load_async(spin, lottie_data_0, 15, nullptr, nullptr, 20, 10, true, true);")

	plan := body["plan"].([]interface{})
	require.Len(t, plan, 2)
	first := plan[0].(map[string]interface{})
	assert.Equal(t, "spin", first["widget_id"])
	assert.Equal(t, true, first["embedded"])
	assert.Equal(t, float64(20*10*4+32*1024), first["psram_bytes"])
	assert.Equal(t, float64(352), first["internal_bytes"])

	_, err := os.Stat(s.cfg.OutputDir)
	assert.True(t, os.IsNotExist(err), "the API never writes sources")
}

func TestGenerate_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/generate", "lvgl:\n  widgets:\n    - lottie: {src: /a.json, file: anim.json}\n")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["errors"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "lvgl.widgets[0].lottie.src", first["path"])
	assert.Contains(t, first["reason"], "cannot specify both")

	rec = do(t, s, http.MethodPost, "/api/generate", "widgets: []\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/generate", "lvgl: [unclosed\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_FileReferencesStayInConfigDir(t *testing.T) {
	s, _ := newTestServer(t)

	outside := filepath.Join(t.TempDir(), "outside.json")
	require.NoError(t, os.WriteFile(outside, []byte(`{"w":1,"h":1,"token":"S3CR3T"}`), 0644))

	for _, ref := range []string{outside, "../outside.json", "/does/not/exist.json"} {
		t.Run(ref, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/generate", "lvgl:\n  widgets:\n    - lottie: {file: '"+ref+"'}\n")
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "S3CR3T")

			errs := decode(t, rec)["errors"].([]interface{})
			require.Len(t, errs, 1)
			first := errs[0].(map[string]interface{})
			assert.Equal(t, "lvgl.widgets[0].lottie.file", first["path"])
			assert.Contains(t, first["reason"], "inside the configuration directory")
		})
	}
}

func TestGenerate_DirParameter(t *testing.T) {
	s, _ := newTestServer(t)
	sub := filepath.Join(filepath.Dir(s.cfg.ConfigPath), "anims")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.json"), []byte(`{"w":8,"h":8}`), 0644))

	body := "lvgl:\n  widgets:\n    - lottie: {id: a, file: a.json}\n"
	rec := do(t, s, http.MethodPost, "/api/generate?dir=anims", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, dir := range []string{"..", "/", "anims/../.."} {
		rec = do(t, s, http.MethodPost, "/api/generate?dir="+url.QueryEscape(dir), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, dir)
	}
}

func TestRuns(t *testing.T) {
	s, container := newTestServer(t)
	require.NoError(t, container.HistoryRepo.Record(&history.Run{
		ID:         "r1",
		StartedAt:  time.Now().UTC(),
		ConfigPath: "/x.yaml",
		Status:     history.StatusSuccess,
		Manifest:   &history.Manifest{Version: "t", Uses: []string{"LOTTIE"}},
	}))

	rec := do(t, s, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = do(t, s, http.MethodGet, "/api/runs/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "r1", body["id"])
	assert.Equal(t, []interface{}{"LOTTIE"}, body["manifest"].(map[string]interface{})["uses"])

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/runs?limit=zero", "").Code)
}

func TestPreviewArcLabel(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/preview/arclabel?radius=40&start=350&end=10&text=hey", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String()[:4])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/preview/arclabel?start=400", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/preview/arclabel?radius=x", "").Code)
}

func TestHealth_DatabaseUnavailable(t *testing.T) {
	s, container := newTestServer(t)
	require.NoError(t, container.HistoryDB.Close())

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestWritePNG_RenderFailure(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.writePNG(rec, func(out io.Writer) error {
		_, _ = out.Write([]byte("\x89PNG partial"))
		return errors.New("encoder failed")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "PNG")
	assert.Equal(t, "failed to render preview", decode(t, rec)["error"])
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/system", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "cpu_percent")
	assert.Contains(t, body, "goroutines")
	require.Contains(t, body, "history_db")
	assert.Positive(t, body["history_db"].(map[string]interface{})["page_size"])
}

func TestEventsWebsocket(t *testing.T) {
	s, container := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events?types=HISTORY_PRUNED", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() streamMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg streamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, "connected", read().Type)

	container.EventManager.EmitTyped("test", &events.GenerationStartedData{RunID: "filtered out"})
	container.EventManager.EmitTyped("test", &events.HistoryPrunedData{Removed: 4, Cutoff: "2026-01-01T00:00:00Z"})

	msg := read()
	assert.Equal(t, string(events.HistoryPruned), msg.Type)
	assert.Equal(t, "test", msg.Module)
	assert.Equal(t, float64(4), msg.Data["removed"])
}
