package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/modules/arclabel"
	"github.com/aristath/lvglgen/internal/modules/lottie"
	"github.com/aristath/lvglgen/internal/preview"
	"github.com/aristath/lvglgen/internal/project"
	testingpkg "github.com/aristath/lvglgen/internal/testing"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/internal/widgets"
)

const validConfig = `
lvgl:
  widgets:
    - arclabel:
        id: title
        text: "Hello"
        radius: 50
        start_angle: 350
        end_angle: 10
    - lottie:
        id: spinner
        file: anim/loading.json
    - lottie:
        src: /sdcard/remote.json
        width: 200
        height: 100
        loop: false
actions:
  play:
    - lvgl.lottie.start: spinner
    - lvgl.lottie.stop: { id: lottie_0 }
    - lvgl.arclabel.update: { id: title, text: "Bye" }
`

type fixture struct {
	gen    *Generator
	repo   *history.Repository
	dir    string
	out    string
	events []*events.Event
	mu     sync.Mutex
}

func newFixture(t *testing.T, yamlText string) *fixture {
	t.Helper()
	dir, _ := testingpkg.NewProject(t, yamlText, map[string][]byte{
		"anim/loading.json": testingpkg.LottieJSON(64, 32),
	})
	db, _ := testingpkg.NewTestDB(t, "history")

	types := widgets.NewRegistry()
	actions := widgets.NewActionRegistry()
	arclabel.Register(types, actions)
	lottie.Register(types, actions)

	f := &fixture{
		repo: history.NewRepository(db.Conn(), zerolog.Nop()),
		dir:  dir,
		out:  filepath.Join(dir, "build"),
	}
	bus := events.NewBus(zerolog.Nop())
	for _, et := range events.AllTypes() {
		bus.Subscribe(et, func(e *events.Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
		})
	}
	em := events.NewManager(bus, zerolog.Nop())
	f.gen = New(types, actions, f.repo, em, config.MemoryConfig{PSRAMBytes: 8 << 20, InternalBytes: 320 << 10}, zerolog.Nop())
	return f
}

func (f *fixture) generate(t *testing.T, force bool) (*Result, error) {
	t.Helper()
	return f.gen.Generate(context.Background(), Options{
		ConfigPath: filepath.Join(f.dir, "lvgl.yaml"),
		OutputDir:  f.out,
		Force:      force,
	})
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func TestGenerate_WritesSources(t *testing.T) {
	f := newFixture(t, validConfig)

	res, err := f.generate(t, false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Widgets, 3)
	assert.Equal(t, "lottie_0", res.Widgets[2].ID, "generated ids skip explicit ones")
	require.Len(t, res.Loads, 2)
	assert.Equal(t, 64, res.Loads[0].Width)

	src, err := os.ReadFile(filepath.Join(f.out, codegen.SourceFile))
	require.NoError(t, err)
	text := string(src)
	assert.Equal(t, 1, strings.Count(text, "static void lottie_load_task("), "loader helper emitted once")
	assert.Contains(t, text, "lv_arclabel_set_angle_range(title, 350, 370);")
	assert.Contains(t, text, "lottie_buf_spinner = lottie_load_async(spinner, lottie_data_0, 37, nullptr, nullptr, 64, 32, true, true);")
	assert.Contains(t, text, `lottie_buf_lottie_0 = lottie_load_async(lottie_0, nullptr, 0, "/sdcard/remote.json", nullptr, 200, 100, false, true);`)
	assert.Contains(t, text, "void lvgl_action_play() {")
	assert.Contains(t, text, "lv_anim_start(lv_lottie_get_anim(spinner));")
	assert.Contains(t, text, `lv_arclabel_set_text(title, "Bye");`)

	hdr, err := os.ReadFile(filepath.Join(f.out, codegen.HeaderFile))
	require.NoError(t, err)
	assert.Contains(t, string(hdr), "#define LV_USE_ARCLABEL 1")
	assert.Contains(t, string(hdr), "#define LV_USE_LOTTIE 1")

	run, err := f.repo.Get(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSuccess, run.Status)
	assert.Equal(t, res.InputHash, run.InputHash)
	assert.Equal(t, 3, run.Widgets)
	assert.Equal(t, 2, run.Loads)
	require.NotNil(t, run.Manifest)
	assert.Len(t, run.Manifest.Files, 2)
	assert.Contains(t, run.Manifest.Uses, "LOTTIE")

	assert.Equal(t, events.GenerationStarted, f.eventTypes()[0])
	assert.Contains(t, f.eventTypes(), events.WidgetGenerated)
	assert.Equal(t, events.GenerationCompleted, f.eventTypes()[len(f.eventTypes())-1])
}

func TestGenerate_SkipsWhenUnchanged(t *testing.T) {
	f := newFixture(t, validConfig)

	first, err := f.generate(t, false)
	require.NoError(t, err)

	second, err := f.generate(t, false)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Contains(t, f.eventTypes(), events.GenerationSkipped)

	run, err := f.repo.Get(second.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSkipped, run.Status)

	forced, err := f.generate(t, true)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
}

func TestGenerate_RegeneratesWhenOutputsChange(t *testing.T) {
	f := newFixture(t, validConfig)
	_, err := f.generate(t, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.out, codegen.SourceFile), []byte("// edited"), 0644))
	res, err := f.generate(t, false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	src, err := os.ReadFile(filepath.Join(f.out, codegen.SourceFile))
	require.NoError(t, err)
	assert.NotEqual(t, "// edited", string(src))
}

func TestGenerate_RegeneratesWhenEmbeddedFileChanges(t *testing.T) {
	f := newFixture(t, validConfig)
	first, err := f.generate(t, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "anim", "loading.json"), []byte(`{"w":10,"h":10}`), 0644))
	second, err := f.generate(t, false)
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.NotEqual(t, first.InputHash, second.InputHash)
}

func TestGenerate_FailureWritesNothing(t *testing.T) {
	f := newFixture(t, `
lvgl:
  widgets:
    - arclabel:
        id: good
        text: ok
    - lottie:
        id: both
        src: /sdcard/a.json
        file: anim/loading.json
    - arclabel:
        radius: 10
actions:
  go:
    - lvgl.lottie.start: good
`)

	res, err := f.generate(t, false)
	require.Error(t, err)

	var errs validation.Errors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)
	assert.Contains(t, err.Error(), "cannot specify both")
	assert.Contains(t, err.Error(), "lvgl.widgets[2].arclabel.text")
	assert.Contains(t, err.Error(), "is a arclabel, not a lottie")
	assert.Len(t, res.Errors, 3)

	_, statErr := os.Stat(filepath.Join(f.out, codegen.SourceFile))
	assert.True(t, os.IsNotExist(statErr))

	run, err := f.repo.Get(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, run.Status)
	assert.Equal(t, 3, run.Errors)
	assert.Equal(t, "both", run.Manifest.Widgets[1].ID)
	assert.NotEmpty(t, run.Manifest.Widgets[1].Error)

	assert.Contains(t, f.eventTypes(), events.WidgetFailed)
}

func TestGenerate_MissingConfig(t *testing.T) {
	f := newFixture(t, validConfig)
	res, err := f.gen.Generate(context.Background(), Options{ConfigPath: filepath.Join(f.dir, "nope.yaml"), OutputDir: f.out})
	require.Error(t, err)

	run, getErr := f.repo.Get(res.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, history.StatusFailed, run.Status)
}

func build(t *testing.T, f *fixture, yamlText string) (*Output, error) {
	t.Helper()
	doc, err := project.Parse([]byte(yamlText), f.dir)
	require.NoError(t, err)
	return f.gen.Build(doc)
}

func TestBuild_Errors(t *testing.T) {
	f := newFixture(t, validConfig)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown widget", "lvgl:\n  widgets:\n    - gauge: {}\n", `unknown widget type "gauge"`},
		{"unknown key", "lvgl:\n  widgets:\n    - arclabel: {text: a, colour: red}\n", "colour: unknown key"},
		{"bad id", "lvgl:\n  widgets:\n    - arclabel: {id: 9lives, text: a}\n", "arclabel.id"},
		{"duplicate id", "lvgl:\n  widgets:\n    - arclabel: {id: a, text: a}\n    - arclabel: {id: a, text: b}\n", "declared twice"},
		{"unknown action", "lvgl:\n  widgets: []\nactions:\n  s:\n    - lvgl.lottie.rewind: x\n", `unknown action "lvgl.lottie.rewind"`},
		{"raw id clash", "lvgl:\n  widgets:\n    - arclabel: {id: clash, text: a}\n    - lottie: {file: anim/loading.json, raw_data_id: clash}\n", "raw_data_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := build(t, f, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out.Files)
		})
	}
}

func TestBuild_ExplicitRawDataIDIndependentOfOrder(t *testing.T) {
	f := newFixture(t, validConfig)
	named := "    - lottie: {id: named, file: anim/loading.json, raw_data_id: lottie_data_0}\n"
	anon := "    - lottie: {id: anon, file: anim/loading.json}\n"

	tests := []struct {
		name string
		yaml string
	}{
		{"generated first", "lvgl:\n  widgets:\n" + anon + named},
		{"explicit first", "lvgl:\n  widgets:\n" + named + anon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := build(t, f, tt.yaml)
			require.NoError(t, err)

			src := string(out.Files[1].Content)
			assert.Contains(t, src, "lottie_buf_named = lottie_load_async(named, lottie_data_0, 37,")
			assert.Contains(t, src, "lottie_buf_anon = lottie_load_async(anon, lottie_data_1, 37,")
		})
	}
}

func TestBuild_DuplicateRawDataID(t *testing.T) {
	f := newFixture(t, validConfig)
	_, err := build(t, f, `
lvgl:
  widgets:
    - lottie: {file: anim/loading.json, raw_data_id: shared}
    - lottie: {file: anim/loading.json, raw_data_id: shared}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lvgl.widgets[1].lottie`)
	assert.Contains(t, err.Error(), `id "shared" is already in use`)
}

func TestBuild_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t, validConfig)
	yamlText := "lvgl:\n  widgets:\n    - lottie: {src: /a.json, width: 1, height: 1}\n"

	first, err := build(t, f, yamlText)
	require.NoError(t, err)
	second, err := build(t, f, yamlText)
	require.NoError(t, err)

	for _, out := range []*Output{first, second} {
		src := string(out.Files[1].Content)
		assert.Contains(t, src, "lottie_load_task", "each run carries its own loader helper")
		assert.Equal(t, "lottie_0", out.Widgets[0].ID)
	}
}

func TestPlanAndPreviews(t *testing.T) {
	f := newFixture(t, validConfig)
	out, err := build(t, f, validConfig)
	require.NoError(t, err)

	report, err := f.gen.Plan(context.Background(), out)
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Zero(t, report.Failed())
	assert.Equal(t, 64*32*4, report.Entries[0].PSRAM-32*1024, "buffer plus the leaked stack")

	dir := filepath.Join(f.dir, "preview")
	paths, err := f.gen.Previews(out, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "title.png"),
		filepath.Join(dir, "spinner.png"),
		filepath.Join(dir, "lottie_0.png"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestPreviews_SkipsWidgetsThatCannotRender(t *testing.T) {
	f := newFixture(t, validConfig)
	out, err := build(t, f, `
lvgl:
  widgets:
    - lottie: {id: huge, src: /sd/huge.json, width: 5000, height: 10}
    - arclabel: {id: after, text: ok}
`)
	require.NoError(t, err)

	dir := filepath.Join(f.dir, "preview")
	paths, err := f.gen.Previews(out, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, preview.ErrCanvasSize)
	assert.Contains(t, err.Error(), "huge")
	assert.Equal(t, []string{filepath.Join(dir, "after.png")}, paths)
	assert.FileExists(t, filepath.Join(dir, "after.png"))
	assert.NoFileExists(t, filepath.Join(dir, "huge.png"))
}

func TestInputHash(t *testing.T) {
	a := InputHash([]byte("x"), []codegen.Input{{Name: "f", Data: []byte("1")}})
	assert.Len(t, a, 64)
	assert.Equal(t, a, InputHash([]byte("x"), []codegen.Input{{Name: "f", Data: []byte("1")}}))
	assert.NotEqual(t, a, InputHash([]byte("x"), []codegen.Input{{Name: "f", Data: []byte("2")}}))
	assert.NotEqual(t, InputHash([]byte("ab"), nil), InputHash([]byte("a"), []codegen.Input{{Name: "b"}}),
		"fields are length-prefixed")
}

func TestWriteFilesAndIntact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := []codegen.File{{Name: "a.h", Content: []byte("alpha")}, {Name: "a.cpp", Content: []byte("beta")}}
	require.NoError(t, WriteFiles(dir, files))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")

	manifest := []history.FileEntry{
		{Name: "a.h", Size: 5, SHA256: checksum([]byte("alpha"))},
		{Name: "a.cpp", Size: 4, SHA256: checksum([]byte("beta"))},
	}
	assert.True(t, FilesIntact(dir, manifest))
	assert.False(t, FilesIntact(dir, nil))

	require.NoError(t, os.Remove(filepath.Join(dir, "a.h")))
	assert.False(t, FilesIntact(dir, manifest))
}
