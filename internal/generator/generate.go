package generator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/handoff"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/project"
)

// RunStore is the part of the history repository the generator uses.
type RunStore interface {
	Record(run *history.Run) error
	LastSuccessful(configPath string) (*history.Run, error)
}

// Options controls one Generate call.
type Options struct {
	ConfigPath string
	OutputDir  string
	Force      bool // write even when inputs are unchanged
}

// Result describes a finished run.
type Result struct {
	RunID     string
	InputHash string
	Files     []codegen.File
	Widgets   []*WidgetOutcome
	Loads     []handoff.Request
	Errors    []error
	Skipped   bool
	Duration  time.Duration
}

// Generate loads the configuration, builds it and writes the sources into
// opts.OutputDir. Files are only written when every widget and action
// translated; otherwise the returned error lists the configuration errors.
// When the inputs hash to the same value as the last successful run and
// that run's files are still on disk, nothing is written and Skipped is set.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String()}
	log := g.log.With().Str("run_id", res.RunID).Logger()

	run := &history.Run{
		ID:         res.RunID,
		StartedAt:  start.UTC(),
		ConfigPath: opts.ConfigPath,
	}

	doc, err := project.Load(opts.ConfigPath)
	if err != nil {
		res.Errors = []error{err}
		g.finish(res, run, history.StatusFailed, nil, start)
		return res, err
	}
	run.ConfigPath = doc.Path

	g.emit(&events.GenerationStartedData{RunID: res.RunID, ConfigPath: doc.Path})
	log.Info().Str("config", doc.Path).Int("widgets", len(doc.Widgets)).Msg("Generation started")

	out, buildErr := g.Build(doc)
	res.Widgets = out.Widgets
	res.Loads = out.Loads
	g.emitWidgets(res.RunID, out)

	if buildErr != nil {
		for _, inv := range out.Errors {
			res.Errors = append(res.Errors, inv)
		}
		if len(res.Errors) == 0 {
			res.Errors = []error{buildErr}
		}
		log.Warn().Err(buildErr).Msg("Generation failed")
		g.finish(res, run, history.StatusFailed, out, start)
		return res, buildErr
	}
	if err := ctx.Err(); err != nil {
		res.Errors = []error{err}
		g.finish(res, run, history.StatusFailed, out, start)
		return res, err
	}

	res.InputHash = InputHash(doc.Raw, out.Session.Inputs())
	run.InputHash = res.InputHash

	if !opts.Force {
		if prev, ok := g.upToDate(doc.Path, res.InputHash, opts.OutputDir); ok {
			res.Skipped = true
			g.emit(&events.GenerationSkippedData{
				RunID:         res.RunID,
				InputHash:     res.InputHash,
				PreviousRunID: prev.ID,
			})
			log.Info().Str("previous_run", prev.ID).Msg("Outputs up to date, nothing written")
			g.finish(res, run, history.StatusSkipped, out, start)
			return res, nil
		}
	}

	if err := WriteFiles(opts.OutputDir, out.Files); err != nil {
		res.Errors = []error{err}
		log.Error().Err(err).Str("dir", opts.OutputDir).Msg("Failed to write generated files")
		g.finish(res, run, history.StatusFailed, out, start)
		return res, err
	}
	res.Files = out.Files

	log.Info().Str("dir", opts.OutputDir).Str("summary", out.String()).Msg("Generation completed")
	g.finish(res, run, history.StatusSuccess, out, start)
	return res, nil
}

// upToDate returns the previous run when its hash matches and its files
// are unchanged on disk.
func (g *Generator) upToDate(configPath, hash, dir string) (*history.Run, bool) {
	if g.runs == nil {
		return nil, false
	}
	prev, err := g.runs.LastSuccessful(configPath)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			g.log.Warn().Err(err).Msg("Failed to read history, regenerating")
		}
		return nil, false
	}
	if prev.InputHash != hash || prev.Manifest == nil {
		return nil, false
	}
	return prev, FilesIntact(dir, prev.Manifest.Files)
}

// finish records the run and emits the completion event.
func (g *Generator) finish(res *Result, run *history.Run, status history.Status, out *Output, start time.Time) {
	res.Duration = time.Since(start)

	run.Status = status
	run.DurationMS = res.Duration.Milliseconds()
	run.Errors = len(res.Errors)
	run.Loads = len(res.Loads)
	run.Widgets = len(res.Widgets)
	run.Manifest = manifest(out, res)

	if g.runs != nil {
		if err := g.runs.Record(run); err != nil {
			g.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run")
		}
	}

	if status == history.StatusSkipped {
		return
	}
	names := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	g.emit(&events.GenerationCompletedData{
		RunID:      res.RunID,
		Status:     string(status),
		Widgets:    run.Widgets,
		Loads:      run.Loads,
		Errors:     run.Errors,
		Files:      names,
		DurationMS: run.DurationMS,
	})
}

func manifest(out *Output, res *Result) *history.Manifest {
	m := &history.Manifest{Version: Version}
	for _, f := range res.Files {
		m.Files = append(m.Files, history.FileEntry{
			Name:   f.Name,
			Size:   len(f.Content),
			SHA256: checksum(f.Content),
		})
	}
	for _, e := range res.Errors {
		m.Errors = append(m.Errors, e.Error())
	}
	if out == nil {
		return m
	}
	for _, w := range out.Widgets {
		entry := history.WidgetEntry{ID: w.ID, Kind: w.Kind}
		if w.Err != nil {
			entry.Error = w.Err.Error()
		}
		m.Widgets = append(m.Widgets, entry)
	}
	m.Uses = out.Session.Uses()
	return m
}

func (g *Generator) emitWidgets(runID string, out *Output) {
	for _, w := range out.Widgets {
		if w.Err != nil {
			g.emit(&events.WidgetFailedData{RunID: runID, WidgetID: w.ID, Kind: w.Kind, Error: w.Err.Error()})
			continue
		}
		g.emit(&events.WidgetGeneratedData{RunID: runID, WidgetID: w.ID, Kind: w.Kind})
	}
}

func (g *Generator) emit(data events.EventData) {
	if g.events != nil {
		g.events.EmitTyped("generator", data)
	}
}

// Plan simulates every deferred load of out against the configured device
// memory.
func (g *Generator) Plan(ctx context.Context, out *Output) (*handoff.Report, error) {
	return handoff.Plan(ctx, out.Loads, g.memory.PSRAMBytes, g.memory.InternalBytes, g.log)
}
