// Package generator turns a configuration document into C++ sources: it
// validates and translates every widget and action script, renders the
// files, and records each run in history.
package generator

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/handoff"
	"github.com/aristath/lvglgen/internal/project"
	"github.com/aristath/lvglgen/internal/utils"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/internal/widgets"
	"github.com/aristath/lvglgen/pkg/logger"
)

// Version is mixed into the input hash so a new generator always
// regenerates.
const Version = "0.4.0"

// WidgetOutcome is the result of translating one widget entry.
type WidgetOutcome struct {
	ID     string
	Kind   string
	Path   string
	Type   widgets.Type `json:"-"`
	Config interface{}  `json:"-"`
	Err    error        `json:"-"`
}

// OK reports whether the widget translated cleanly.
func (w *WidgetOutcome) OK() bool {
	return w.Err == nil
}

// Output is everything produced from one document, before anything is
// written.
type Output struct {
	Session *codegen.Session
	Files   []codegen.File
	Widgets []*WidgetOutcome
	Loads   []handoff.Request
	Errors  validation.Errors
}

// Generator translates documents with the registered widget types.
type Generator struct {
	types   *widgets.Registry
	actions *widgets.ActionRegistry
	runs    RunStore
	events  *events.Manager
	memory  config.MemoryConfig
	log     zerolog.Logger
}

// New creates a generator. runs and em may be nil, in which case nothing is
// recorded or emitted.
func New(types *widgets.Registry, actions *widgets.ActionRegistry, runs RunStore, em *events.Manager, memory config.MemoryConfig, log zerolog.Logger) *Generator {
	return &Generator{
		types:   types,
		actions: actions,
		runs:    runs,
		events:  em,
		memory:  memory,
		log:     logger.Component(log, "generator"),
	}
}

// Build validates and translates doc in a fresh session. A widget that
// fails stops at its first error; the others still translate so every
// problem is reported at once. The returned error is non-nil when any
// widget or action failed (a validation.Errors) or rendering failed; the
// Output is always returned for inspection.
func (g *Generator) Build(doc *project.Document) (*Output, error) {
	defer utils.NewTimer("build", g.log).Stop()

	sess := codegen.NewSession()
	env := widgets.Env{BaseDir: doc.Dir, ConfineFiles: doc.Confined, Log: g.log}
	out := &Output{Session: sess}

	// explicit ids are reserved up front so generated ones never collide
	for _, entry := range doc.Widgets {
		for _, id := range g.explicitIDs(entry) {
			_ = sess.Reserve(id)
		}
	}

	for _, entry := range doc.Widgets {
		w := g.buildWidget(sess, env, entry)
		out.Widgets = append(out.Widgets, w)
		if w.Err != nil {
			out.Errors.Add(w.Err)
			continue
		}
		if lp, ok := w.Type.(widgets.LoadPlanner); ok {
			out.Loads = append(out.Loads, lp.Loads(&widgets.Widget{ID: w.ID, Kind: w.Kind}, w.Config)...)
		}
	}

	for _, script := range doc.Scripts {
		var body []string
		for _, step := range script.Steps {
			stmts, err := g.buildAction(sess, env, step)
			if err != nil {
				out.Errors.Add(err)
				continue
			}
			body = append(body, stmts...)
		}
		sess.AddAction(script.Name, body)
	}

	if err := out.Errors.Err(); err != nil {
		return out, err
	}

	files, err := sess.Render()
	if err != nil {
		return out, err
	}
	out.Files = files
	return out, nil
}

func (g *Generator) buildWidget(sess *codegen.Session, env widgets.Env, entry project.WidgetEntry) *WidgetOutcome {
	w := &WidgetOutcome{Kind: entry.Kind, Path: entry.Path}

	t := g.types.Get(entry.Kind)
	if t == nil {
		w.Err = validation.Newf(entry.Body, entry.Path, "unknown widget type %q", entry.Kind)
		return w
	}
	w.Type = t

	m, err := validation.NewMapping(entry.Body, entry.Path)
	if err != nil {
		w.Err = err
		return w
	}
	if node := m.Get("id"); node != nil {
		if w.ID, err = validation.ID(node, m.Path("id")); err != nil {
			w.Err = err
			return w
		}
	}

	cfg, err := t.Validate(m, env)
	if err != nil {
		w.Err = err
		return w
	}
	if err := m.CheckUnknown(); err != nil {
		w.Err = err
		return w
	}
	w.Config = cfg

	if w.ID == "" {
		w.ID = sess.GenerateID(entry.Kind)
	}
	widget := &widgets.Widget{ID: w.ID, Kind: entry.Kind}
	if err := widgets.Create(sess, widget, cfg); err != nil {
		w.Err = locate(err, m, entry.Path)
		return w
	}
	if err := t.ToCode(sess, widget, cfg); err != nil {
		w.Err = locate(err, m, entry.Path)
		return w
	}
	return w
}

func (g *Generator) buildAction(sess *codegen.Session, env widgets.Env, step project.ActionStep) ([]string, error) {
	fn := g.actions.Get(step.Name)
	if fn == nil {
		return nil, validation.Newf(step.Value, step.Path, "unknown action %q", step.Name)
	}
	return fn(sess, step.Value, step.Path, env)
}

// locate attaches a field path to errors raised after validation.
func locate(err error, m *validation.Mapping, path string) error {
	var inv *validation.Invalid
	if errors.As(err, &inv) {
		return err
	}
	return validation.Newf(m.Node(), path, "%v", err)
}

// explicitIDs lists the identifiers a widget entry names itself: its `id`
// plus any symbols its type declares. Invalid values are left for
// buildWidget to report.
func (g *Generator) explicitIDs(entry project.WidgetEntry) []string {
	m, err := validation.NewMapping(entry.Body, entry.Path)
	if err != nil {
		return nil
	}
	var ids []string
	if node := m.Get("id"); node != nil {
		if id, err := validation.ID(node, m.Path("id")); err == nil {
			ids = append(ids, id)
		}
	}
	if namer, ok := g.types.Get(entry.Kind).(widgets.SymbolNamer); ok {
		ids = append(ids, namer.ExplicitSymbols(m)...)
	}
	return ids
}
