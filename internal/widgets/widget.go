// Package widgets defines the contract between the generator and the
// individual widget translators, plus the registries that hold them.
package widgets

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/handoff"
	"github.com/aristath/lvglgen/internal/validation"
)

// Env carries what validators need beyond the YAML itself.
type Env struct {
	BaseDir      string // directory of the configuration file
	ConfineFiles bool   // reject file references outside BaseDir
	Log          zerolog.Logger
}

// Widget is a declared LVGL object.
type Widget struct {
	ID   string
	Kind string
}

// Obj is the C expression naming the widget's lv_obj_t pointer.
func (w *Widget) Obj() codegen.Literal {
	return codegen.Literal(w.ID)
}

// Instance is stored in the session symbol table for action lookups.
type Instance struct {
	Widget *Widget
	Config interface{}
}

// Type translates one widget kind.
type Type interface {
	// Name is the YAML key, e.g. "arclabel".
	Name() string
	// Validate checks the widget body; `id` has already been consumed.
	Validate(m *validation.Mapping, env Env) (interface{}, error)
	// ToCode emits the widget's setup code into the session.
	ToCode(sess *codegen.Session, w *Widget, cfg interface{}) error
	// Uses lists the LV_USE_* features the widget needs.
	Uses() []string
}

// Updater is implemented by types supporting lvgl.<kind>.update.
type Updater interface {
	ValidateUpdate(m *validation.Mapping, env Env) (interface{}, error)
	ToCodeUpdate(sess *codegen.Session, w *Widget, update interface{}) ([]string, error)
}

// LoadPlanner is implemented by types that schedule a deferred load.
type LoadPlanner interface {
	Loads(w *Widget, cfg interface{}) []handoff.Request
}

// SymbolNamer is implemented by types whose bodies name extra C symbols
// (besides `id`) that must be reserved before any id is generated.
type SymbolNamer interface {
	ExplicitSymbols(m *validation.Mapping) []string
}

// Previewer is implemented by types that can render a PNG approximation.
type Previewer interface {
	Preview(out io.Writer, cfg interface{}) error
}

// Create emits the object declaration and constructor call shared by all
// widget kinds, and records the widget in the session.
func Create(sess *codegen.Session, w *Widget, cfg interface{}) error {
	if err := sess.Declare(codegen.Symbol{
		ID:    w.ID,
		Kind:  w.Kind,
		Value: &Instance{Widget: w, Config: cfg},
	}); err != nil {
		return err
	}
	sess.AddGlobal(fmt.Sprintf("static lv_obj_t *%s = nullptr;", w.ID))
	sess.AddSetup(fmt.Sprintf("%s = %s;", w.ID, codegen.Expr("lv_"+w.Kind+"_create", codegen.Literal("lv_screen_active()"))))
	return nil
}

// Lookup resolves a widget id to its instance, checking the kind.
func Lookup(sess *codegen.Session, id, kind string) (*Instance, error) {
	sym, ok := sess.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("no widget with id %q", id)
	}
	if kind != "" && sym.Kind != kind {
		return nil, fmt.Errorf("widget %q is a %s, not a %s", id, sym.Kind, kind)
	}
	inst, ok := sym.Value.(*Instance)
	if !ok {
		return nil, fmt.Errorf("symbol %q is not a widget", id)
	}
	return inst, nil
}

// ResolveTarget implements the "maybe simple value" convention used by
// actions: a bare scalar is the target id, otherwise a mapping whose `id`
// key names the target. The returned mapping (nil for the scalar form) has
// `id` consumed.
func ResolveTarget(sess *codegen.Session, node *yaml.Node, path, kind string) (*Instance, *validation.Mapping, error) {
	node = validation.Resolve(node)
	var (
		m      *validation.Mapping
		id     string
		err    error
		idPath = path
	)

	if node != nil && node.Kind == yaml.ScalarNode {
		id, err = validation.ID(node, path)
	} else {
		m, err = validation.NewMapping(node, path)
		if err != nil {
			return nil, nil, err
		}
		var idNode *yaml.Node
		if idNode, err = m.Required("id"); err == nil {
			idPath = m.Path("id")
			id, err = validation.ID(idNode, idPath)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	inst, err := Lookup(sess, id, kind)
	if err != nil {
		return nil, nil, validation.Newf(node, idPath, "%v", err)
	}
	return inst, m, nil
}
