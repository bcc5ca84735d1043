// Package arclabel translates arclabel widgets: text drawn along an arc.
package arclabel

import (
	"fmt"
	"io"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/preview"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/internal/widgets"
)

// Name is the YAML key of the widget.
const Name = "arclabel"

// ActionUpdate changes the text of an existing arc label.
const ActionUpdate = "lvgl.arclabel.update"

// Config is a validated arclabel body.
type Config struct {
	Text       string
	Radius     int
	StartAngle int
	EndAngle   int
	Rotation   int
}

// Geometry returns the translated span and size.
func (c *Config) Geometry() Geometry {
	return Translate(c.StartAngle, c.EndAngle, c.Rotation, c.Radius)
}

// Update is a validated lvgl.arclabel.update body.
type Update struct {
	Text *string
}

// Type implements widgets.Type for arc labels.
type Type struct{}

var (
	_ widgets.Type      = (*Type)(nil)
	_ widgets.Updater   = (*Type)(nil)
	_ widgets.Previewer = (*Type)(nil)
)

// New returns the arclabel widget type.
func New() *Type {
	return &Type{}
}

// Register adds the widget type and its actions.
func Register(types *widgets.Registry, actions *widgets.ActionRegistry) {
	t := New()
	types.Register(t)
	actions.Register(ActionUpdate, widgets.UpdateAction(Name, t))
}

func (t *Type) Name() string {
	return Name
}

func (t *Type) Uses() []string {
	return []string{"ARCLABEL"}
}

// Validate reads the arclabel schema. Geometry is range-checked here so
// Translate never sees out-of-range input.
func (t *Type) Validate(m *validation.Mapping, env widgets.Env) (interface{}, error) {
	textNode, err := m.Required("text")
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if cfg.Text, err = validation.Text(textNode, m.Path("text")); err != nil {
		return nil, err
	}
	if cfg.Radius, err = m.OptionalInt("radius", 100, validation.Pixels); err != nil {
		return nil, err
	}
	if cfg.StartAngle, err = m.OptionalInt("start_angle", 0, validation.AngleDegrees); err != nil {
		return nil, err
	}
	if cfg.EndAngle, err = m.OptionalInt("end_angle", 360, validation.AngleDegrees); err != nil {
		return nil, err
	}
	if cfg.Rotation, err = m.OptionalInt("rotation", 0, validation.AngleDegrees); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (t *Type) ToCode(sess *codegen.Session, w *widgets.Widget, cfg interface{}) error {
	c, err := asConfig(cfg)
	if err != nil {
		return err
	}
	sess.AddUse(t.Uses()...)
	sess.Require("label")

	g := c.Geometry()
	sess.AddSetup(
		codegen.Call("lv_arclabel_set_text", w.Obj(), codegen.CString(c.Text)),
		codegen.Call("lv_arclabel_set_radius", w.Obj(), c.Radius),
		codegen.Call("lv_arclabel_set_angle_range", w.Obj(), g.Start, g.End),
		codegen.Call("lv_obj_set_size", w.Obj(), g.Size, g.Size),
	)
	return nil
}

// ValidateUpdate accepts only text; geometry is fixed after creation.
func (t *Type) ValidateUpdate(m *validation.Mapping, env widgets.Env) (interface{}, error) {
	u := &Update{}
	if node := m.Get("text"); node != nil {
		text, err := validation.Text(node, m.Path("text"))
		if err != nil {
			return nil, err
		}
		u.Text = &text
	}
	return u, nil
}

func (t *Type) ToCodeUpdate(sess *codegen.Session, w *widgets.Widget, update interface{}) ([]string, error) {
	u, ok := update.(*Update)
	if !ok {
		return nil, fmt.Errorf("arclabel: unexpected update type %T", update)
	}
	if u.Text == nil {
		return nil, nil
	}
	return []string{codegen.Call("lv_arclabel_set_text", w.Obj(), codegen.CString(*u.Text))}, nil
}

// Preview renders the arc span as a PNG.
func (t *Type) Preview(out io.Writer, cfg interface{}) error {
	c, err := asConfig(cfg)
	if err != nil {
		return err
	}
	g := c.Geometry()
	return preview.RenderArcLabel(out, preview.ArcLabel{
		Text:   c.Text,
		Radius: c.Radius,
		Start:  g.Start,
		End:    g.End,
		Size:   g.Size,
	})
}

func asConfig(cfg interface{}) (*Config, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("arclabel: unexpected config type %T", cfg)
	}
	return c, nil
}
