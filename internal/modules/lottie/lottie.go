// Package lottie translates lottie widgets, which play vector animations
// exported from After Effects with Bodymovin.
//
// Decoding a Lottie document with ThorVG needs a large call stack, so the
// generated code hands every load to a dedicated FreeRTOS task whose stack
// lives in PSRAM (see loader.inc and package handoff). The animation is
// either embedded into the firmware (file:) or read from the device
// filesystem at runtime (src:).
package lottie

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/handoff"
	"github.com/aristath/lvglgen/internal/preview"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/internal/widgets"
)

// Name is the YAML key of the widget.
const Name = "lottie"

// loaderOnceKey marks the helper block as emitted for a session.
const loaderOnceKey = "lottie_loader"

//go:embed loader.inc
var loaderSource string

// Config is a validated lottie body. Exactly one of Src and Embedded is set.
type Config struct {
	Src       string
	Embedded  *Embedded
	Width     int
	Height    int
	Loop      bool
	AutoStart bool
	RawDataID string
}

// Source returns the handoff source for the configured mode.
func (c *Config) Source() handoff.Source {
	if c.Embedded != nil {
		return handoff.Source{Data: c.Embedded.Data, Path: c.Embedded.Path}
	}
	return handoff.Source{Path: c.Src}
}

// Type implements widgets.Type for Lottie players.
type Type struct{}

var (
	_ widgets.Type        = (*Type)(nil)
	_ widgets.Updater     = (*Type)(nil)
	_ widgets.LoadPlanner = (*Type)(nil)
	_ widgets.Previewer   = (*Type)(nil)
	_ widgets.SymbolNamer = (*Type)(nil)
)

// New returns the lottie widget type.
func New() *Type {
	return &Type{}
}

// Register adds the widget type and its playback actions.
func Register(types *widgets.Registry, actions *widgets.ActionRegistry) {
	t := New()
	types.Register(t)
	actions.Register(ActionStart, Start)
	actions.Register(ActionStop, Stop)
	actions.Register(ActionPause, Pause)
	actions.Register(ActionUpdate, widgets.UpdateAction(Name, t))
}

func (t *Type) Name() string {
	return Name
}

func (t *Type) Uses() []string {
	return []string{"LOTTIE", "THORVG_INTERNAL", "VECTOR_GRAPHIC"}
}

// Validate reads the lottie schema. The source mode is decided before the
// embedded file is touched.
func (t *Type) Validate(m *validation.Mapping, env widgets.Env) (interface{}, error) {
	var err error
	cfg := &Config{}

	widthNode, heightNode := m.Get("width"), m.Get("height")
	if widthNode != nil {
		if cfg.Width, err = validation.Size(widthNode, m.Path("width")); err != nil {
			return nil, err
		}
	}
	if heightNode != nil {
		if cfg.Height, err = validation.Size(heightNode, m.Path("height")); err != nil {
			return nil, err
		}
	}

	srcNode, fileNode := m.Get("src"), m.Get("file")
	switch {
	case srcNode != nil && fileNode != nil:
		return nil, validation.Newf(srcNode, m.Path("src"),
			"cannot specify both 'src' and 'file'. Use 'src' for filesystem path or 'file' for embedded")
	case srcNode == nil && fileNode == nil:
		return nil, validation.Newf(m.Node(), m.Path("src"),
			"must specify either 'src' (filesystem path) or 'file' (embedded in firmware)")
	case srcNode != nil:
		if cfg.Src, err = ValidatePath(srcNode, m.Path("src")); err != nil {
			return nil, err
		}
		if widthNode == nil || heightNode == nil {
			return nil, validation.Newf(m.Node(), m.Path("src"),
				"'width' and 'height' are required when using 'src' (filesystem path). Cannot auto-detect dimensions at compile time")
		}
	default:
		if cfg.Embedded, err = ResolveFile(fileNode, m.Path("file"), env.BaseDir, env.ConfineFiles); err != nil {
			return nil, err
		}
		if widthNode != nil || heightNode != nil {
			env.Log.Warn().
				Str("file", cfg.Embedded.Path).
				Int("width", cfg.Embedded.Width).
				Int("height", cfg.Embedded.Height).
				Msg("Ignoring width/height for embedded Lottie file, using the size declared in the JSON")
		}
		cfg.Width, cfg.Height = cfg.Embedded.Width, cfg.Embedded.Height
	}

	if cfg.Loop, err = m.OptionalBool("loop", true); err != nil {
		return nil, err
	}
	if cfg.AutoStart, err = m.OptionalBool("auto_start", true); err != nil {
		return nil, err
	}
	if node := m.Get("raw_data_id"); node != nil {
		if cfg.RawDataID, err = validation.ID(node, m.Path("raw_data_id")); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ExplicitSymbols returns a valid raw_data_id so it is reserved before
// generated PROGMEM names are handed out.
func (t *Type) ExplicitSymbols(m *validation.Mapping) []string {
	node := m.Get("raw_data_id")
	if node == nil {
		return nil
	}
	id, err := validation.ID(node, m.Path("raw_data_id"))
	if err != nil {
		return nil
	}
	return []string{id}
}

// BufferName is the global holding a widget's render buffer.
func BufferName(w *widgets.Widget) string {
	return "lottie_buf_" + codegen.Sanitize(w.ID)
}

func (t *Type) ToCode(sess *codegen.Session, w *widgets.Widget, cfg interface{}) error {
	c, err := asConfig(cfg)
	if err != nil {
		return err
	}
	sess.AddUse(t.Uses()...)
	if sess.Once(loaderOnceKey) {
		sess.AddGlobal(loaderSource)
	}

	buf := BufferName(w)
	sess.AddGlobal(fmt.Sprintf("static uint8_t *%s = nullptr;", buf))
	sess.AddSetup(codegen.Call("lv_obj_set_size", w.Obj(), c.Width, c.Height))

	var data, size, path interface{} = nil, 0, nil
	if c.Embedded != nil {
		id := c.RawDataID
		if id == "" {
			id = sess.GenerateID("lottie_data")
		} else if err := sess.Claim(id); err != nil {
			return fmt.Errorf("raw_data_id: %w", err)
		}
		payload := make([]byte, len(c.Embedded.Data)+1)
		copy(payload, c.Embedded.Data)
		sess.AddProgmem(id, payload)
		sess.AddInput(c.Embedded.Path, c.Embedded.Data)
		// the terminator is not part of the document
		data, size = codegen.Literal(id), len(c.Embedded.Data)
	} else {
		path = codegen.CString(c.Src)
	}

	sess.AddSetup(fmt.Sprintf("%s = %s;", buf, codegen.Expr("lottie_load_async",
		w.Obj(), data, size, path, nil, c.Width, c.Height, c.Loop, c.AutoStart)))
	return nil
}

// Loads describes the load the generated setup code will schedule.
func (t *Type) Loads(w *widgets.Widget, cfg interface{}) []handoff.Request {
	c, err := asConfig(cfg)
	if err != nil {
		return nil
	}
	return []handoff.Request{{
		WidgetID: w.ID,
		Source:   c.Source(),
		Width:    c.Width,
		Height:   c.Height,
	}}
}

// Preview renders the animation's bounding box as a PNG.
func (t *Type) Preview(out io.Writer, cfg interface{}) error {
	c, err := asConfig(cfg)
	if err != nil {
		return err
	}
	return preview.RenderLottieFrame(out, preview.Frame{
		Width:    c.Width,
		Height:   c.Height,
		Embedded: c.Embedded != nil,
	})
}

func asConfig(cfg interface{}) (*Config, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("lottie: unexpected config type %T", cfg)
	}
	return c, nil
}
