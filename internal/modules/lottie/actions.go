package lottie

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aristath/lvglgen/internal/codegen"
	"github.com/aristath/lvglgen/internal/validation"
	"github.com/aristath/lvglgen/internal/widgets"
)

// Playback actions.
const (
	ActionStart  = "lvgl.lottie.start"
	ActionStop   = "lvgl.lottie.stop"
	ActionPause  = "lvgl.lottie.pause"
	ActionUpdate = "lvgl.lottie.update"
)

// playback builds an action that takes only a target id and emits one
// statement against the widget's animation.
func playback(emit func(obj codegen.Literal) string) widgets.ActionFunc {
	return func(sess *codegen.Session, value *yaml.Node, path string, env widgets.Env) ([]string, error) {
		inst, m, err := widgets.ResolveTarget(sess, value, path, Name)
		if err != nil {
			return nil, err
		}
		if m != nil {
			if err := m.CheckUnknown(); err != nil {
				return nil, err
			}
		}
		return []string{emit(inst.Widget.Obj())}, nil
	}
}

// Start starts or resumes the animation.
var Start = playback(func(obj codegen.Literal) string {
	return codegen.Call("lv_anim_start", codegen.Expr("lv_lottie_get_anim", obj))
})

// Stop deletes the animation timer, which stops and resets it.
var Stop = playback(func(obj codegen.Literal) string {
	return codegen.Call("lv_anim_delete", obj, codegen.Literal("NULL"))
})

// Pause emits the same call as Stop: the timer is deleted, not suspended.
var Pause = playback(func(obj codegen.Literal) string {
	return codegen.Call("lv_anim_delete", obj, codegen.Literal("NULL"))
})

// Update is a validated lvgl.lottie.update body.
type Update struct {
	Src  string
	Loop *bool
}

// ValidateUpdate accepts a new runtime src and/or loop flag.
func (t *Type) ValidateUpdate(m *validation.Mapping, env widgets.Env) (interface{}, error) {
	u := &Update{}
	if node := m.Get("src"); node != nil {
		src, err := ValidatePath(node, m.Path("src"))
		if err != nil {
			return nil, err
		}
		u.Src = src
	}
	if node := m.Get("loop"); node != nil {
		loop, err := validation.Boolean(node, m.Path("loop"))
		if err != nil {
			return nil, err
		}
		u.Loop = &loop
	}
	return u, nil
}

// ToCodeUpdate applies the loop flag to the running animation and, for a
// new src, schedules a reload through the loader task so the decode never
// runs on the caller's stack. The existing render buffer is reused.
func (t *Type) ToCodeUpdate(sess *codegen.Session, w *widgets.Widget, update interface{}) ([]string, error) {
	u, ok := update.(*Update)
	if !ok {
		return nil, fmt.Errorf("lottie: unexpected update type %T", update)
	}
	inst, err := widgets.Lookup(sess, w.ID, Name)
	if err != nil {
		return nil, err
	}
	c, err := asConfig(inst.Config)
	if err != nil {
		return nil, err
	}

	var stmts []string
	loop := c.Loop
	if u.Loop != nil {
		loop = *u.Loop
		repeat := codegen.Literal("LV_ANIM_REPEAT_INFINITE")
		if !loop {
			repeat = "1"
		}
		stmts = append(stmts, fmt.Sprintf("{ lv_anim_t *a = %s; if (a != nullptr) %s }",
			codegen.Expr("lv_lottie_get_anim", w.Obj()),
			codegen.Call("lv_anim_set_repeat_count", codegen.Literal("a"), repeat)))
	}
	if u.Src != "" {
		buf := BufferName(w)
		stmts = append(stmts, fmt.Sprintf("{ uint8_t *buf = %s; if (buf != nullptr) %s = buf; }",
			codegen.Expr("lottie_load_async", w.Obj(), nil, 0, codegen.CString(u.Src),
				codegen.Literal(buf), c.Width, c.Height, loop, c.AutoStart),
			buf))
	}
	return stmts, nil
}
