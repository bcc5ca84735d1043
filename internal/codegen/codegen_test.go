package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Once(t *testing.T) {
	s := NewSession()

	assert.True(t, s.Once("lottie_loader"))
	assert.False(t, s.Once("lottie_loader"))
	assert.False(t, s.Once("lottie_loader"))
	assert.True(t, s.Once("other"))

	// a fresh session starts over
	assert.True(t, NewSession().Once("lottie_loader"))
}

func TestSession_IDs(t *testing.T) {
	s := NewSession()

	require.NoError(t, s.Reserve("lottie_1"))
	assert.Error(t, s.Reserve("lottie_1"))

	assert.Equal(t, "lottie_0", s.GenerateID("lottie"))
	assert.Equal(t, "lottie_2", s.GenerateID("lottie"), "skips reserved ids")
	assert.Equal(t, "arclabel_0", s.GenerateID("arclabel"))
}

func TestSession_DeclareAndLookup(t *testing.T) {
	s := NewSession()

	require.NoError(t, s.Declare(Symbol{ID: "title", Kind: "arclabel", Value: 42}))
	require.NoError(t, s.Declare(Symbol{ID: "anim", Kind: "lottie"}))
	assert.Error(t, s.Declare(Symbol{ID: "title", Kind: "lottie"}))

	sym, ok := s.Lookup("title")
	require.True(t, ok)
	assert.Equal(t, "arclabel", sym.Kind)
	assert.Equal(t, 42, sym.Value)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)

	syms := s.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "title", syms[0].ID)
	assert.Equal(t, "anim", syms[1].ID)

	assert.Error(t, s.Reserve("anim"), "declared ids are reserved")
}

func TestSession_Claim(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Reserve("data"))
	assert.NotEqual(t, "data", s.GenerateID("data"))

	require.NoError(t, s.Claim("data"), "a reserved id can still be claimed once")
	assert.ErrorContains(t, s.Claim("data"), `id "data" is already in use`)
	assert.Error(t, s.Declare(Symbol{ID: "data", Kind: "lottie"}))

	require.NoError(t, s.Declare(Symbol{ID: "spin", Kind: "lottie"}))
	assert.Error(t, s.Claim("spin"))
}

func TestSession_GlobalsAreDeduplicated(t *testing.T) {
	s := NewSession()
	s.AddGlobal("static int a;")
	s.AddGlobal("static int b;")
	s.AddGlobal("static int a;")

	assert.Equal(t, []string{"static int a;", "static int b;"}, s.Globals())
}

func TestCall(t *testing.T) {
	assert.Equal(t, "lv_obj_set_size(obj, 250, 250);", Call("lv_obj_set_size", Literal("obj"), 250, 250))
	assert.Equal(t, "lv_anim_delete(obj, NULL);", Call("lv_anim_delete", "obj", Literal("NULL")))
	assert.Equal(t, "f(true, nullptr)", Expr("f", true, nil))
	assert.Equal(t, "g()", Expr("g"))
}

func TestCString(t *testing.T) {
	tests := map[string]string{
		"hello":      `"hello"`,
		`say "hi"`:   `"say \"hi\""`,
		`back\slash`: `"back\\slash"`,
		"two\nlines": `"two\nlines"`,
		"tab\there":  `"tab\there"`,
		"what??!":    `"what\?\?!"`,
		"bell\x07":   `"bell\007"`,
		"héllo":      `"héllo"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, CString(in), in)
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "page_obj_anim", Sanitize("page->obj.anim"))
}

func TestHexBlock(t *testing.T) {
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i)
	}
	out := hexBlock(data)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  0x00, 0x01"))
	assert.True(t, strings.HasSuffix(lines[0], "0x0F,"))
	assert.Equal(t, "  0x10, 0x11", lines[1])
	assert.Equal(t, "", hexBlock(nil))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb", "  "))
}

func TestRender(t *testing.T) {
	s := NewSession()
	s.AddUse("LOTTIE", "ARCLABEL")
	s.Require("label")
	s.AddProgmem("raw_0", []byte("{}\x00"))
	s.AddGlobal("static lv_obj_t *title = nullptr;")
	s.AddSetup("title = lv_arclabel_create(lv_screen_active());", "if (x) {\n  y();\n}")
	fn := s.AddAction("intro", []string{"lv_anim_start(lv_lottie_get_anim(anim));"})
	assert.Equal(t, "lvgl_action_intro", fn)

	files, err := s.Render()
	require.NoError(t, err)
	require.Len(t, files, 2)

	header := string(files[0].Content)
	assert.Equal(t, HeaderFile, files[0].Name)
	assert.Contains(t, header, "#pragma once")
	assert.Contains(t, header, "#define LV_USE_ARCLABEL 1")
	assert.Contains(t, header, "#define LV_USE_LOTTIE 1")
	assert.Less(t, strings.Index(header, "LV_USE_ARCLABEL"), strings.Index(header, "LV_USE_LOTTIE"))
	assert.Contains(t, header, "void lvgl_action_intro();")

	src := string(files[1].Content)
	assert.Equal(t, SourceFile, files[1].Name)
	assert.Contains(t, src, "// Components: label")
	assert.Contains(t, src, "static const uint8_t raw_0[3] PROGMEM = {\n  0x7B, 0x7D, 0x00\n};")
	assert.Contains(t, src, "static lv_obj_t *title = nullptr;")
	assert.Contains(t, src, "void lvgl_widgets_setup() {\n  title = lv_arclabel_create(lv_screen_active());\n  if (x) {\n    y();\n  }\n}")
	assert.Contains(t, src, "void lvgl_action_intro() {\n  lv_anim_start(lv_lottie_get_anim(anim));\n}")
}
