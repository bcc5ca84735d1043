package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parse(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	require.Len(t, doc.Content, 1)
	return doc.Content[0]
}

func TestPixels(t *testing.T) {
	tests := []struct {
		src     string
		want    int
		wantErr string
	}{
		{"100", 100, ""},
		{"0", 0, ""},
		{"42px", 42, ""},
		{"'42 px'", 42, ""},
		{"-1", 0, "at least 0"},
		{"-3px", 0, "at least 0"},
		{"12.5", 0, "pixel value"},
		{"wide", 0, "pixel value"},
		{"'100'", 0, "pixel value"},
		{"[1, 2]", 0, "scalar"},
		{"~", 0, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Pixels(parse(t, tt.src), "radius")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Contains(t, err.Error(), "radius")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSize_RejectsZero(t *testing.T) {
	_, err := Size(parse(t, "0"), "width")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than 0")

	v, err := Size(parse(t, "200"), "width")
	require.NoError(t, err)
	assert.Equal(t, 200, v)
}

func TestAngleDegrees(t *testing.T) {
	tests := []struct {
		src     string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"360", 360, false},
		{"90.7", 90, false},
		{"-1", 0, true},
		{"361", 0, true},
		{"north", 0, true},
		{".nan", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := AngleDegrees(parse(t, tt.src), "start_angle")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolean(t *testing.T) {
	for _, src := range []string{"true", "yes", "On", "enable"} {
		v, err := Boolean(parse(t, src), "loop")
		require.NoError(t, err, src)
		assert.True(t, v, src)
	}
	for _, src := range []string{"false", "no", "OFF", "disable"} {
		v, err := Boolean(parse(t, src), "loop")
		require.NoError(t, err, src)
		assert.False(t, v, src)
	}
	_, err := Boolean(parse(t, "maybe"), "loop")
	assert.Error(t, err)
}

func TestID(t *testing.T) {
	v, err := ID(parse(t, "my_anim2"), "id")
	require.NoError(t, err)
	assert.Equal(t, "my_anim2", v)

	for _, bad := range []string{"2fast", "has-dash", "'with space'"} {
		_, err := ID(parse(t, bad), "id")
		assert.Error(t, err, bad)
	}
}

func TestMapping(t *testing.T) {
	node := parse(t, "text: hi\nradius: 10\nextra: 1\n")
	m, err := NewMapping(node, "lvgl.widgets[0].arclabel")
	require.NoError(t, err)

	assert.True(t, m.Has("text"))
	assert.False(t, m.Has("missing"))

	text, err := m.Required("text")
	require.NoError(t, err)
	assert.Equal(t, "hi", text.Value)

	radius, err := m.OptionalInt("radius", 100, Pixels)
	require.NoError(t, err)
	assert.Equal(t, 10, radius)

	def, err := m.OptionalInt("start_angle", 0, AngleDegrees)
	require.NoError(t, err)
	assert.Equal(t, 0, def)

	err = m.CheckUnknown()
	require.Error(t, err)
	var inv *Invalid
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "lvgl.widgets[0].arclabel.extra", inv.Path)
	assert.Equal(t, 3, inv.Line)
}

func TestMapping_NullBodyIsEmpty(t *testing.T) {
	m, err := NewMapping(parse(t, "~"), "arclabel")
	require.NoError(t, err)

	_, err = m.Required("text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arclabel.text: required key is missing")
}

func TestMapping_RejectsDuplicatesAndScalars(t *testing.T) {
	_, err := NewMapping(parse(t, "a: 1\na: 2\n"), "w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")

	_, err = NewMapping(parse(t, "just text"), "w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a mapping")
}

func TestErrors_AddFlattens(t *testing.T) {
	var errs Errors
	errs.Add(nil)
	errs.Add(Newf(nil, "a", "first"))
	errs.Add(Errors{Newf(nil, "b", "second"), Newf(nil, "c", "third")})
	errs.Add(fmt.Errorf("wrapped: %w", Newf(nil, "d", "fourth")))
	errs.Add(errors.New("plain"))

	require.Len(t, errs, 5)
	assert.Equal(t, "d", errs[3].Path)
	assert.Equal(t, "plain", errs[4].Reason)
	assert.Contains(t, errs.Error(), "5 configuration errors")
	assert.Error(t, errs.Err())

	var empty Errors
	assert.NoError(t, empty.Err())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "lvgl.widgets[2].lottie.src", Join("lvgl", "widgets", 2, "lottie", "src"))
	assert.Equal(t, "id", Join("", "id"))
}
