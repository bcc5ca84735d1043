package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "GENERATION_STARTED",
			expected: []string{"GENERATION_STARTED"},
		},
		{
			name:     "varied spacing",
			input:    "GENERATION_STARTED,  HISTORY_PRUNED , WIDGET_GENERATED",
			expected: []string{"GENERATION_STARTED", "HISTORY_PRUNED", "WIDGET_GENERATED"},
		},
		{
			name:     "empty entries dropped",
			input:    ",a,,b,",
			expected: []string{"a", "b"},
		},
		{
			name:     "only separators and whitespace",
			input:    " , ,  ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestTimer_Stop(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	timer := NewTimer("build", log)
	time.Sleep(time.Millisecond)
	d := timer.Stop()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Contains(t, buf.String(), `"operation":"build"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}
