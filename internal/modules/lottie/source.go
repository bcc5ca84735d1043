package lottie

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aristath/lvglgen/internal/project"
	"github.com/aristath/lvglgen/internal/validation"
)

// ValidatePath checks a runtime filesystem path such as /sdcard/anim.json.
func ValidatePath(node *yaml.Node, path string) (string, error) {
	value, err := validation.String(node, path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(value, "/") {
		return "", validation.Newf(validation.Resolve(node), path,
			"Lottie src must be an absolute file path starting with '/', got: %q. Example: '/sdcard/animation.json' or '/littlefs/animation.json'", value)
	}
	if !strings.HasSuffix(value, ".json") {
		return "", validation.Newf(validation.Resolve(node), path,
			"Lottie src must be a JSON file (ending with .json), got: %q", value)
	}
	return value, nil
}

// Embedded is a Lottie file read at generation time.
type Embedded struct {
	Path   string
	Data   []byte
	Width  int
	Height int
}

type header struct {
	W *float64 `json:"w"`
	H *float64 `json:"h"`
}

// ResolveFile reads a local Lottie file relative to baseDir and extracts its
// dimensions from the top-level "w" and "h" fields. When confine is set the
// file must be a relative path that stays inside baseDir; the check happens
// before the filesystem is consulted.
func ResolveFile(node *yaml.Node, path, baseDir string, confine bool) (*Embedded, error) {
	value, err := validation.String(node, path)
	if err != nil {
		return nil, err
	}
	n := validation.Resolve(node)

	file := value
	switch {
	case confine:
		if file, err = project.Within(baseDir, value); err != nil {
			return nil, validation.Newf(n, path,
				"Lottie file must be a relative path inside the configuration directory, got: %q", value)
		}
	case !filepath.IsAbs(file):
		file = filepath.Join(baseDir, file)
	}
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return nil, validation.Newf(n, path, "Lottie file not found: %s", file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, validation.Newf(n, path, "Error reading Lottie file %s: %v", file, err)
	}

	w, h, err := Dimensions(data)
	if err != nil {
		return nil, validation.Newf(n, path, "%v: %s", err, file)
	}
	return &Embedded{Path: file, Data: data, Width: w, Height: h}, nil
}

// Dimensions parses a Lottie document and returns its declared size.
// Fractional sizes are truncated.
func Dimensions(data []byte) (width, height int, err error) {
	var hdr header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return 0, 0, fmt.Errorf("invalid JSON in Lottie file (%v)", err)
	}
	if hdr.W == nil || hdr.H == nil {
		return 0, 0, errors.New("Lottie JSON file missing 'w' or 'h' dimensions")
	}
	width, height = int(*hdr.W), int(*hdr.H)
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("Lottie JSON file declares an empty canvas %dx%d", width, height)
	}
	return width, height, nil
}
