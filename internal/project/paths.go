package project

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned for references that leave their base directory.
var ErrOutsideDir = errors.New("path leaves the configuration directory")

// Within resolves the relative name against base and returns the joined
// path. It fails with ErrOutsideDir when name is absolute or when the
// result, lexically or after following symlinks, is not inside base.
// A name that does not exist yet is checked lexically only.
func Within(base, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", ErrOutsideDir
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(baseAbs, name)
	if !inside(baseAbs, joined) {
		return "", ErrOutsideDir
	}

	realBase, err := filepath.EvalSymlinks(baseAbs)
	if err != nil {
		return joined, nil
	}
	realPath, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return joined, nil
	}
	if !inside(realBase, realPath) {
		return "", ErrOutsideDir
	}
	return joined, nil
}

func inside(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
