package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pixelsPattern = regexp.MustCompile(`^(-?\d+)\s*px$`)
)

// Resolve follows YAML aliases.
func Resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func scalar(node *yaml.Node, path string) (*yaml.Node, error) {
	node = Resolve(node)
	if node == nil {
		return nil, Newf(nil, path, "required value is missing")
	}
	if node.Kind != yaml.ScalarNode {
		return nil, Newf(node, path, "expected a scalar value")
	}
	if node.ShortTag() == "!!null" {
		return nil, Newf(node, path, "value must not be null")
	}
	return node, nil
}

// String accepts any non-null scalar.
func String(node *yaml.Node, path string) (string, error) {
	n, err := scalar(node, path)
	if err != nil {
		return "", err
	}
	return n.Value, nil
}

// Text accepts the text shown by a label-like widget.
func Text(node *yaml.Node, path string) (string, error) {
	return String(node, path)
}

// Pixels accepts a non-negative integer, optionally suffixed with "px".
func Pixels(node *yaml.Node, path string) (int, error) {
	n, err := scalar(node, path)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(n.Value)
	if m := pixelsPattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	} else if n.ShortTag() != "!!int" {
		return 0, Newf(n, path, "expected a pixel value, got %q", n.Value)
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, Newf(n, path, "expected a pixel value, got %q", n.Value)
	}
	if v < 0 {
		return 0, Newf(n, path, "must be at least 0, got %d", v)
	}
	return v, nil
}

// Size accepts a strictly positive pixel value.
func Size(node *yaml.Node, path string) (int, error) {
	v, err := Pixels(node, path)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, Newf(Resolve(node), path, "size must be greater than 0")
	}
	return v, nil
}

// AngleDegrees accepts a number in [0, 360]. Fractions are truncated.
func AngleDegrees(node *yaml.Node, path string) (int, error) {
	n, err := scalar(node, path)
	if err != nil {
		return 0, err
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
	default:
		return 0, Newf(n, path, "expected an angle in degrees, got %q", n.Value)
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, Newf(n, path, "expected an angle in degrees, got %q", n.Value)
	}
	if f < 0 || f > 360 {
		return 0, Newf(n, path, "angle must be between 0 and 360 degrees, got %s", n.Value)
	}
	return int(f), nil
}

// Boolean accepts YAML booleans and the usual on/off spellings.
func Boolean(node *yaml.Node, path string) (bool, error) {
	n, err := scalar(node, path)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(n.Value)) {
	case "true", "yes", "on", "enable":
		return true, nil
	case "false", "no", "off", "disable":
		return false, nil
	}
	return false, Newf(n, path, "expected a boolean, got %q", n.Value)
}

// ID accepts a C identifier usable as a generated symbol name.
func ID(node *yaml.Node, path string) (string, error) {
	v, err := String(node, path)
	if err != nil {
		return "", err
	}
	if !identPattern.MatchString(v) {
		return "", Newf(Resolve(node), path, "%q is not a valid id: use letters, digits and underscores, not starting with a digit", v)
	}
	return v, nil
}

// IsIdentifier reports whether s is a valid generated symbol name.
func IsIdentifier(s string) bool {
	return identPattern.MatchString(s)
}
