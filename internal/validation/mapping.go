package validation

import (
	"gopkg.in/yaml.v3"
)

// Mapping gives keyed access to a YAML mapping node and tracks which keys
// a schema consumed, so leftovers can be rejected.
type Mapping struct {
	path   string
	node   *yaml.Node
	keys   []*yaml.Node
	values map[string]*yaml.Node
	used   map[string]bool
}

// NewMapping wraps node, which must be a mapping. A null node is treated as
// an empty mapping so `arclabel:` with no body reports missing fields
// instead of a type error.
func NewMapping(node *yaml.Node, path string) (*Mapping, error) {
	node = Resolve(node)
	m := &Mapping{
		path:   path,
		node:   node,
		values: make(map[string]*yaml.Node),
		used:   make(map[string]bool),
	}
	if node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return m, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, Newf(node, path, "expected a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if _, dup := m.values[key.Value]; dup {
			return nil, Newf(key, Join(path, key.Value), "duplicate key")
		}
		m.keys = append(m.keys, key)
		m.values[key.Value] = value
	}
	return m, nil
}

// Path returns the dotted path of key inside this mapping.
func (m *Mapping) Path(key string) string {
	return Join(m.path, key)
}

// Node returns the underlying YAML node, which may be nil.
func (m *Mapping) Node() *yaml.Node {
	return m.node
}

// Has reports whether key is present, without consuming it.
func (m *Mapping) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get consumes key and returns its value node, or nil when absent.
func (m *Mapping) Get(key string) *yaml.Node {
	v, ok := m.values[key]
	if !ok {
		return nil
	}
	m.used[key] = true
	return v
}

// Required consumes key and fails when it is absent.
func (m *Mapping) Required(key string) (*yaml.Node, error) {
	v := m.Get(key)
	if v == nil {
		return nil, Newf(m.node, m.Path(key), "required key is missing")
	}
	return v, nil
}

// CheckUnknown fails on the first key no schema consumed.
func (m *Mapping) CheckUnknown() error {
	for _, key := range m.keys {
		if !m.used[key.Value] {
			return Newf(key, m.Path(key.Value), "unknown key")
		}
	}
	return nil
}

// OptionalInt reads key with fn, returning def when the key is absent.
func (m *Mapping) OptionalInt(key string, def int, fn func(*yaml.Node, string) (int, error)) (int, error) {
	node := m.Get(key)
	if node == nil {
		return def, nil
	}
	return fn(node, m.Path(key))
}

// OptionalBool reads a boolean key, returning def when absent.
func (m *Mapping) OptionalBool(key string, def bool) (bool, error) {
	node := m.Get(key)
	if node == nil {
		return def, nil
	}
	return Boolean(node, m.Path(key))
}
