// Package project loads the YAML document describing a firmware's widgets
// and action scripts.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aristath/lvglgen/internal/validation"
)

// WidgetEntry is one `- kind: {...}` item under lvgl.widgets.
type WidgetEntry struct {
	Kind  string
	Body  *yaml.Node
	Path  string // e.g. lvgl.widgets[1].lottie
	Index int
}

// ActionStep is one `- action.name: value` item of a script.
type ActionStep struct {
	Name  string
	Value *yaml.Node
	Path  string
}

// Script is a named list of actions, emitted as one C++ function.
type Script struct {
	Name  string
	Steps []ActionStep
	Path  string
}

// Document is a parsed configuration file.
type Document struct {
	Path     string // empty when parsed from memory
	Dir      string // base for relative file references
	Confined bool   // file references must stay inside Dir (untrusted input)
	Raw      []byte
	Widgets  []WidgetEntry
	Scripts  []Script
}

// Load reads and parses the configuration at path.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	doc, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	doc.Path = abs
	return doc, nil
}

// Parse decodes a configuration held in memory. dir is used to resolve
// relative `file:` references.
func Parse(data []byte, dir string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	doc := &Document{Dir: dir, Raw: data}
	if len(root.Content) == 0 {
		return nil, validation.Newf(nil, "", "configuration is empty")
	}

	top, err := validation.NewMapping(root.Content[0], "")
	if err != nil {
		return nil, err
	}

	lvglNode, err := top.Required("lvgl")
	if err != nil {
		return nil, err
	}
	lvgl, err := validation.NewMapping(lvglNode, "lvgl")
	if err != nil {
		return nil, err
	}
	if widgets := lvgl.Get("widgets"); widgets != nil {
		if doc.Widgets, err = parseWidgets(widgets, lvgl.Path("widgets")); err != nil {
			return nil, err
		}
	}
	if err := lvgl.CheckUnknown(); err != nil {
		return nil, err
	}

	if actions := top.Get("actions"); actions != nil {
		if doc.Scripts, err = parseScripts(actions, "actions"); err != nil {
			return nil, err
		}
	}
	if err := top.CheckUnknown(); err != nil {
		return nil, err
	}

	return doc, nil
}

func parseWidgets(node *yaml.Node, path string) ([]WidgetEntry, error) {
	node = validation.Resolve(node)
	if node.Kind != yaml.SequenceNode {
		return nil, validation.Newf(node, path, "expected a list of widgets")
	}

	entries := make([]WidgetEntry, 0, len(node.Content))
	for i, item := range node.Content {
		kind, body, err := singleKey(item, validation.Join(path, i))
		if err != nil {
			return nil, err
		}
		entries = append(entries, WidgetEntry{
			Kind:  kind,
			Body:  body,
			Path:  validation.Join(path, i, kind),
			Index: i,
		})
	}
	return entries, nil
}

func parseScripts(node *yaml.Node, path string) ([]Script, error) {
	node = validation.Resolve(node)
	if node.Kind != yaml.MappingNode {
		return nil, validation.Newf(node, path, "expected a mapping of script names to action lists")
	}

	scripts := make([]Script, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		scriptPath := validation.Join(path, name)
		if !validation.IsIdentifier(name) {
			return nil, validation.Newf(node.Content[i], scriptPath, "script name must be a valid identifier")
		}

		list := validation.Resolve(node.Content[i+1])
		if list.Kind != yaml.SequenceNode {
			return nil, validation.Newf(list, scriptPath, "expected a list of actions")
		}

		script := Script{Name: name, Path: scriptPath}
		for j, item := range list.Content {
			action, value, err := singleKey(item, validation.Join(scriptPath, j))
			if err != nil {
				return nil, err
			}
			script.Steps = append(script.Steps, ActionStep{
				Name:  action,
				Value: value,
				Path:  validation.Join(scriptPath, j, action),
			})
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// singleKey unpacks `- key: value` list items.
func singleKey(node *yaml.Node, path string) (string, *yaml.Node, error) {
	node = validation.Resolve(node)
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, validation.Newf(node, path, "expected a single-key mapping")
	}
	return node.Content[0].Value, node.Content[1], nil
}
