// Package validation checks declarative widget descriptions decoded from YAML.
//
// Every failure is reported as an *Invalid naming the offending field path,
// the reason, and where in the source document the value was found.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Invalid is a configuration error tied to one field.
type Invalid struct {
	Path   string
	Reason string
	Line   int
	Column int
}

func (e *Invalid) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}
	return b.String()
}

// Newf builds an Invalid located at node. node may be nil.
func Newf(node *yaml.Node, path, format string, args ...interface{}) *Invalid {
	inv := &Invalid{
		Path:   path,
		Reason: fmt.Sprintf(format, args...),
	}
	if node != nil {
		inv.Line = node.Line
		inv.Column = node.Column
	}
	return inv
}

// Errors aggregates configuration errors from several widgets.
type Errors []*Invalid

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "no errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, inv := range e {
		msgs[i] = inv.Error()
	}
	return fmt.Sprintf("%d configuration errors:\n  %s", len(e), strings.Join(msgs, "\n  "))
}

// Add appends err, flattening nested Errors. Errors that are not
// configuration errors are kept with an empty path.
func (e *Errors) Add(err error) {
	if err == nil {
		return
	}
	var many Errors
	if errors.As(err, &many) {
		*e = append(*e, many...)
		return
	}
	var inv *Invalid
	if errors.As(err, &inv) {
		*e = append(*e, inv)
		return
	}
	*e = append(*e, &Invalid{Reason: err.Error()})
}

// Err returns nil when empty so callers can return it directly.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Join builds a dotted path, rendering integer segments as list indices.
func Join(base string, segments ...interface{}) string {
	var b strings.Builder
	b.WriteString(base)
	for _, s := range segments {
		switch v := s.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
