package codegen

import (
	"fmt"
	"strconv"
	"strings"
)

// Literal is emitted verbatim, e.g. NULL or an object name.
type Literal string

// Expr renders fn(args...) without a trailing semicolon.
func Expr(fn string, args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = arg(a)
	}
	return fn + "(" + strings.Join(parts, ", ") + ")"
}

// Call renders fn(args...); as a statement.
func Call(fn string, args ...interface{}) string {
	return Expr(fn, args...) + ";"
}

func arg(a interface{}) string {
	switch v := a.(type) {
	case Literal:
		return string(v)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case nil:
		return "nullptr"
	default:
		return fmt.Sprint(v)
	}
}

// CString quotes s as a C string literal.
func CString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '?':
			// avoid trigraphs
			b.WriteString(`\?`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Sanitize turns an arbitrary expression into an identifier fragment.
func Sanitize(expr string) string {
	r := strings.NewReplacer("->", "_", ".", "_", "[", "_", "]", "_", " ", "")
	return r.Replace(expr)
}
