// Package debug has helpers for human readable dumps of internal structures.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented lines describing tree like structure.
type TreeWriter struct {
	sb     strings.Builder
	indent string
}

// NewTreeWriter returns writer indenting every level with two spaces.
func NewTreeWriter() *TreeWriter {
	return &TreeWriter{indent: "  "}
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

func (tw *TreeWriter) pad(depth int) {
	tw.sb.WriteString(strings.Repeat(tw.indent, max(depth, 0)))
}

// Line writes formatted line at depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// TextBlock writes "label: value" line at depth. Value is quoted so
// whitespace and control characters stay visible, empty value is left as is.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.sb.WriteString(label)
	tw.sb.WriteString(": ")
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.sb.WriteString(value)
	tw.sb.WriteByte('\n')
}
