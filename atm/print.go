package atm

import (
	"strings"
)

// String renders the node in annotated Java-like syntax, for example
// "@Nullable List<@NonNull String>" or "@A String @B []" for an @B array of @A String.
//
// The bounds of a type variable are only printed when it is the outermost node, so
// printing never follows a cycle.
func (t *Null) String() string         { return printNode(t, true) }
func (t *Primitive) String() string    { return printNode(t, true) }
func (t *Array) String() string        { return printNode(t, true) }
func (t *Declared) String() string     { return printNode(t, true) }
func (t *TypeVar) String() string      { return printNode(t, true) }
func (t *Wildcard) String() string     { return printNode(t, true) }
func (t *Intersection) String() string { return printNode(t, true) }
func (t *Union) String() string        { return printNode(t, true) }

func printNode(n Node, outermost bool) string {
	if n == nil {
		return "<nil>"
	}
	sb := &strings.Builder{}
	writeNode(sb, n, outermost)
	return sb.String()
}

func writeQuals(sb *strings.Builder, n Node) {
	if n.Primary().Len() > 0 {
		sb.WriteString(n.Primary().String())
		sb.WriteByte(' ')
	}
}

func writeNodes(sb *strings.Builder, nodes []Node, sep string) {
	for i, node := range nodes {
		if i > 0 {
			sb.WriteString(sep)
		}
		writeNode(sb, node, false)
	}
}

func writeNode(sb *strings.Builder, n Node, outermost bool) {
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	switch t := n.(type) {
	case *Null:
		writeQuals(sb, t)
		sb.WriteString("null")
	case *Primitive:
		writeQuals(sb, t)
		sb.WriteString(t.Name)
	case *Array:
		writeNode(sb, t.Component, false)
		if t.Primary().Len() > 0 {
			sb.WriteByte(' ')
			writeQuals(sb, t)
		}
		sb.WriteString("[]")
	case *Declared:
		writeQuals(sb, t)
		sb.WriteString(t.Name)
		if len(t.TypeArgs) > 0 {
			sb.WriteByte('<')
			writeNodes(sb, t.TypeArgs, ", ")
			sb.WriteByte('>')
		}
	case *TypeVar:
		writeQuals(sb, t)
		sb.WriteString(t.Decl.Name)
		if outermost {
			sb.WriteString(" extends ")
			writeNode(sb, t.Upper, false)
			sb.WriteString(" super ")
			writeNode(sb, t.Lower, false)
		}
	case *Wildcard:
		writeQuals(sb, t)
		sb.WriteString("? extends ")
		writeNode(sb, t.Extends, false)
		sb.WriteString(" super ")
		writeNode(sb, t.Super, false)
	case *Intersection:
		writeQuals(sb, t)
		sb.WriteByte('(')
		writeNodes(sb, t.Bounds, " & ")
		sb.WriteByte(')')
	case *Union:
		writeQuals(sb, t)
		sb.WriteByte('(')
		writeNodes(sb, t.Alternatives, " | ")
		sb.WriteByte(')')
	}
}
