package native

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
)

// Format renders e on one line, with calls written by overload ID:
//
//	less_int_int(size_string(this.name), 10)
func Format(e Expr) string {
	var sb strings.Builder
	format(&sb, e)
	return sb.String()
}

func format(sb *strings.Builder, e Expr) {
	switch x := e.(type) {
	case *Const:
		sb.WriteString(x.Value.String())
	case *Var:
		sb.WriteString(x.Name)
	case *Select:
		format(sb, x.Operand)
		sb.WriteByte('.')
		sb.WriteString(x.Field)
	case *Call:
		sb.WriteString(x.Overload.ID)
		sb.WriteByte('(')
		for i, a := range x.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, a)
		}
		sb.WriteByte(')')
	case *MakeList:
		sb.WriteByte('[')
		for i, a := range x.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, a)
		}
		sb.WriteByte(']')
	case *MakeMap:
		sb.WriteByte('{')
		for i, en := range x.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, en.Key)
			sb.WriteString(": ")
			format(sb, en.Value)
		}
		sb.WriteByte('}')
	case *Loop:
		fmt.Fprintf(sb, "%s(%s in ", x.Kind, binders(x))
		format(sb, x.Source)
		sb.WriteString("; ")
		format(sb, x.Body)
		sb.WriteByte(')')
	}
}

func binders(l *Loop) string {
	if l.Binder2 == "" {
		return l.Binder
	}
	return "(" + l.Binder + ", " + l.Binder2 + ")"
}

// Tree renders e as an indented tree, one node per line with its static
// type.
func Tree(e Expr) string {
	type item struct {
		e     Expr
		level int
	}

	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedLight)
	level := 0
	stack := []item{{e: e}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for ; level < it.level; level++ {
			lw.Indent()
		}
		for ; level > it.level; level-- {
			lw.UnIndent()
		}
		lw.AppendItem(label(it.e))

		kids := Children(it.e)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{e: kids[i], level: it.level + 1})
		}
	}
	return lw.Render()
}

func label(e Expr) string {
	switch x := e.(type) {
	case *Const:
		return fmt.Sprintf("%s : %s", x.Value, x.Typ)
	case *Var:
		if x.Local {
			return fmt.Sprintf("%s (local) : %s", x.Name, x.Typ)
		}
		return fmt.Sprintf("%s : %s", x.Name, x.Typ)
	case *Call:
		return fmt.Sprintf("%s : %s", x.Overload.ID, x.Typ)
	case *Select:
		return fmt.Sprintf(".%s : %s", x.Field, x.Typ)
	case *MakeList:
		return fmt.Sprintf("list : %s", x.Typ)
	case *MakeMap:
		return fmt.Sprintf("map : %s", x.Typ)
	case *Loop:
		return fmt.Sprintf("%s %s : %s", x.Kind, binders(x), x.Typ)
	}
	return fmt.Sprintf("%T", e)
}
