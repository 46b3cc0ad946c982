package compiler

import (
	"strings"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
)

// Message is a compiled failure message template. Format holds the text
// with every key that folded to a constant already substituted; the
// remaining keys are written {key} exactly as in the template and listed
// in Args. Literal braces are escaped as {{ and }}.
type Message struct {
	Format string
	Args   []MessageArg
}

// MessageArg is a key of a message template evaluated at runtime.
type MessageArg struct {
	Key     string
	Program *Program
}

// Constant reports whether the message needs no runtime values.
func (m *Message) Constant() bool {
	return len(m.Args) == 0
}

// Expand substitutes the runtime values of the keys, given as text, and
// unescapes braces. Keys missing from values stay as written.
func (m *Message) Expand(values map[string]string) string {
	var sb strings.Builder
	s := m.Format
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			sb.WriteByte('{')
			i += 2
		case strings.HasPrefix(s[i:], "}}"):
			sb.WriteByte('}')
			i += 2
		case s[i] == '{':
			end, ok := scanKey(s, i)
			if !ok {
				sb.WriteString(s[i:])
				return sb.String()
			}
			key := s[i+1 : end]
			if v, ok := values[key]; ok {
				sb.WriteString(v)
			} else {
				sb.WriteString(s[i : end+1])
			}
			i = end + 1
		default:
			sb.WriteByte(s[i])
			i++
		}
	}
	return sb.String()
}

func (m *Message) String() string {
	return m.Expand(nil)
}

// scanKey returns the index of the brace closing the key opened at
// s[start], skipping braces nested in the key or quoted in it.
func scanKey(s string, start int) (int, bool) {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

// CompileMessage compiles a message template in env. Each {expr} key is
// a constraint expression whose value is converted to a string.
func (c *Compiler) CompileMessage(template string, env *Env) (*Message, error) {
	var sb strings.Builder
	m := &Message{}
	seen := map[string]bool{}

	for i := 0; i < len(template); {
		switch {
		case strings.HasPrefix(template[i:], "{{"), strings.HasPrefix(template[i:], "}}"):
			sb.WriteString(template[i : i+2])
			i += 2

		case template[i] == '}':
			return nil, &Error{Kind: cove.ErrParse, Expr: template, Msg: "unmatched } in message"}

		case template[i] == '{':
			end, ok := scanKey(template, i)
			if !ok {
				return nil, &Error{Kind: cove.ErrParse, Expr: template, Msg: "unterminated { in message"}
			}
			key := template[i+1 : end]
			p, err := c.Compile(strings.TrimSpace(key), env)
			if err != nil {
				return nil, err
			}
			if p.Constant() {
				sb.WriteString(escapeBraces(value.ToString(p.Value, c.rt).AsString()))
			} else {
				sb.WriteString(template[i : end+1])
				if !seen[key] {
					seen[key] = true
					m.Args = append(m.Args, MessageArg{Key: key, Program: p})
				}
			}
			i = end + 1

		default:
			sb.WriteByte(template[i])
			i++
		}
	}
	m.Format = sb.String()
	return m, nil
}
