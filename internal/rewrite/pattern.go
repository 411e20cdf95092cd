package rewrite

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gnoswap-labs/witness/internal/egraph"
	"github.com/gnoswap-labs/witness/internal/sexpr"
)

// Pattern is an expression template whose leaves may be variables,
// written `?name`.
type Pattern struct {
	Op       string
	Var      string
	Children []*Pattern
}

// IsVar reports whether the pattern is a variable hole.
func (p *Pattern) IsVar() bool {
	return p.Var != ""
}

// String renders the pattern in the same syntax it is parsed from.
func (p *Pattern) String() string {
	return p.render(func(v string) string { return "?" + v })
}

// Vars returns the distinct variables of p in first-occurrence order.
func (p *Pattern) Vars() []string {
	var vars []string
	seen := make(map[string]bool)
	var walk func(*Pattern)
	walk = func(n *Pattern) {
		if n.IsVar() {
			if !seen[n.Var] {
				seen[n.Var] = true
				vars = append(vars, n.Var)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p)
	return vars
}

func (p *Pattern) render(hole func(string) string) string {
	var sb strings.Builder
	var write func(*Pattern)
	write = func(n *Pattern) {
		if n.IsVar() {
			sb.WriteString(hole(n.Var))
			return
		}
		if len(n.Children) == 0 {
			sb.WriteString(n.Op)
			return
		}
		sb.WriteByte('(')
		sb.WriteString(n.Op)
		for _, c := range n.Children {
			sb.WriteByte(' ')
			write(c)
		}
		sb.WriteByte(')')
	}
	write(p)
	return sb.String()
}

// Render instantiates p as text, replacing each variable bound in s with
// the text produced by show for its class.
func (p *Pattern) Render(s Subst, show func(egraph.ClassID) string) string {
	return p.render(func(v string) string {
		id, ok := s.Get(v)
		if !ok {
			return "?" + v
		}
		return show(id)
	})
}

// ParsePattern parses an s-expression pattern such as
// `(map ?f (map ?g ?x))`.
func ParsePattern(src string) (*Pattern, error) {
	tokens, err := sexpr.Lex(src)
	if err != nil {
		return nil, err
	}
	s, err := sexpr.ParseSexp(tokens)
	if err != nil {
		return nil, err
	}
	return fromSexp(s)
}

func fromSexp(s *sexpr.Sexp) (*Pattern, error) {
	if s.IsAtom() {
		if strings.HasPrefix(s.Atom, "?") {
			name := s.Atom[1:]
			if !isIdentifier(name) {
				return nil, &sexpr.SyntaxError{Line: s.Line, Col: s.Col, Msg: fmt.Sprintf("invalid pattern variable %q", s.Atom)}
			}
			return &Pattern{Var: name}, nil
		}
		return &Pattern{Op: s.Atom}, nil
	}
	if len(s.List) == 0 {
		return nil, &sexpr.SyntaxError{Line: s.Line, Col: s.Col, Msg: "empty list"}
	}
	head := s.List[0]
	if !head.IsAtom() {
		return nil, &sexpr.SyntaxError{Line: head.Line, Col: head.Col, Msg: "operator must be an atom"}
	}
	if strings.HasPrefix(head.Atom, "?") {
		return nil, &sexpr.SyntaxError{Line: head.Line, Col: head.Col, Msg: fmt.Sprintf("pattern variable %q cannot be an operator", head.Atom)}
	}
	p := &Pattern{Op: head.Atom}
	for _, arg := range s.List[1:] {
		child, err := fromSexp(arg)
		if err != nil {
			return nil, err
		}
		p.Children = append(p.Children, child)
	}
	return p, nil
}

// isIdentifier follows the metavariable naming rule: a letter or '_'
// followed by letters, digits, '_' or '-'.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '-'):
		default:
			return false
		}
	}
	return true
}
