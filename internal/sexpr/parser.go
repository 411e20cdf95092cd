package sexpr

import "fmt"

// Sexp is a raw s-expression: either an atom or a parenthesized list.
type Sexp struct {
	Atom string
	List []*Sexp
	Line int
	Col  int
}

// IsAtom reports whether the s-expression is an atom.
func (s *Sexp) IsAtom() bool {
	return s.List == nil
}

// ParseSexp parses exactly one s-expression from the token stream.
func ParseSexp(tokens []Token) (*Sexp, error) {
	p := &parser{tokens: tokens}
	if p.peek().Type == TokenEOF {
		tok := p.peek()
		return nil, &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: "empty expression"}
	}
	s, err := p.parse()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("unexpected %q after expression", tok.Value)}
	}
	return s, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) parse() (*Sexp, error) {
	tok := p.next()
	switch tok.Type {
	case TokenAtom:
		return &Sexp{Atom: tok.Value, Line: tok.Line, Col: tok.Col}, nil
	case TokenOpen:
		list := &Sexp{List: []*Sexp{}, Line: tok.Line, Col: tok.Col}
		for {
			switch p.peek().Type {
			case TokenClose:
				p.next()
				return list, nil
			case TokenEOF:
				end := p.peek()
				return nil, &SyntaxError{Line: end.Line, Col: end.Col, Msg: fmt.Sprintf("unclosed '(' opened at line %d col %d", tok.Line, tok.Col)}
			}
			child, err := p.parse()
			if err != nil {
				return nil, err
			}
			list.List = append(list.List, child)
		}
	case TokenClose:
		return nil, &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: "unexpected ')'"}
	default:
		return nil, &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: "unexpected end of input"}
	}
}
