package sexpr

import (
	"fmt"
	"unicode"
)

// TokenType defines the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenOpen
	TokenClose
	TokenAtom
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenOpen:
		return "Open"
	case TokenClose:
		return "Close"
	case TokenAtom:
		return "Atom"
	default:
		return "Unknown"
	}
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// SyntaxError reports malformed input with its position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Lex performs lexical analysis on the input string
// and returns a sequence of tokens terminated by TokenEOF.
//
// Atoms are maximal runs of characters that are neither whitespace
// nor parentheses. A ';' starts a comment running to the end of the line.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	line, col := 1, 1
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == '\n':
			line++
			col = 1
			i++
		case isWhitespace(c):
			col++
			i++
		case c == ';':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '(':
			tokens = append(tokens, Token{Type: TokenOpen, Value: "(", Line: line, Col: col})
			col++
			i++
		case c == ')':
			tokens = append(tokens, Token{Type: TokenClose, Value: ")", Line: line, Col: col})
			col++
			i++
		default:
			start, startCol := i, col
			for i < len(input) && !isDelimiter(input[i]) {
				if input[i] < 0x20 {
					return nil, &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("invalid control character %q", input[i])}
				}
				i++
				col++
			}
			tokens = append(tokens, Token{Type: TokenAtom, Value: input[start:i], Line: line, Col: startCol})
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Line: line, Col: col})
	return tokens, nil
}

func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == ';' || isWhitespace(c)
}

func isWhitespace(c byte) bool {
	return unicode.IsSpace(rune(c))
}
