// Package lexer turns Ember source text into a stream of tokens, one at
// a time, on demand from the compiler's Pratt parser.
package lexer

import "github.com/emberlang/ember/internal/token"

// Lexer is a single forward-only cursor over a source string. It holds
// no lookahead buffer beyond the current/start offsets; tokens are
// produced lazily by Next.
type Lexer struct {
	source  string
	start   int
	current int
	line    int
}

// New returns a Lexer positioned at the start of source.
func New(source string) *Lexer {
	return &Lexer{source: source, line: 1}
}

// Next scans and returns the next token. Past end of input it returns
// EOF tokens forever.
func (l *Lexer) Next() token.Token {
	l.skipWhitespace()
	l.start = l.current

	if l.isAtEnd() {
		return l.make(token.EOF)
	}

	c := l.advance()

	if isDigit(c) {
		return l.number()
	}
	if isAlpha(c) {
		return l.identifier()
	}

	switch c {
	case '(':
		return l.make(token.LeftParen)
	case ')':
		return l.make(token.RightParen)
	case '{':
		return l.make(token.LeftBrace)
	case '}':
		return l.make(token.RightBrace)
	case ';':
		return l.make(token.Semicolon)
	case ',':
		return l.make(token.Comma)
	case '.':
		return l.make(token.Dot)
	case '-':
		return l.make(token.Minus)
	case '+':
		return l.make(token.Plus)
	case '/':
		return l.make(token.Slash)
	case '*':
		return l.make(token.Star)
	case '!':
		if l.match('=') {
			return l.make(token.BangEqual)
		}
		return l.make(token.Bang)
	case '=':
		if l.match('=') {
			return l.make(token.EqualEqual)
		}
		return l.make(token.Equal)
	case '<':
		if l.match('=') {
			return l.make(token.LessEqual)
		}
		return l.make(token.Less)
	case '>':
		if l.match('=') {
			return l.make(token.GreaterEqual)
		}
		return l.make(token.Greater)
	case '"':
		return l.string()
	}

	return l.errorToken("Unexpected character.")
}

func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

func (l *Lexer) advance() byte {
	c := l.source[l.current]
	l.current++
	return c
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	return true
}

func (l *Lexer) make(t token.Type) token.Token {
	return token.Token{Type: t, Lexeme: l.source[l.start:l.current], Line: l.line}
}

func (l *Lexer) errorToken(msg string) token.Token {
	return token.Token{Type: token.Error, Lexeme: msg, Line: l.line}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\r', '\t':
			l.advance()
		case '\n':
			l.line++
			l.advance()
		case '/':
			if l.peekNext() == '/' {
				for l.peek() != '\n' && !l.isAtEnd() {
					l.advance()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (l *Lexer) identifier() token.Token {
	for isAlpha(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	return l.make(l.identifierType())
}

// identifierType classifies the lexeme just scanned as a keyword or a
// plain identifier, following the scanner's trie shape: dispatch on the
// first byte, then confirm the exact remaining run.
func (l *Lexer) identifierType() token.Type {
	lexeme := l.source[l.start:l.current]

	switch lexeme[0] {
	case 'a':
		return l.checkKeyword(1, "nd", token.And)
	case 'c':
		return l.checkKeyword(1, "lass", token.Class)
	case 'e':
		return l.checkKeyword(1, "lse", token.Else)
	case 'f':
		if len(lexeme) > 1 {
			switch lexeme[1] {
			case 'a':
				return l.checkKeyword(2, "lse", token.False)
			case 'o':
				return l.checkKeyword(2, "r", token.For)
			case 'u':
				return l.checkKeyword(2, "n", token.Fun)
			}
		}
	case 'i':
		return l.checkKeyword(1, "f", token.If)
	case 'n':
		return l.checkKeyword(1, "il", token.Nil)
	case 'o':
		return l.checkKeyword(1, "r", token.Or)
	case 'p':
		return l.checkKeyword(1, "rint", token.Print)
	case 'r':
		return l.checkKeyword(1, "eturn", token.Return)
	case 's':
		return l.checkKeyword(1, "uper", token.Super)
	case 't':
		if len(lexeme) > 1 {
			switch lexeme[1] {
			case 'h':
				return l.checkKeyword(2, "is", token.This)
			case 'r':
				return l.checkKeyword(2, "ue", token.True)
			}
		}
	case 'v':
		return l.checkKeyword(1, "ar", token.Var)
	case 'w':
		return l.checkKeyword(1, "hile", token.While)
	}

	return token.Identifier
}

func (l *Lexer) checkKeyword(pos int, rest string, t token.Type) token.Type {
	lexeme := l.source[l.start:l.current]
	if len(lexeme) == pos+len(rest) && lexeme[pos:] == rest {
		return t
	}
	return token.Identifier
}

func (l *Lexer) number() token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	return l.make(token.Number)
}

func (l *Lexer) string() token.Token {
	for l.peek() != '"' && !l.isAtEnd() {
		if l.peek() == '\n' {
			l.line++
		}
		l.advance()
	}

	if l.isAtEnd() {
		return l.errorToken("Unterminated string.")
	}

	l.advance() // closing quote
	return l.make(token.String)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
