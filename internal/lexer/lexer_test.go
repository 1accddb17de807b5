package lexer

import (
	"testing"

	"github.com/emberlang/ember/internal/token"
)

func TestNextBasicTokens(t *testing.T) {
	input := `
class Tree {
  init(height) {
    this.height = height
  }

  grow() {
    return this.height + 1
  }
}

var sapling = Tree(2)
print sapling.grow() >= 3 and !false
`

	want := []token.Token{
		{Type: token.Class, Lexeme: "class"},
		{Type: token.Identifier, Lexeme: "Tree"},
		{Type: token.LeftBrace, Lexeme: "{"},
		{Type: token.Identifier, Lexeme: "init"},
		{Type: token.LeftParen, Lexeme: "("},
		{Type: token.Identifier, Lexeme: "height"},
		{Type: token.RightParen, Lexeme: ")"},
		{Type: token.LeftBrace, Lexeme: "{"},
		{Type: token.This, Lexeme: "this"},
		{Type: token.Dot, Lexeme: "."},
		{Type: token.Identifier, Lexeme: "height"},
		{Type: token.Equal, Lexeme: "="},
		{Type: token.Identifier, Lexeme: "height"},
		{Type: token.RightBrace, Lexeme: "}"},
		{Type: token.Identifier, Lexeme: "grow"},
		{Type: token.LeftParen, Lexeme: "("},
		{Type: token.RightParen, Lexeme: ")"},
		{Type: token.LeftBrace, Lexeme: "{"},
		{Type: token.Return, Lexeme: "return"},
		{Type: token.This, Lexeme: "this"},
		{Type: token.Dot, Lexeme: "."},
		{Type: token.Identifier, Lexeme: "height"},
		{Type: token.Plus, Lexeme: "+"},
		{Type: token.Number, Lexeme: "1"},
		{Type: token.RightBrace, Lexeme: "}"},
		{Type: token.RightBrace, Lexeme: "}"},
		{Type: token.Var, Lexeme: "var"},
		{Type: token.Identifier, Lexeme: "sapling"},
		{Type: token.Equal, Lexeme: "="},
		{Type: token.Identifier, Lexeme: "Tree"},
		{Type: token.LeftParen, Lexeme: "("},
		{Type: token.Number, Lexeme: "2"},
		{Type: token.RightParen, Lexeme: ")"},
		{Type: token.Print, Lexeme: "print"},
		{Type: token.Identifier, Lexeme: "sapling"},
		{Type: token.Dot, Lexeme: "."},
		{Type: token.Identifier, Lexeme: "grow"},
		{Type: token.LeftParen, Lexeme: "("},
		{Type: token.RightParen, Lexeme: ")"},
		{Type: token.GreaterEqual, Lexeme: ">="},
		{Type: token.Number, Lexeme: "3"},
		{Type: token.And, Lexeme: "and"},
		{Type: token.Bang, Lexeme: "!"},
		{Type: token.False, Lexeme: "false"},
		{Type: token.EOF},
	}

	l := New(input)
	for i, expected := range want {
		got := l.Next()
		if got.Type != expected.Type || (expected.Lexeme != "" && got.Lexeme != expected.Lexeme) {
			t.Fatalf("token %d: want %v %q, got %v %q", i, expected.Type, expected.Lexeme, got.Type, got.Lexeme)
		}
	}
}

func TestNextTracksLines(t *testing.T) {
	l := New("var a = 1\nvar b = 2\n")

	var last token.Token
	for {
		tok := l.Next()
		if tok.Type == token.EOF {
			break
		}
		last = tok
	}

	if last.Line != 2 {
		t.Fatalf("expected last token on line 2, got %d", last.Line)
	}
}

func TestNextStringLiteral(t *testing.T) {
	l := New(`"hello" "unterminated`)

	tok := l.Next()
	if tok.Type != token.String || tok.Lexeme != `"hello"` {
		t.Fatalf("unexpected string token: %v %q", tok.Type, tok.Lexeme)
	}

	tok = l.Next()
	if tok.Type != token.Error {
		t.Fatalf("expected error token for unterminated string, got %v", tok.Type)
	}
}

func TestNextUnexpectedCharacter(t *testing.T) {
	l := New("@")
	tok := l.Next()
	if tok.Type != token.Error {
		t.Fatalf("expected error token, got %v", tok.Type)
	}
}
