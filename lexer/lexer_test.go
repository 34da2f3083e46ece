package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"nilan/token"
)

func scanAll(source string) []token.Token {
	l := New(source)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.Eof {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestSingleCharacterTokens(t *testing.T) {
	toks := scanAll("(){},.-+;*/")
	assert.Equal(t, []token.Kind{
		token.LeftParen, token.RightParen, token.LeftBrace, token.RightBrace,
		token.Comma, token.Dot, token.Minus, token.Plus, token.Semicolon,
		token.Star, token.Slash, token.Eof,
	}, kinds(toks))
}

func TestTwoCharacterOperators(t *testing.T) {
	toks := scanAll("!= == <= >= ! = < >")
	assert.Equal(t, []token.Kind{
		token.BangEqual, token.EqualEqual, token.LessEqual, token.GreaterEqual,
		token.Bang, token.Equal, token.Less, token.Greater, token.Eof,
	}, kinds(toks))
}

func TestLineComment(t *testing.T) {
	toks := scanAll("1 // this is ignored\n2")
	assert.Equal(t, []token.Kind{token.Number, token.Number, token.Eof}, kinds(toks))
	assert.Equal(t, "2", toks[1].Lexeme)
	assert.Equal(t, 2, toks[1].Line)
}

func TestNumberLiteral(t *testing.T) {
	toks := scanAll("123 45.67 8.")
	assert.Equal(t, "123", toks[0].Lexeme)
	assert.Equal(t, "45.67", toks[1].Lexeme)
	// trailing '.' with no following digit is not consumed as part of the number
	assert.Equal(t, "8", toks[2].Lexeme)
	assert.Equal(t, token.Dot, toks[3].Kind)
}

func TestStringLiteral(t *testing.T) {
	toks := scanAll(`"hello world"`)
	assert.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, `"hello world"`, toks[0].Lexeme)
}

func TestStringLiteralSpansNewlinesAndTracksLine(t *testing.T) {
	toks := scanAll("\"line1\nline2\" next")
	assert.Equal(t, token.String, toks[0].Kind)
	// the token after the string starts on line 2
	assert.Equal(t, 2, toks[1].Line)
}

func TestUnterminatedString(t *testing.T) {
	toks := scanAll(`"never closed`)
	assert.Equal(t, token.Error, toks[0].Kind)
	assert.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks := scanAll("foo bar123 _baz and or print var while")
	assert.Equal(t, []token.Kind{
		token.Identifier, token.Identifier, token.Identifier,
		token.And, token.Or, token.Print, token.Var, token.While, token.Eof,
	}, kinds(toks))
}

func TestUnexpectedCharacter(t *testing.T) {
	toks := scanAll("@")
	assert.Equal(t, token.Error, toks[0].Kind)
	assert.Equal(t, "Unexpected character.", toks[0].Lexeme)
}

func TestEofIsSticky(t *testing.T) {
	l := New("")
	first := l.NextToken()
	second := l.NextToken()
	assert.Equal(t, token.Eof, first.Kind)
	assert.Equal(t, token.Eof, second.Kind)
}
