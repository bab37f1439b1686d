package hlo

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer"
	case tokFloat:
		return "float"
	case tokString:
		return "string"
	case tokPunct:
		return "punctuation"
	}
	return fmt.Sprintf("tokenKind(%d)", int(k))
}

// token is one lexical element. For identifiers a leading '%' is dropped from text, since HLO names can
// be written with or without it.
type token struct {
	kind       tokenKind
	text       string
	line, col  int
	start, end int // Byte offsets in the source.
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%q", t.text)
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// lexer splits HLO text into tokens, skipping white space and comments.
type lexer struct {
	src       string
	pos       int
	line, col int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

// skipSpaceAndComments returns a ParseError for an unterminated block comment.
func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance(1)
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peekByte(1) == '*':
			line, col := l.line, l.col
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return &ParseError{Line: line, Column: col, Msg: "unterminated /* comment"}
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '%' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// next returns the next token.
func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	tok := token{line: l.line, col: l.col, start: l.pos}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		tok.end = l.pos
		return tok, nil
	}

	c := l.src[l.pos]
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	switch {
	case isIdentStart(r):
		l.advance(size)
		for l.pos < len(l.src) {
			r, size = utf8.DecodeRuneInString(l.src[l.pos:])
			// "->" ends an identifier, e.g. `(x: f32[]) -> f32[]` is never written without spaces by XLA, but be safe.
			if r == '-' && l.peekByte(1) == '>' {
				break
			}
			if !isIdentPart(r) {
				break
			}
			l.advance(size)
		}
		tok.kind = tokIdent
		tok.text = strings.TrimPrefix(l.src[tok.start:l.pos], "%")
		if tok.text == "" {
			return token{}, &ParseError{Line: tok.line, Column: tok.col, Msg: "empty name after '%'"}
		}

	case isDigit(c) || (c == '-' && isDigit(l.peekByte(1))) || (c == '.' && isDigit(l.peekByte(1))):
		tok.kind = tokInt
		if c == '-' {
			l.advance(1)
		}
		for isDigit(l.peekByte(0)) {
			l.advance(1)
		}
		if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) || l.peekByte(0) == '.' && !isIdentStartByte(l.peekByte(1)) {
			tok.kind = tokFloat
			l.advance(1)
			for isDigit(l.peekByte(0)) {
				l.advance(1)
			}
		}
		if e := l.peekByte(0); e == 'e' || e == 'E' {
			offset := 1
			if s := l.peekByte(1); s == '+' || s == '-' {
				offset = 2
			}
			if isDigit(l.peekByte(offset)) {
				tok.kind = tokFloat
				l.advance(offset)
				for isDigit(l.peekByte(0)) {
					l.advance(1)
				}
			}
		}
		tok.text = l.src[tok.start:l.pos]

	case c == '"':
		l.advance(1)
		var sb strings.Builder
		for {
			if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
				return token{}, &ParseError{Line: tok.line, Column: tok.col, Msg: "unterminated string"}
			}
			ch := l.src[l.pos]
			if ch == '"' {
				l.advance(1)
				break
			}
			if ch == '\\' && l.pos+1 < len(l.src) {
				sb.WriteByte(l.src[l.pos+1])
				l.advance(2)
				continue
			}
			sb.WriteByte(ch)
			l.advance(1)
		}
		tok.kind = tokString
		tok.text = sb.String()

	case c == '-' && l.peekByte(1) == '>':
		l.advance(2)
		tok.kind = tokPunct
		tok.text = "->"

	case strings.IndexByte("=,(){}[]:*-<>/", c) >= 0:
		l.advance(1)
		tok.kind = tokPunct
		tok.text = string(c)

	default:
		return token{}, &ParseError{Line: tok.line, Column: tok.col, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
	tok.end = l.pos
	return tok, nil
}

func isIdentStartByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
