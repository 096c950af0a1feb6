package filter

import (
	"bytes"
	"fmt"
	"strings"
)

type lexer struct {
	src []byte
	pos int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src}
}

// Scan returns the offset, kind and text of the next lexeme. For an illegal
// lexeme the text is the reason.
func (l *lexer) Scan() (int, Token, string) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return start, eol, ""
	}

	var (
		tok Token
		val string
	)
	switch c := l.src[l.pos]; {
	case isLetter(c):
		tok, val = l.word()
	case isDigit(c):
		tok, val = l.number()
	case c == '\'' || c == '"':
		tok, val = l.quoted(c)
	case c == '/':
		tok, val = l.regex()
	default:
		tok, val = l.symbol()
	}
	return start, tok, val
}

// word reads a keyword or a field name. Field names may be dotted.
func (l *lexer) word() (Token, string) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' {
			if !isLetter(l.at(l.pos + 1)) {
				return illegal, "dot must be followed by a field name"
			}
		} else if !isLetter(c) && !isDigit(c) {
			break
		}
		l.pos++
	}
	word := string(l.src[start:l.pos])
	if tok, ok := keywords[strings.ToLower(word)]; ok {
		return tok, word
	}
	return identifier, word
}

// number reads a quantity: digits, an optional fraction and an optional
// s, m or h unit.
func (l *lexer) number() (Token, string) {
	start := l.pos
	l.digits()
	if l.at(l.pos) == '.' {
		l.pos++
		if !isDigit(l.at(l.pos)) {
			return illegal, "malformed number"
		}
		l.digits()
	}
	if isUnit(l.at(l.pos)) {
		l.pos++
	}
	if isLetter(l.at(l.pos)) {
		return illegal, "quantity unit is malformed"
	}
	return quantity, string(l.src[start:l.pos])
}

// quoted reads a string closed by the quote it opened with. A doubled quote
// stands for itself.
func (l *lexer) quoted(quote byte) (Token, string) {
	l.pos++
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return illegal, "unclosed string"
		}
		c := l.src[l.pos]
		l.pos++
		if c != quote {
			b.WriteByte(c)
			continue
		}
		if l.at(l.pos) == quote {
			b.WriteByte(quote)
			l.pos++
			continue
		}
		break
	}
	if b.Len() == 0 {
		return illegal, "empty string"
	}
	return stringLit, b.String()
}

// regex reads /pattern/; \/ is a literal slash.
func (l *lexer) regex() (Token, string) {
	l.pos++
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return illegal, "unclosed regex"
		}
		c := l.src[l.pos]
		l.pos++
		switch {
		case c == '/':
			return regexLit, b.String()
		case c == '\\' && l.at(l.pos) == '/':
			b.WriteByte('/')
			l.pos++
		default:
			b.WriteByte(c)
		}
	}
}

func (l *lexer) symbol() (Token, string) {
	rest := l.src[l.pos:]
	for _, s := range symbols {
		if bytes.HasPrefix(rest, []byte(s.text)) {
			l.pos += len(s.text)
			return s.tok, s.text
		}
	}
	return illegal, fmt.Sprintf("unexpected character %q", rest[0])
}

func (l *lexer) digits() {
	for isDigit(l.at(l.pos)) {
		l.pos++
	}
}

// at returns the byte at i, or 0 past the end.
func (l *lexer) at(i int) byte {
	if i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isUnit(c byte) bool {
	switch c {
	case 's', 'S', 'm', 'M', 'h', 'H':
		return true
	}
	return false
}
