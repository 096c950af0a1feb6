package filter

import (
	"fmt"
	"strings"
)

// ParseError is returned by Parse for any malformed filter.
type ParseError struct {
	// Byte offset of the offending token.
	Position int
	Message  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Position, e.Message)
}

type parser struct {
	lexer *lexer
	pos   int
	tok   Token
	val   string
}

// Parse parses a whole filter.
func Parse(src []byte) (Expression, error) {
	p := &parser{lexer: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.tok != eol {
		return nil, p.errorf("expected eol instead of %s", p.tok)
	}
	return expr, nil
}

// expression : term ( "or" term )*
func (p *parser) expression() (Expression, error) {
	return p.chain(or, p.term)
}

// term : factor ( "and" factor )*
func (p *parser) term() (Expression, error) {
	return p.chain(and, p.factor)
}

// chain folds operands joined by op from the left.
func (p *parser) chain(op Token, operand func() (Expression, error)) (Expression, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.tok == op {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &binaryExpression{Left: left, Op: op, Right: right}
	}
	return left, nil
}

// factor : "not" factor | "(" expression ")" | predicate
func (p *parser) factor() (Expression, error) {
	switch p.tok {
	case not:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &notExpression{Inner: inner}, nil
	case lbracket:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.consume(rbracket); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return p.predicate()
	}
}

// predicate : IDENTIFIER comparison value
//
//	| IDENTIFIER ( "~" | "!~" ) REGEX
//	| IDENTIFIER [ "not" ] "in" "(" value ( "," value )* ")"
//	| IDENTIFIER "is" [ "not" ] "null"
func (p *parser) predicate() (Expression, error) {
	if p.tok != identifier {
		return nil, p.errorf("expected identifier instead of %s", p.tok)
	}
	field := &varExpression{Name: p.val}
	if err := p.next(); err != nil {
		return nil, err
	}

	op := p.tok
	switch {
	case op.comparison():
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		return &binaryExpression{Left: field, Op: op, Right: v}, nil

	case op == like || op == notLike:
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok != regexLit {
			return nil, p.errorf("expected regexLit instead of %s", p.tok)
		}
		re, err := newRegexExpression(p.pos, p.val)
		if err != nil {
			return nil, err
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &binaryExpression{Left: field, Op: op, Right: re}, nil

	case op == in || op == not:
		if err := p.next(); err != nil {
			return nil, err
		}
		if op == not {
			if err := p.consume(in); err != nil {
				return nil, err
			}
		}
		values, err := p.list()
		if err != nil {
			return nil, err
		}
		return &inExpression{Field: field, Negated: op == not, Values: values}, nil

	case op == is:
		if err := p.next(); err != nil {
			return nil, err
		}
		negated := p.tok == not
		if negated {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if err := p.consume(null); err != nil {
			return nil, err
		}
		return &nullExpression{Field: field, Negated: negated}, nil

	default:
		return nil, p.errorf("expected operator instead of %s", p.tok)
	}
}

// list : "(" value ( "," value )* ")"
func (p *parser) list() ([]Expression, error) {
	if err := p.consume(lbracket); err != nil {
		return nil, err
	}
	var values []Expression
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.tok != comma {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.consume(rbracket); err != nil {
		return nil, err
	}
	return values, nil
}

// value : STRING | QUANTITY | BOOLEAN
func (p *parser) value() (Expression, error) {
	var v Expression
	switch p.tok {
	case stringLit:
		v = &stringExpression{Value: p.val}
	case quantity:
		v = newQuantityExpression(p.val)
	case boolean:
		v = &booleanExpression{Value: strings.EqualFold(p.val, "true")}
	default:
		return nil, p.errorf("expected value instead of %s", p.tok)
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *parser) next() error {
	p.pos, p.tok, p.val = p.lexer.Scan()
	if p.tok == illegal {
		return ParseError{Position: p.pos, Message: p.val}
	}
	return nil
}

func (p *parser) consume(tok Token) error {
	if p.tok != tok {
		return p.errorf("expected %s instead of %s", tok, p.tok)
	}
	return p.next()
}

func (p *parser) errorf(format string, args ...any) error {
	return ParseError{Position: p.pos, Message: fmt.Sprintf(format, args...)}
}
