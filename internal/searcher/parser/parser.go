// Package parser turns a boolean query string into a tree of index
// operations.
//
// Grammar, lowest precedence first. AND NOT and OR NOT are operators of
// their own, so "a AND b OR c" is a AND (b OR c) and "a AND NOT b OR c" is
// a AND NOT (b OR c). Juxtaposed operands bind tightest.
//
//	query   := ornot (AND NOT ornot)*
//	ornot   := and (OR NOT and)*
//	and     := or (AND or)*
//	or      := seq (OR seq)*
//	seq     := unary unary*
//	unary   := NOT unary | primary
//	primary := word+ | "phrase" | #N(term, ...) | ( query )
package parser

import (
	"fmt"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

// MaxDepth bounds parenthesis and NOT nesting.
const MaxDepth = 64

// QueryError reports a query that cannot be parsed. Err is
// ErrInvalidQuery or ErrMalformedProximity.
type QueryError struct {
	Query   string
	Offset  int
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

type parser struct {
	query  string
	tokens []token
	pos    int
	depth  int
}

// Parse parses query into a Node. An empty query parses to an empty Terms
// node.
func Parse(query string) (Node, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{query: query, tokens: tokens}
	if p.peek().kind == tokEOF {
		return Terms{}, nil
	}
	node, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
	return node, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) *QueryError {
	return &QueryError{
		Query:   p.query,
		Offset:  tok.offset,
		Message: fmt.Sprintf(format, args...),
		Err:     apperrors.ErrInvalidQuery,
	}
}

func startsOperand(k tokenKind) bool {
	switch k {
	case tokWord, tokPhrase, tokProximity, tokLParen, tokNot:
		return true
	}
	return false
}

// negated reports whether the next tokens are op followed by NOT.
func (p *parser) negated(op tokenKind) bool {
	return p.peek().kind == op && p.tokens[p.pos+1].kind == tokNot
}

// negatedOperand parses the operand of AND NOT or OR NOT. A missing
// operand negates nothing.
func (p *parser) negatedOperand(parse func() (Node, error)) (Node, error) {
	if !startsOperand(p.peek().kind) {
		return Not{Child: Terms{}}, nil
	}
	child, err := parse()
	if err != nil {
		return nil, err
	}
	return Not{Child: child}, nil
}

func (p *parser) parseQuery() (Node, error) {
	left, err := p.parseOrNot()
	if err != nil {
		return nil, err
	}
	for p.negated(tokAnd) {
		p.next()
		p.next()
		right, err := p.negatedOperand(p.parseOrNot)
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseOrNot() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.negated(tokOr) {
		p.next()
		p.next()
		right, err := p.negatedOperand(p.parseAnd)
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd && !p.negated(tokAnd) {
		op := p.next()
		if !startsOperand(p.peek().kind) {
			return nil, p.errorf(op, "AND needs a right-hand operand")
		}
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr && !p.negated(tokOr) {
		op := p.next()
		if !startsOperand(p.peek().kind) {
			return nil, p.errorf(op, "OR needs a right-hand operand")
		}
		right, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

// parseSeq joins juxtaposed operands with an implicit AND.
func (p *parser) parseSeq() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for startsOperand(p.peek().kind) {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind != tokNot {
		return p.parsePrimary()
	}
	op := p.next()
	// A NOT with nothing to negate excludes nothing.
	if !startsOperand(p.peek().kind) {
		return Not{Child: Terms{}}, nil
	}
	if err := p.enter(op); err != nil {
		return nil, err
	}
	defer p.leave()
	child, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return Not{Child: child}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokWord:
		words := []string{tok.text}
		for p.peek().kind == tokWord {
			words = append(words, p.next().text)
		}
		return Terms{Words: words}, nil
	case tokPhrase:
		return Phrase{Text: tok.text}, nil
	case tokProximity:
		return Proximity{Distance: tok.distance, Text: tok.text}, nil
	case tokLParen:
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		if p.peek().kind == tokRParen {
			return nil, p.errorf(tok, "empty group")
		}
		node, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf(tok, "unclosed '('")
		}
		p.next()
		return node, nil
	default:
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
}

func (p *parser) enter(tok token) error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorf(tok, "query nested deeper than %d", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }
