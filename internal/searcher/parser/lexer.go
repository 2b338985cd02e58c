package parser

import (
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokAnd
	tokOr
	tokNot
	tokPhrase
	tokProximity
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "word"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokPhrase:
		return "phrase"
	case tokProximity:
		return "proximity"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "unknown"
	}
}

type token struct {
	kind     tokenKind
	text     string
	distance int
	offset   int
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '(' || r == ')'
}

// lex splits a query into tokens. Keywords are case sensitive. Quotes and
// proximity groups left open run to the end of the query.
func lex(query string) ([]token, error) {
	var tokens []token
	runes := []rune(query)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, offset: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, offset: i})
			i++
		case r == '"':
			end := indexRune(runes, i+1, '"')
			tokens = append(tokens, token{kind: tokPhrase, text: string(runes[i+1 : end]), offset: i})
			i = min(end+1, len(runes))
		case r == '#' && isProximity(runes, i):
			tok, next, err := lexProximity(query, runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			start := i
			for i < len(runes) && !isDelimiter(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			kind := tokWord
			switch word {
			case "AND":
				kind = tokAnd
			case "OR":
				kind = tokOr
			case "NOT":
				kind = tokNot
			}
			tokens = append(tokens, token{kind: kind, text: word, offset: start})
		}
	}
	return append(tokens, token{kind: tokEOF, offset: len(runes)}), nil
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return len(runes)
}

// isProximity reports whether the '#' at i opens a "#N(" group: the text
// up to the next '(' must contain no delimiter.
func isProximity(runes []rune, i int) bool {
	for j := i + 1; j < len(runes); j++ {
		if runes[j] == '(' {
			return true
		}
		if isDelimiter(runes[j]) {
			return false
		}
	}
	return false
}

func lexProximity(query string, runes []rune, i int) (token, int, error) {
	open := indexRune(runes, i+1, '(')
	raw := string(runes[i+1 : open])
	distance, err := strconv.Atoi(raw)
	if err != nil || distance < 0 {
		return token{}, 0, &QueryError{
			Query:   query,
			Offset:  i,
			Message: "proximity distance " + strconv.Quote(raw) + " is not a non-negative integer",
			Err:     apperrors.ErrMalformedProximity,
		}
	}
	closing := indexRune(runes, open+1, ')')
	text := strings.TrimSpace(string(runes[open+1 : closing]))
	return token{kind: tokProximity, text: text, distance: distance, offset: i}, min(closing+1, len(runes)), nil
}
