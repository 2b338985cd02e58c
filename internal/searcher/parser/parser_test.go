package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Node
	}{
		{"", Terms{}},
		{"   ", Terms{}},
		{"cats", Terms{Words: []string{"cats"}}},
		{"cats dogs", Terms{Words: []string{"cats", "dogs"}}},
		{"cats AND dogs", And{Terms{Words: []string{"cats"}}, Terms{Words: []string{"dogs"}}}},
		{"cats OR dogs", Or{Terms{Words: []string{"cats"}}, Terms{Words: []string{"dogs"}}}},
		{"cats and dogs", Terms{Words: []string{"cats", "and", "dogs"}}},
		{"cats AND NOT dogs", And{Terms{Words: []string{"cats"}}, Not{Terms{Words: []string{"dogs"}}}}},
		{"cats OR NOT dogs", Or{Terms{Words: []string{"cats"}}, Not{Terms{Words: []string{"dogs"}}}}},
		{"NOT cats", Not{Terms{Words: []string{"cats"}}}},
		{"NOT", Not{Terms{}}},
		{`"great cats"`, Phrase{Text: "great cats"}},
		{`"unterminated phrase`, Phrase{Text: "unterminated phrase"}},
		{"#3(cats, sleep)", Proximity{Distance: 3, Text: "cats, sleep"}},
		{"#0(a b", Proximity{Distance: 0, Text: "a b"}},
		{"#tag", Terms{Words: []string{"#tag"}}},
		{`storm "coast road"`, And{Terms{Words: []string{"storm"}}, Phrase{Text: "coast road"}}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Parse(tt.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := map[string]string{
		"a OR b AND c":            "(([a] OR [b]) AND [c])",
		"a AND b OR c":            "([a] AND ([b] OR [c]))",
		"a OR b OR c":             "(([a] OR [b]) OR [c])",
		"(a AND b) OR c":          "(([a] AND [b]) OR [c])",
		"a AND NOT b OR c":        "([a] AND NOT ([b] OR [c]))",
		"a OR NOT b AND c":        "([a] OR NOT ([b] AND [c]))",
		"a AND NOT b AND NOT c":   "(([a] AND NOT [b]) AND NOT [c])",
		"a AND b AND NOT c OR d":  "(([a] AND [b]) AND NOT ([c] OR [d]))",
		"a OR NOT b AND NOT c":    "(([a] OR NOT [b]) AND NOT [c])",
		"a AND NOT":               "([a] AND NOT [])",
		"NOT a AND b":             "(NOT [a] AND [b])",
		"NOT (a OR b)":            "NOT ([a] OR [b])",
		"NOT NOT a":               "NOT NOT [a]",
		`a #2(b, c) OR "d e"`:     `(([a] AND #2(b, c)) OR "d e")`,
		`a OR "b c" #1(d, e)`:     `([a] OR ("b c" AND #1(d, e)))`,
		"storm AND (rain wind)":   "([storm] AND [rain wind])",
		"storm AND (a OR b) OR c": "([storm] AND (([a] OR [b]) OR [c]))",
	}
	for query, want := range tests {
		t.Run(query, func(t *testing.T) {
			got, err := Parse(query)
			require.NoError(t, err)
			assert.Equal(t, want, got.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		query  string
		target error
	}{
		{"#abc(cats, dogs)", apperrors.ErrMalformedProximity},
		{"#(cats)", apperrors.ErrMalformedProximity},
		{"#-2(cats)", apperrors.ErrMalformedProximity},
		{"storm AND #x(a)", apperrors.ErrMalformedProximity},
		{"cats AND", apperrors.ErrInvalidQuery},
		{"cats OR", apperrors.ErrInvalidQuery},
		{"AND cats", apperrors.ErrInvalidQuery},
		{"(cats", apperrors.ErrInvalidQuery},
		{"cats)", apperrors.ErrInvalidQuery},
		{"()", apperrors.ErrInvalidQuery},
		{strings.Repeat("(", MaxDepth+1) + "a" + strings.Repeat(")", MaxDepth+1), apperrors.ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.query, qe.Query)
		})
	}
}

func TestQueryErrorOffset(t *testing.T) {
	_, err := Parse("storm AND #x(a)")
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 10, qe.Offset)
	assert.Contains(t, qe.Error(), `"x"`)
}

func TestKind(t *testing.T) {
	for query, want := range map[string]string{
		"a":        "terms",
		"a AND b":  "and",
		"a OR b":   "or",
		"NOT a":    "not",
		`"a b"`:    "phrase",
		"#1(a, b)": "proximity",
	} {
		node, err := Parse(query)
		require.NoError(t, err)
		assert.Equal(t, want, node.Kind(), query)
	}
}
