package parser

import (
	"fmt"
	"strings"
)

// Node is one operation in a parsed query.
type Node interface {
	// Kind names the operation, used as a metrics label.
	Kind() string
	String() string
}

// And intersects two sub-queries by document.
type And struct{ Left, Right Node }

// Or unions two sub-queries by document.
type Or struct{ Left, Right Node }

// Not complements its child against every indexed document.
type Not struct{ Child Node }

// Phrase matches consecutive terms.
type Phrase struct{ Text string }

// Proximity matches documents where the terms fall within Distance
// positions of each other.
type Proximity struct {
	Distance int
	Text     string
}

// Terms is a run of bare words. Each word must match the document.
type Terms struct{ Words []string }

func (And) Kind() string       { return "and" }
func (Or) Kind() string        { return "or" }
func (Not) Kind() string       { return "not" }
func (Phrase) Kind() string    { return "phrase" }
func (Proximity) Kind() string { return "proximity" }
func (Terms) Kind() string     { return "terms" }

func (n And) String() string { return fmt.Sprintf("(%s AND %s)", n.Left, n.Right) }
func (n Or) String() string  { return fmt.Sprintf("(%s OR %s)", n.Left, n.Right) }
func (n Not) String() string { return fmt.Sprintf("NOT %s", n.Child) }
func (n Phrase) String() string {
	return fmt.Sprintf("%q", n.Text)
}
func (n Proximity) String() string { return fmt.Sprintf("#%d(%s)", n.Distance, n.Text) }
func (n Terms) String() string     { return "[" + strings.Join(n.Words, " ") + "]" }
