// Package posting implements the positional posting list: the ordered,
// duplicate-free token positions of one term in one document, with a skip
// table over the contiguous position slice for faster ordered merges.
package posting

import "slices"

// minSkipSize is the smallest skip interval worth maintaining. Lists with
// ⌊√len⌋ at or below it carry no skip table.
const minSkipSize = 3

type skip struct {
	position int
	index    int
}

// List is a sorted set of token positions. The zero value is an empty list
// ready to use. A List is not safe for concurrent mutation; concurrent reads
// are safe once writes have stopped.
type List struct {
	positions []int
	skips     []skip
	sqrtLen   int
}

func New() *List {
	return &List{}
}

// FromPositions builds a list from arbitrary positions, dropping duplicates.
func FromPositions(positions ...int) *List {
	sorted := slices.Clone(positions)
	slices.Sort(sorted)
	return fromSorted(slices.Compact(sorted))
}

// fromSorted takes ownership of an ascending, duplicate-free slice.
func fromSorted(positions []int) *List {
	l := &List{positions: positions}
	l.rebuildSkips()
	return l
}

func (l *List) Len() int {
	return len(l.positions)
}

func (l *List) Empty() bool {
	return len(l.positions) == 0
}

// Positions returns a copy of the positions in ascending order.
func (l *List) Positions() []int {
	return slices.Clone(l.positions)
}

// First returns the smallest position, or -1 if the list is empty.
func (l *List) First() int {
	if len(l.positions) == 0 {
		return -1
	}
	return l.positions[0]
}

// Insert adds position, keeping the list sorted. It reports whether the
// position was new.
func (l *List) Insert(position int) bool {
	n := len(l.positions)
	if n == 0 || position > l.positions[n-1] {
		l.positions = append(l.positions, position)
		if isqrt(len(l.positions)) != l.sqrtLen {
			l.rebuildSkips()
		}
		return true
	}

	i := l.seek(0, position)
	if l.positions[i] == position {
		return false
	}
	l.positions = slices.Insert(l.positions, i, position)
	if isqrt(len(l.positions)) != l.sqrtLen || l.shiftsSkip(i) {
		l.rebuildSkips()
	}
	return true
}

// Contains reports whether position is in the list.
func (l *List) Contains(position int) bool {
	if len(l.positions) == 0 {
		return false
	}
	i := l.seek(0, position)
	return i < len(l.positions) && l.positions[i] == position
}

// seek returns the index of the first position >= target at or after from,
// following skips where they do not overshoot.
func (l *List) seek(from, target int) int {
	i := from
	if len(l.skips) > 0 {
		k := i/l.sqrtLen + 1
		for k < len(l.skips) && l.skips[k].position <= target {
			i = l.skips[k].index
			k++
		}
	}
	for i < len(l.positions) && l.positions[i] < target {
		i++
	}
	return i
}

func (l *List) shiftsSkip(inserted int) bool {
	if len(l.skips) == 0 {
		return false
	}
	return l.skips[len(l.skips)-1].index >= inserted
}

func (l *List) rebuildSkips() {
	l.sqrtLen = isqrt(len(l.positions))
	l.skips = l.skips[:0]
	if l.sqrtLen <= minSkipSize {
		return
	}
	for i := 0; i < len(l.positions); i += l.sqrtLen {
		l.skips = append(l.skips, skip{position: l.positions[i], index: i})
	}
}

// Intersect returns the positions present in both lists.
func (l *List) Intersect(other *List) *List {
	if l.Empty() || other.Empty() {
		return New()
	}
	out := make([]int, 0, min(l.Len(), other.Len()))
	a, b := l.Iterator(), other.Iterator()
	for a.Valid() && b.Valid() {
		av, bv := a.Value(), b.Value()
		switch {
		case av == bv:
			out = append(out, av)
			a.Next()
			b.Next()
		case av < bv:
			a.SkipTo(bv)
		default:
			b.SkipTo(av)
		}
	}
	return fromSorted(out)
}

// Union returns the sorted union of both lists.
func (l *List) Union(other *List) *List {
	out := make([]int, 0, l.Len()+other.Len())
	i, j := 0, 0
	for i < len(l.positions) && j < len(other.positions) {
		av, bv := l.positions[i], other.positions[j]
		switch {
		case av == bv:
			out = append(out, av)
			i++
			j++
		case av < bv:
			out = append(out, av)
			i++
		default:
			out = append(out, bv)
			j++
		}
	}
	out = append(out, l.positions[i:]...)
	out = append(out, other.positions[j:]...)
	return fromSorted(out)
}

// Decrement returns a new list with every position reduced by amount.
// Positions may become negative.
func (l *List) Decrement(amount int) *List {
	out := make([]int, len(l.positions))
	for i, p := range l.positions {
		out[i] = p - amount
	}
	return fromSorted(out)
}

// Equal reports whether both lists hold the same positions.
func (l *List) Equal(other *List) bool {
	return slices.Equal(l.positions, other.positions)
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 0
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
