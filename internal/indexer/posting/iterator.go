package posting

// Iterator walks a List in ascending order.
type Iterator struct {
	list *List
	i    int
}

func (l *List) Iterator() *Iterator {
	return &Iterator{list: l}
}

// Valid reports whether the iterator points at a position.
func (it *Iterator) Valid() bool {
	return it.i < len(it.list.positions)
}

// Value returns the current position. It panics if the iterator is not valid.
func (it *Iterator) Value() int {
	return it.list.positions[it.i]
}

func (it *Iterator) Next() {
	it.i++
}

// SkipTo advances to the first position >= target and reports whether one
// exists. It never moves backwards.
func (it *Iterator) SkipTo(target int) bool {
	if !it.Valid() {
		return false
	}
	if it.list.positions[it.i] >= target {
		return true
	}
	it.i = it.list.seek(it.i, target)
	return it.Valid()
}
