package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestCompareDocIDs(t *testing.T) {
	ordered := []string{"1", "2", "10", "10a", "a", "b"}
	for i := range ordered {
		for j := range ordered {
			got := CompareDocIDs(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Negative(t, got, "%s vs %s", ordered[i], ordered[j])
			case i > j:
				assert.Positive(t, got, "%s vs %s", ordered[i], ordered[j])
			default:
				assert.Zero(t, got)
			}
		}
	}
}

func TestResultAlgebra(t *testing.T) {
	left := newResult([]Match{
		{DocID: "3", Positions: []int{7}},
		{DocID: "1", Positions: []int{0, 4}},
		{DocID: "10", Positions: []int{2}},
	})
	right := newResult([]Match{
		{DocID: "10", Positions: []int{1}},
		{DocID: "2", Positions: []int{5}},
		{DocID: "3", Positions: []int{9}},
	})

	join := left.Join(right)
	if diff := cmp.Diff([]Match{
		{DocID: "3", Positions: []int{7, 9}},
		{DocID: "10", Positions: []int{2, 1}},
	}, join.Matches); diff != "" {
		t.Errorf("Join mismatch (-want +got):\n%s", diff)
	}

	union := left.Union(right)
	if diff := cmp.Diff([]Match{
		{DocID: "1", Positions: []int{0, 4}},
		{DocID: "2", Positions: []int{5}},
		{DocID: "3", Positions: []int{7, 9}},
		{DocID: "10", Positions: []int{2, 1}},
	}, union.Matches); diff != "" {
		t.Errorf("Union mismatch (-want +got):\n%s", diff)
	}

	diff := left.Difference(right)
	assert.Equal(t, []string{"1"}, diff.DocIDs())

	assert.True(t, left.Contains("10"))
	assert.False(t, left.Contains("2"))
}

func TestResultAlgebraWithEmpty(t *testing.T) {
	r := newResult([]Match{{DocID: "1"}, {DocID: "2"}})
	var empty Result

	assert.True(t, r.Join(empty).Empty())
	assert.Equal(t, r.DocIDs(), r.Union(empty).DocIDs())
	assert.Equal(t, r.DocIDs(), empty.Union(r).DocIDs())
	assert.Equal(t, r.DocIDs(), r.Difference(empty).DocIDs())
	assert.True(t, empty.Difference(r).Empty())
}
