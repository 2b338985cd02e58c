package index

import (
	"context"
	"fmt"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

// Budget bounds the work of a single search primitive. Zero fields are
// unlimited.
type Budget struct {
	MaxCandidateDocs int
	MaxComparisons   int64
}

// meter tracks the work done by one search call against its budget and
// its context.
type meter struct {
	ctx         context.Context
	budget      Budget
	comparisons int64
}

func newMeter(ctx context.Context, budget Budget) *meter {
	return &meter{ctx: ctx, budget: budget}
}

func (m *meter) candidates(op string, n int) error {
	if m.budget.MaxCandidateDocs > 0 && n > m.budget.MaxCandidateDocs {
		return fmt.Errorf("%s: %d candidate documents exceeds limit %d: %w",
			op, n, m.budget.MaxCandidateDocs, apperrors.ErrBudgetExceeded)
	}
	return m.ctx.Err()
}

func (m *meter) charge(op string, n int) error {
	m.comparisons += int64(n)
	if m.budget.MaxComparisons > 0 && m.comparisons > m.budget.MaxComparisons {
		return fmt.Errorf("%s: %d comparisons exceeds limit %d: %w",
			op, m.comparisons, m.budget.MaxComparisons, apperrors.ErrBudgetExceeded)
	}
	return m.ctx.Err()
}
