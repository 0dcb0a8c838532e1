package comm

import (
	"context"
	"fmt"
)

// Local is one rank of an in-process group. Ranks of a group are meant to
// run on separate goroutines.
type Local struct {
	rank  int
	size  int
	inbox chan float64
}

// NewLocalGroup returns n ranks sharing one reduction.
func NewLocalGroup(n int) ([]*Local, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid rank count %d", n)
	}
	inbox := make(chan float64, n)
	group := make([]*Local, n)
	for i := range group {
		group[i] = &Local{rank: i, size: n, inbox: inbox}
	}
	return group, nil
}

func (l *Local) Rank() int { return l.rank }
func (l *Local) Size() int { return l.size }

// SumToRoot implements Reducer.
func (l *Local) SumToRoot(ctx context.Context, v float64) (float64, error) {
	if l.rank != Root {
		select {
		case l.inbox <- v:
			return 0, nil
		case <-ctx.Done():
			return 0, fmt.Errorf("rank %d: send partial sum: %w", l.rank, ctx.Err())
		}
	}
	sum := v
	for received := 1; received < l.size; received++ {
		select {
		case p := <-l.inbox:
			sum += p
		case <-ctx.Done():
			return 0, fmt.Errorf("root waiting for %d of %d partial sums: %w", l.size-received, l.size-1, ctx.Err())
		}
	}
	return sum, nil
}

func (l *Local) Close() error { return nil }
