// Package comm provides the cross-process reduction used at the end of a
// driver cycle: every rank contributes one float64 and rank 0 receives the
// sum.
package comm

import (
	"context"
	"fmt"
	"time"
)

// Root is the rank that receives reduced values.
const Root = 0

// Reducer sums one value across all ranks.
type Reducer interface {
	Rank() int
	Size() int
	// SumToRoot contributes v. The root receives the global sum; every
	// other rank receives 0.
	SumToRoot(ctx context.Context, v float64) (float64, error)
	Close() error
}

// Kind names a Reducer implementation.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindLocal    Kind = "local"
	KindSocketIO Kind = "socketio"
)

// Config selects and parameterizes a Reducer.
type Config struct {
	Kind Kind
	Rank int
	Size int
	// Addr is host:port of the root's reduction endpoint.
	Addr string
	// Timeout bounds a SocketIO reduction. Zero waits indefinitely.
	Timeout time.Duration
}

// New builds the Reducer described by cfg. Local reducers come in groups
// and are built with NewLocalGroup instead.
func New(ctx context.Context, cfg Config) (Reducer, error) {
	switch cfg.Kind {
	case "", KindIdentity:
		if cfg.Size > 1 {
			return nil, fmt.Errorf("identity reducer cannot serve %d ranks", cfg.Size)
		}
		return Identity{}, nil
	case KindSocketIO:
		if cfg.Size < 1 {
			return nil, fmt.Errorf("invalid rank count %d", cfg.Size)
		}
		if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
			return nil, fmt.Errorf("rank %d out of range [0,%d)", cfg.Rank, cfg.Size)
		}
		if cfg.Rank == Root {
			return NewSocketIOServer(ctx, cfg)
		}
		return NewSocketIOClient(ctx, cfg)
	case KindLocal:
		return nil, fmt.Errorf("reducer kind '%s' is built with NewLocalGroup", cfg.Kind)
	default:
		return nil, fmt.Errorf("unknown reducer kind '%s'", cfg.Kind)
	}
}

// Identity is the single-process reducer.
type Identity struct{}

func (Identity) Rank() int { return Root }
func (Identity) Size() int { return 1 }

func (Identity) SumToRoot(_ context.Context, v float64) (float64, error) { return v, nil }

func (Identity) Close() error { return nil }
