package tasks

import (
	"context"
	"fmt"
	"runtime"

	"github.com/vk/meshflow/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Region is a synchronization boundary: a set of task lists that run
// concurrently and must all finish before the region is complete.
type Region struct {
	lists []*List
}

// Len is the number of lists in the region.
func (r *Region) Len() int { return len(r.lists) }

// List returns the i-th list of the region.
func (r *Region) List(i int) *List { return r.lists[i] }

// Execute runs all lists of the region, at most workers lists at a time, and
// returns once every list has finished. Each list may itself run up to
// workers tasks concurrently.
func (r *Region) Execute(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, l := range r.lists {
		g.Go(func() error {
			if err := l.Execute(gctx, workers); err != nil {
				return fmt.Errorf("list %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Collection is an ordered sequence of regions.
type Collection struct {
	regions []*Region
}

// AddRegion appends a region holding n empty task lists.
func (c *Collection) AddRegion(n int) *Region {
	r := &Region{lists: make([]*List, n)}
	for i := range r.lists {
		r.lists[i] = &List{}
	}
	c.regions = append(c.regions, r)
	return r
}

// Regions returns the regions in execution order.
func (c *Collection) Regions() []*Region { return c.regions }

// Len is the total number of tasks across all regions.
func (c *Collection) Len() int {
	n := 0
	for _, r := range c.regions {
		for _, l := range r.lists {
			n += l.Len()
		}
	}
	return n
}

// Execute runs the regions strictly in order. A region starts only after
// the previous one has completed; the first failure stops the collection.
func (c *Collection) Execute(ctx context.Context, workers int) error {
	logger := ctxlog.FromContext(ctx)
	for i, r := range c.regions {
		logger.Debug("Executing task region.", "region", i, "lists", r.Len())
		if err := r.Execute(ctx, workers); err != nil {
			return fmt.Errorf("task region %d: %w", i, err)
		}
		logger.Debug("Task region complete.", "region", i)
	}
	return nil
}
