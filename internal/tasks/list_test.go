package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects task names in completion order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) task(name string) Func {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return nil
	}
}

func (r *recorder) index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestID(t *testing.T) {
	assert.True(t, None.Empty())
	assert.Equal(t, "none", None.String())

	a := ID{ids: []int{3}}
	b := ID{ids: []int{1}}
	assert.Equal(t, "1&3", a.And(b).String())
	assert.Equal(t, "3", a.And(a).String())
	assert.Equal(t, "3", None.And(a).String())
}

func TestList_RespectsDependencies(t *testing.T) {
	rec := &recorder{}
	var l List
	a := l.AddTask(None, "a", rec.task("a"))
	b := l.AddTask(None, "b", rec.task("b"))
	c := l.AddTask(a.And(b), "c", rec.task("c"))
	l.AddTask(c, "d", rec.task("d"))

	require.NoError(t, l.Execute(context.Background(), 4))

	require.Len(t, rec.order, 4)
	assert.Less(t, rec.index("a"), rec.index("c"))
	assert.Less(t, rec.index("b"), rec.index("c"))
	assert.Less(t, rec.index("c"), rec.index("d"))

	st, err := l.Status(c)
	require.NoError(t, err)
	assert.Equal(t, Done, st)
}

func TestList_Empty(t *testing.T) {
	var l List
	assert.NoError(t, l.Execute(context.Background(), 2))
}

func TestList_IndependentTasksRunConcurrently(t *testing.T) {
	const n = 4
	var l List
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})

	for range n {
		l.AddTask(None, "block", func(ctx context.Context) error {
			started.Done()
			<-release
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- l.Execute(context.Background(), n) }()

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("independent tasks did not start concurrently")
	}
	close(release)
	require.NoError(t, <-done)
}

func TestList_FailureSkipsDependents(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32

	var l List
	a := l.AddTask(None, "a", func(context.Context) error { return boom })
	b := l.AddTask(a, "b", func(context.Context) error { ran.Add(1); return nil })
	c := l.AddTask(b, "c", func(context.Context) error { ran.Add(1); return nil })

	err := l.Execute(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "task a failed")
	assert.Zero(t, ran.Load())

	for id, want := range map[*ID]Status{&a: Failed, &b: Skipped, &c: Skipped} {
		st, err := l.Status(*id)
		require.NoError(t, err)
		assert.Equal(t, want, st)
	}
}

func TestList_UnknownDependency(t *testing.T) {
	var other List
	other.AddTask(None, "x", func(context.Context) error { return nil })
	foreign := other.AddTask(None, "y", func(context.Context) error { return nil })

	var l List
	l.AddTask(foreign, "z", func(context.Context) error { return nil })

	err := l.Execute(context.Background(), 1)
	assert.ErrorContains(t, err, "invalid task list")
	assert.ErrorContains(t, err, "source task not found")
}

func TestList_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	var l List
	a := l.AddTask(None, "a", func(context.Context) error { ran.Add(1); return nil })
	l.AddTask(a, "b", func(context.Context) error { ran.Add(1); return nil })

	err := l.Execute(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}

func TestList_OverlappingExecuteRunsSerially(t *testing.T) {
	var active, peak, ran atomic.Int32
	body := func(context.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		ran.Add(1)
		return nil
	}

	var l List
	a := l.AddTask(None, "a", body)
	l.AddTask(a, "b", body)
	l.AddTask(a, "c", body)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Execute(context.Background(), 1)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(12), ran.Load())
	assert.Equal(t, int32(1), peak.Load(), "runs of one list must not overlap")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "status(9)", Status(9).String())
}
