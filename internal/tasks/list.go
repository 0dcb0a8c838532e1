package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/meshflow/internal/ctxlog"
)

// Func is the body of a task.
type Func func(ctx context.Context) error

// Status is the execution state of a task.
type Status int32

const (
	Pending Status = iota
	Running
	Done
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

type task struct {
	id   int
	name string
	dep  ID
	fn   Func

	depCount atomic.Int32
	status   atomic.Int32
	err      error
	settle   sync.Once
	deps     []*task
	children []*task
}

// List is an ordered set of tasks linked by dependency tokens.
type List struct {
	tasks []*task
	// exec serializes Execute; task state is re-armed by every run.
	exec sync.Mutex
}

// AddTask appends a task that starts once dep has completed and returns the
// token for depending on it.
func (l *List) AddTask(dep ID, name string, fn Func) ID {
	id := len(l.tasks) + 1
	l.tasks = append(l.tasks, &task{id: id, name: name, dep: dep, fn: fn})
	return ID{ids: []int{id}}
}

// Len is the number of tasks in the list.
func (l *List) Len() int { return len(l.tasks) }

// Status reports the state of the task behind a single-task token.
func (l *List) Status(id ID) (Status, error) {
	if len(id.ids) != 1 || id.ids[0] < 1 || id.ids[0] > len(l.tasks) {
		return Pending, fmt.Errorf("token %s does not name a single task of this list", id)
	}
	return Status(l.tasks[id.ids[0]-1].status.Load()), nil
}

// link validates the dependency tokens and wires predecessors and successors.
func (l *List) link() error {
	g := newGraph()
	for _, t := range l.tasks {
		g.addNode(t.id)
	}
	for _, t := range l.tasks {
		for _, dep := range t.dep.ids {
			if err := g.addEdge(dep, t.id); err != nil {
				return fmt.Errorf("task '%s': %w", t.name, err)
			}
		}
	}
	if err := g.detectCycles(); err != nil {
		return err
	}

	for _, t := range l.tasks {
		t.deps = t.deps[:0]
		t.children = t.children[:0]
	}
	for _, t := range l.tasks {
		for _, dep := range t.dep.ids {
			parent := l.tasks[dep-1]
			t.deps = append(t.deps, parent)
			parent.children = append(parent.children, t)
		}
		t.depCount.Store(int32(len(t.deps)))
		t.status.Store(int32(Pending))
		t.err = nil
		t.settle = sync.Once{}
	}
	return nil
}

// Execute runs every task, at most workers at a time, respecting the
// dependency tokens. A failing task cancels the run and skips everything
// that depends on it. The first failure is returned. Overlapping calls run
// one after the other.
func (l *List) Execute(ctx context.Context, workers int) error {
	logger := ctxlog.FromContext(ctx)
	l.exec.Lock()
	defer l.exec.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	if err := l.link(); err != nil {
		return fmt.Errorf("invalid task list: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(l.tasks) {
		workers = len(l.tasks)
	}

	readyChan := make(chan *task, len(l.tasks))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, t := range l.tasks {
		if t.depCount.Load() == 0 {
			readyChan <- t
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(l.tasks))
	for i := 0; i < workers; i++ {
		go l.worker(runCtx, &wg, readyChan, cancel, i)
	}
	wg.Wait()
	close(readyChan)

	var failed []string
	var rootCause error
	for _, t := range l.tasks {
		if Status(t.status.Load()) != Failed || t.err == nil || errors.Is(t.err, context.Canceled) {
			continue
		}
		failed = append(failed, t.name)
		if rootCause == nil {
			rootCause = t.err
		}
	}
	if rootCause != nil {
		logger.Error("Task list failed.", "tasks", failed, "error", rootCause)
		return fmt.Errorf("task %s failed: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// worker is the processing loop for one concurrent worker.
func (l *List) worker(ctx context.Context, wg *sync.WaitGroup, readyChan chan *task, cancel context.CancelFunc, workerID int) {
	for t := range readyChan {
		taskCtx, taskLogger := ctxlog.Scope(ctx, "workerID", workerID, "task", t.name)

		if ctx.Err() != nil {
			l.finish(wg, t, Skipped, ctx.Err())
			l.skipDependents(ctx, wg, t)
			continue
		}

		t.status.Store(int32(Running))
		if err := t.fn(taskCtx); err != nil {
			taskLogger.Debug("Task failed.", "error", err)
			l.finish(wg, t, Failed, err)
			cancel()
			l.skipDependents(ctx, wg, t)
			continue
		}

		l.finish(wg, t, Done, nil)
		for _, child := range t.children {
			if child.depCount.Add(-1) == 0 {
				readyChan <- child
			}
		}
	}
}

func (l *List) finish(wg *sync.WaitGroup, t *task, s Status, err error) {
	t.settle.Do(func() {
		t.err = err
		t.status.Store(int32(s))
		wg.Done()
	})
}

// skipDependents recursively marks all downstream tasks as skipped.
func (l *List) skipDependents(ctx context.Context, wg *sync.WaitGroup, t *task) {
	for _, child := range t.children {
		child.settle.Do(func() {
			ctxlog.FromContext(ctx).Debug("Skipping task due to upstream failure.", "task", child.name, "dependency", t.name)
			child.err = fmt.Errorf("skipped due to upstream failure of '%s'", t.name)
			child.status.Store(int32(Skipped))
			wg.Done()
		})
		l.skipDependents(ctx, wg, child)
	}
}
