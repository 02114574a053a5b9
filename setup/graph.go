package setup

// This file contains the task graph used to build the features: a static
// list of tasks with declared predecessors, run on a bounded worker pool.

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of setup work. It runs after every task named in After
// succeeded.
type Task struct {
	Name  string
	After []string
	Run   func(ctx context.Context) error
}

type Graph struct {
	logger  zerolog.Logger
	workers int64
	tasks   []Task
}

func NewGraph(logger zerolog.Logger, workers int) *Graph {
	if workers < 1 {
		workers = 1
	}
	return &Graph{logger: logger, workers: int64(workers)}
}

func (g *Graph) Add(task Task) {
	g.tasks = append(g.tasks, task)
}

// order sorts the tasks topologically and rejects unknown predecessors and
// cycles.
func (g *Graph) order() ([]Task, error) {
	byName := make(map[string]Task, len(g.tasks))
	for _, t := range g.tasks {
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		byName[t.Name] = t
	}

	inDegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string)
	for _, t := range g.tasks {
		for _, dep := range t.After {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", t.Name, dep)
			}
			inDegree[t.Name]++
			dependents[dep] = append(dependents[dep], t.Name)
		}
	}

	var queue []string
	for _, t := range g.tasks {
		if inDegree[t.Name] == 0 {
			queue = append(queue, t.Name)
		}
	}

	sorted := make([]Task, 0, len(g.tasks))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byName[name])
		next := dependents[name]
		sort.Strings(next)
		for _, d := range next {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if len(sorted) != len(g.tasks) {
		return nil, fmt.Errorf("task graph contains a cycle")
	}
	return sorted, nil
}

// Run executes every task and blocks until all of them finished. A failed
// task skips its dependents; the other tasks still run. The returned error
// aggregates every failed or skipped task.
func (g *Graph) Run(ctx context.Context) error {
	tasks, err := g.order()
	if err != nil {
		return err
	}

	done := make(map[string]chan struct{}, len(tasks))
	for _, t := range tasks {
		done[t.Name] = make(chan struct{})
	}

	var (
		mu     sync.Mutex
		errs   *multierror.Error
		failed = make(map[string]bool)
	)
	fail := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed[name] = true
		errs = multierror.Append(errs, fmt.Errorf("task %s: %w", name, err))
	}
	hasFailed := func(name string) bool {
		mu.Lock()
		defer mu.Unlock()
		return failed[name]
	}

	sem := semaphore.NewWeighted(g.workers)
	var eg errgroup.Group
	for _, t := range tasks {
		eg.Go(func() error {
			defer close(done[t.Name])

			for _, dep := range t.After {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					fail(t.Name, ctx.Err())
					return nil
				}
				if hasFailed(dep) {
					fail(t.Name, fmt.Errorf("skipped, predecessor %s failed", dep))
					return nil
				}
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				fail(t.Name, err)
				return nil
			}
			defer sem.Release(1)

			g.logger.Debug().Str("task", t.Name).Msg("Running setup task")
			if err := t.Run(ctx); err != nil {
				fail(t.Name, err)
				return nil
			}
			g.logger.Debug().Str("task", t.Name).Msg("Setup task done")
			return nil
		})
	}
	_ = eg.Wait()

	return errs.ErrorOrNil()
}
