package notary

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one deferred notarization request.
type Task struct {
	Namespace string
	RelPath   string
	Networks  []string
}

// Queue runs notarization tasks on a single background worker. Fire and
// forget: enqueueing gives no completion signal; outcomes land in the
// document's validation history.
type Queue struct {
	orch   *Orchestrator
	logger *slog.Logger

	tasks chan Task
	wg    sync.WaitGroup
	once  sync.Once
}

// NewQueue builds a queue over orch with the given buffer depth.
func NewQueue(orch *Orchestrator, depth int, logger *slog.Logger) *Queue {
	if depth <= 0 {
		depth = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		orch:   orch,
		logger: logger,
		tasks:  make(chan Task, depth),
	}
}

// Start launches the worker. Call once.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		err := q.orch.Notarize(context.Background(), task.Namespace, task.RelPath, task.Networks)
		if err != nil {
			q.logger.Warn("notarization failed",
				"namespace", task.Namespace, "path", task.RelPath, "error", err)
			continue
		}
		q.logger.Info("notarization recorded",
			"namespace", task.Namespace, "path", task.RelPath)
	}
}

// Enqueue hands a task to the worker. It blocks when the buffer is full.
func (q *Queue) Enqueue(task Task) {
	q.tasks <- task
}

// Stop drains outstanding tasks and waits for the worker to exit.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.tasks) })
	q.wg.Wait()
}
