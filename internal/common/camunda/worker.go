// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"leadgen-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// WorkerOptions are the per task type polling settings.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// Workers tracks the job workers opened by the process so they can be
// closed together on shutdown.
type Workers struct {
	mu      sync.Mutex
	client  zbc.Client
	workers map[string]worker.JobWorker
	logger  logger.Logger
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		workers: make(map[string]worker.JobWorker),
		logger:  log,
	}
}

// Start opens a job worker for taskType.
func (w *Workers) Start(taskType string, opts WorkerOptions, handler worker.JobHandler) {
	jobWorker := w.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(taskType + "-worker").
		Open()

	w.mu.Lock()
	w.workers[taskType] = jobWorker
	w.mu.Unlock()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
}

// TaskTypes lists the started workers.
func (w *Workers) TaskTypes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.workers))
	for t := range w.workers {
		out = append(out, t)
	}
	return out
}

// Close stops polling and waits for in-flight jobs of every worker.
func (w *Workers) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for taskType, jobWorker := range w.workers {
		w.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jobWorker.Close()
		jobWorker.AwaitClose()
		delete(w.workers, taskType)
	}
}
