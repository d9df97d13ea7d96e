package runenrichmentjob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "run-enrichment-job"

// JobRunner is satisfied by *pipeline.Runner.
type JobRunner interface {
	Run(ctx context.Context, jobID, notifyEmail string) (*pipeline.Result, error)
}

type Handler struct {
	config       *Config
	runner       JobRunner
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, runner JobRunner, log logger.Logger) *Handler {
	hl := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		logger:       hl,
		errorHandler: apperrors.NewErrorHandler(hl),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute runs the job to a terminal status. A job that ends failed returns
// its output together with a non-retryable error carrying the failure code,
// so the process can route on it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.JobID) == "" {
		return nil, apperrors.NewInvalidJobInputError("jobId is required")
	}

	result, err := h.runner.Run(ctx, input.JobID, input.NotifyEmail)
	if err != nil {
		return nil, err
	}

	job := result.Job
	output := &Output{
		JobID:         job.ID,
		Status:        job.Status,
		TotalRecords:  job.TotalRecords,
		EnrichedCount: job.EnrichedCount,
		IndexedCount:  result.IndexedCount,
		OutputFile:    job.OutputFile,
		ErrorMessage:  job.ErrorMessage,
	}

	if result.ErrorCode != "" {
		return output, &apperrors.StandardError{
			Code:      result.ErrorCode,
			Message:   "Enrichment job failed",
			Details:   fmt.Sprintf("jobId: %s, error: %s", job.ID, job.ErrorMessage),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}
