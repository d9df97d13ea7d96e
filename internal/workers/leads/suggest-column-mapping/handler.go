package suggestcolumnmapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/mapping"
	"leadgen-workers/internal/models"
	"leadgen-workers/internal/transcode"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "suggest-column-mapping"

type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config.SampleSize <= 0 {
		config.SampleSize = mapping.DefaultSampleSize
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
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

// Execute suggests a mapping for the given header. When only a file is
// given, the header and a bounded sample are read from it first.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	columns, sample := input.Columns, input.Sample

	if len(columns) == 0 {
		if input.InputFile == "" {
			return nil, apperrors.NewInvalidJobInputError("either columns or inputFile is required")
		}
		var err error
		columns, sample, err = h.readSample(input.InputFile)
		if err != nil {
			return nil, err
		}
	}

	suggestion := mapping.Suggest(columns, sample)

	if len(suggestion.Duplicates) > 0 {
		h.logger.Warn("columns bound to several fields", map[string]interface{}{
			"duplicates": suggestion.Duplicates,
		})
	}

	h.logger.Info("mapping suggested", map[string]interface{}{
		"columns":     len(columns),
		"sampleRows":  len(sample),
		"mappedCount": len(suggestion.Mapping),
	})

	return &Output{
		Columns:    columns,
		Mapping:    suggestion.Mapping,
		Completion: suggestion.Completion,
		Duplicates: suggestion.Duplicates,
		Fields:     models.CanonicalFields(),
	}, nil
}

func (h *Handler) readSample(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewFileReadFailedError(path, err)
	}
	defer f.Close()

	columns, sample, err := mapping.ReadSample(f, h.config.SampleSize)
	if errors.Is(err, mapping.ErrNoHeader) {
		return nil, nil, apperrors.NewEmptyFileError(path, transcode.ErrEmptyFile)
	}
	if err != nil {
		return nil, nil, apperrors.NewFileReadFailedError(path, err)
	}
	return columns, sample, nil
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
