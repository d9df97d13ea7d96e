// internal/workers/leads/enrich-company/handler.go
package enrichcompany

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/enrichment"
	"leadgen-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "enrich-company"

// Enricher is satisfied by *enrichment.Merger.
type Enricher interface {
	EnrichFrom(ctx context.Context, q models.EnrichmentQuery, enabled enrichment.Sources) *models.EnrichedRecord
}

type Handler struct {
	config       *Config
	enricher     Enricher
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, enricher Enricher, log logger.Logger) *Handler {
	hl := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		enricher:     enricher,
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

// Execute enriches a single company. Source failures degrade to "not found"
// rather than failing the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, apperrors.NewInvalidJobInputError("identifier is required")
	}
	if err := checkSources(input.Sources); err != nil {
		return nil, err
	}

	q := models.EnrichmentQuery{Identifier: identifier}
	if input.Location != nil {
		if loc := strings.TrimSpace(*input.Location); loc != "" {
			q.Location = &loc
		}
	}

	record := h.enricher.EnrichFrom(ctx, q, enrichment.ParseSources(input.Sources))

	h.logger.Debug("company enriched", map[string]interface{}{
		"identifier": identifier,
		"found":      record != nil,
	})

	return &Output{Found: record != nil, Record: record}, nil
}

func checkSources(names []string) error {
	for _, name := range names {
		if name != models.SourcePappers && name != models.SourcePlaces {
			return apperrors.NewInvalidJobInputError(fmt.Sprintf("unknown source %q", name))
		}
	}
	return nil
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
