package createenrichmentjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/common/validation"
	"leadgen-workers/internal/ledger"
	"leadgen-workers/internal/mapping"
	"leadgen-workers/internal/models"
	"leadgen-workers/internal/transcode"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-enrichment-job"

var schema = validation.MustCompileSchema(inputSchema)

// identifierFields are the columns a row can be looked up by.
var identifierFields = []models.CanonicalField{models.FieldSiret, models.FieldSiren, models.FieldCompanyName}

type Handler struct {
	config       *Config
	ledger       ledger.Ledger
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, l ledger.Ledger, log logger.Logger) *Handler {
	hl := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		ledger:       l,
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

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInvalidJobInputError(fmt.Sprintf("parse variables: %v", err))
	}

	result := schema.ValidateInput(variables)
	if !result.Valid {
		return nil, apperrors.NewInvalidJobInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidJobInputError(fmt.Sprintf("decode input: %v", err))
	}
	return &input, nil
}

// Execute checks the confirmed mapping against the uploaded file and records a
// pending job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.checkStorage(input.InputFile); err != nil {
		return nil, err
	}

	m, err := cleanMapping(input.Mapping)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(input.InputFile)
	if err != nil {
		return nil, err
	}
	if missing := missingColumns(m, header); len(missing) > 0 {
		return nil, apperrors.NewInvalidMappingError(fmt.Sprintf("columns not in file header: %s", strings.Join(missing, ", ")))
	}

	if _, mismatches, err := transcode.HeaderWidthMismatch(input.InputFile); err == nil && len(mismatches) > 0 {
		h.logger.Warn("rows differ in width from the header", map[string]interface{}{
			"inputFile":  input.InputFile,
			"rows":       len(mismatches),
			"firstLine":  mismatches[0].Line,
			"firstWidth": mismatches[0].Fields,
		})
	}

	created, err := h.ledger.Create(ctx, &models.EnrichmentJob{
		UserID:           input.UserID,
		OriginalFilename: input.OriginalFilename,
		Sources:          input.Sources,
		InputFile:        input.InputFile,
		Mapping:          m,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("enrichment job created", map[string]interface{}{
		"jobId":   created.ID,
		"userId":  created.UserID,
		"mapped":  len(m),
		"sources": created.Sources,
	})

	return &Output{JobID: created.ID, Status: created.Status}, nil
}

func (h *Handler) checkStorage(path string) error {
	if h.config.StorageDir == "" {
		return nil
	}
	rel, err := filepath.Rel(filepath.Clean(h.config.StorageDir), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return apperrors.NewInvalidJobInputError(fmt.Sprintf("inputFile %s is outside the upload directory", path))
	}
	return nil
}

// cleanMapping drops unbound fields and rejects unknown keys and mappings
// that leave rows without an identifier.
func cleanMapping(in models.ColumnMapping) (models.ColumnMapping, error) {
	out := make(models.ColumnMapping, len(in))
	var unknown []string
	for field, column := range in {
		if _, ok := models.LookupField(string(field)); !ok {
			unknown = append(unknown, string(field))
			continue
		}
		if column = strings.TrimSpace(column); column != "" {
			out[field] = column
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperrors.NewInvalidMappingError(fmt.Sprintf("unknown fields: %s", strings.Join(unknown, ", ")))
	}

	for _, f := range identifierFields {
		if _, ok := out[f]; ok {
			return out, nil
		}
	}
	return nil, apperrors.NewInvalidMappingError("one of siret, siren or company_name must be mapped")
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFileReadFailedError(path, err)
	}
	defer f.Close()

	header, _, err := mapping.ReadSample(f, 1)
	if errors.Is(err, mapping.ErrNoHeader) {
		return nil, apperrors.NewEmptyFileError(path, transcode.ErrEmptyFile)
	}
	if err != nil {
		return nil, apperrors.NewFileReadFailedError(path, err)
	}
	return header, nil
}

func missingColumns(m models.ColumnMapping, header []string) []string {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, column := range m {
		if !present[column] {
			missing = append(missing, column)
			present[column] = true
		}
	}
	sort.Strings(missing)
	return missing
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
