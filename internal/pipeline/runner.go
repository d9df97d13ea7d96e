// Package pipeline runs one enrichment job end to end: transcode the upload,
// enrich every row, write the output file and record progress in the ledger.
package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/observability"
	"leadgen-workers/internal/enrichment"
	"leadgen-workers/internal/leadindex"
	"leadgen-workers/internal/ledger"
	"leadgen-workers/internal/models"
	"leadgen-workers/internal/transcode"
)

const (
	DefaultProgressEvery  = 10
	DefaultIndexBatchSize = 500

	enrichedSuffix = ".enriched"
	enrichedPrefix = "enriched_"
)

// Enricher resolves one query against the enabled sources.
type Enricher interface {
	EnrichFrom(ctx context.Context, q models.EnrichmentQuery, enabled enrichment.Sources) *models.EnrichedRecord
}

type Indexer interface {
	IndexLeads(ctx context.Context, leads []leadindex.Lead) (int, error)
}

type Notifier interface {
	JobFinished(ctx context.Context, job *models.EnrichmentJob, recipient string) error
}

type Config struct {
	ProgressEvery int
	IndexEnabled  bool
	// IndexBatchSize bounds the leads sent in one bulk request.
	IndexBatchSize int
}

// Result is the final state of a run. ErrorCode is set when the job failed.
type Result struct {
	Job          *models.EnrichmentJob
	IndexedCount int
	ErrorCode    apperrors.ErrorCode
}

type Runner struct {
	ledger   ledger.Ledger
	enricher Enricher
	indexer  Indexer
	notifier Notifier
	obs      *observability.Observability
	config   Config
	logger   logger.Logger
}

// Options carries the optional sinks. Nil fields are skipped.
type Options struct {
	Indexer       Indexer
	Notifier      Notifier
	Observability *observability.Observability
}

func NewRunner(l ledger.Ledger, enricher Enricher, config Config, opts Options, log logger.Logger) *Runner {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultProgressEvery
	}
	if config.IndexBatchSize <= 0 {
		config.IndexBatchSize = DefaultIndexBatchSize
	}
	obs := opts.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Runner{
		ledger:   l,
		enricher: enricher,
		indexer:  opts.Indexer,
		notifier: opts.Notifier,
		obs:      obs,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// OutputPath is where the enriched copy of inputFile is written:
// "<dir>/<base>.enriched<ext>".
func OutputPath(inputFile string) string {
	ext := filepath.Ext(inputFile)
	base := strings.TrimSuffix(filepath.Base(inputFile), ext)
	return filepath.Join(filepath.Dir(inputFile), base+enrichedSuffix+ext)
}

// Run processes a pending job. Processing failures (empty file, unreadable
// input, unwritable output) are recorded on the job and reported through
// Result.ErrorCode. A non-nil error means the ledger itself could not be
// read or written.
func (r *Runner) Run(ctx context.Context, jobID, notifyEmail string) (*Result, error) {
	start := time.Now()

	job, err := r.ledger.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.UpdateStatus(ctx, job.ID, models.JobStatusRunning, models.JobUpdate{}); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusRunning

	log := r.logger.WithFields(map[string]interface{}{"jobId": job.ID})
	log.Info("enrichment job started", map[string]interface{}{
		"inputFile": job.InputFile,
		"sources":   job.Sources,
	})

	stats, procErr := r.process(ctx, job, log)
	job.TotalRecords = stats.total
	job.EnrichedCount = stats.enriched

	if procErr != nil {
		var ledgerErr *ledgerError
		if errors.As(procErr, &ledgerErr) {
			return nil, ledgerErr.err
		}
		return r.fail(ctx, job, procErr, notifyEmail, start, log)
	}

	outputFile := stats.outputFile
	if err := r.ledger.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, models.JobUpdate{
		TotalRecords:  &stats.total,
		EnrichedCount: &stats.enriched,
		OutputFile:    &outputFile,
	}); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusCompleted
	job.OutputFile = outputFile

	log.Info("enrichment job completed", map[string]interface{}{
		"totalRecords":  stats.total,
		"enrichedCount": stats.enriched,
		"outputFile":    outputFile,
		"durationMs":    time.Since(start).Milliseconds(),
	})

	r.flushLeads(ctx, &stats, log)
	r.notify(ctx, job, notifyEmail, log)
	r.record(ctx, job, start)

	return &Result{Job: job, IndexedCount: stats.indexed}, nil
}

type runStats struct {
	total      int
	enriched   int
	outputFile string
	// reported is the enriched count already written to the ledger.
	reported int
	// leads waits for the next bulk request; indexed counts accepted documents.
	leads   []leadindex.Lead
	indexed int
}

// ledgerError marks a ledger failure raised mid-run so Run can propagate it
// instead of recording it on the job.
type ledgerError struct {
	err error
}

func (e *ledgerError) Error() string { return e.err.Error() }
func (e *ledgerError) Unwrap() error { return e.err }

func (r *Runner) process(ctx context.Context, job *models.EnrichmentJob, log logger.Logger) (runStats, error) {
	var stats runStats

	mappedPath, err := transcode.Transcode(job.InputFile, job.Mapping)
	if err != nil {
		return stats, err
	}

	in, err := os.Open(mappedPath)
	if err != nil {
		return stats, apperrors.NewFileReadFailedError(mappedPath, err)
	}
	defer in.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return stats, apperrors.NewFileReadFailedError(mappedPath, err)
	}
	columns := indexColumns(headers)

	outPath := OutputPath(job.InputFile)
	out, err := os.Create(outPath)
	if err != nil {
		return stats, apperrors.NewFileWriteFailedError(outPath, err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	if err := writer.Write(outputHeader(headers)); err != nil {
		return stats, apperrors.NewFileWriteFailedError(outPath, err)
	}

	sources := enrichment.SourcesFor(job)
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Warn("skipping malformed row", map[string]interface{}{
					"line":  parseErr.Line,
					"error": parseErr.Err.Error(),
				})
				continue
			}
			return stats, apperrors.NewFileReadFailedError(mappedPath, err)
		}

		row++
		stats.total++

		var enriched *models.EnrichedRecord
		if q := BuildQuery(record, columns); q != nil {
			enriched = r.enricher.EnrichFrom(ctx, *q, sources)
		}
		if enriched != nil {
			stats.enriched++
			if r.indexing() {
				stats.leads = append(stats.leads, leadindex.Lead{
					JobID:          job.ID,
					UserID:         job.UserID,
					Row:            row,
					EnrichedRecord: enriched,
				})
				if len(stats.leads) >= r.config.IndexBatchSize {
					r.flushLeads(ctx, &stats, log)
				}
			}
		}

		if len(record) > len(headers) {
			line, _ := reader.FieldPos(0)
			log.Warn("row wider than header, extra fields dropped", map[string]interface{}{
				"line":   line,
				"fields": len(record),
				"width":  len(headers),
			})
		}

		if err := writer.Write(append(fitWidth(record, len(headers)), enriched.Values()...)); err != nil {
			return stats, apperrors.NewFileWriteFailedError(outPath, err)
		}

		if stats.total%r.config.ProgressEvery == 0 {
			writer.Flush()
			if err := r.progress(ctx, job.ID, &stats); err != nil {
				return stats, &ledgerError{err: err}
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, apperrors.NewFileWriteFailedError(outPath, err)
	}
	if err := out.Sync(); err != nil {
		return stats, apperrors.NewFileWriteFailedError(outPath, err)
	}

	stats.outputFile = outPath
	return stats, nil
}

// progress records the row count and adds the rows enriched since the last
// write to the ledger.
func (r *Runner) progress(ctx context.Context, jobID string, stats *runStats) error {
	total := stats.total
	if err := r.ledger.UpdateStatus(ctx, jobID, models.JobStatusRunning, models.JobUpdate{
		TotalRecords: &total,
	}); err != nil {
		return err
	}
	if delta := stats.enriched - stats.reported; delta > 0 {
		if err := r.ledger.IncrementEnriched(ctx, jobID, delta); err != nil {
			return err
		}
		stats.reported = stats.enriched
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, job *models.EnrichmentJob, cause error, notifyEmail string, start time.Time, log logger.Logger) (*Result, error) {
	stdErr := apperrors.Normalize(cause)
	message := stdErr.Message
	if stdErr.Details != "" {
		message = fmt.Sprintf("%s (%s)", stdErr.Message, stdErr.Details)
	}

	if err := r.ledger.UpdateStatus(ctx, job.ID, models.JobStatusFailed, models.JobUpdate{
		TotalRecords:  &job.TotalRecords,
		EnrichedCount: &job.EnrichedCount,
		ErrorMessage:  &message,
	}); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = message

	log.Error("enrichment job failed", map[string]interface{}{
		"errorCode": stdErr.Code,
		"error":     cause.Error(),
	})

	r.notify(ctx, job, notifyEmail, log)
	r.record(ctx, job, start)

	return &Result{Job: job, ErrorCode: stdErr.Code}, nil
}

func (r *Runner) indexing() bool {
	return r.config.IndexEnabled && r.indexer != nil
}

// flushLeads sends the buffered leads in one bulk request. Failures are
// logged and the batch is dropped.
func (r *Runner) flushLeads(ctx context.Context, stats *runStats, log logger.Logger) {
	if !r.indexing() || len(stats.leads) == 0 {
		return
	}
	n, err := r.indexer.IndexLeads(ctx, stats.leads)
	if err != nil {
		log.Warn("lead indexing failed", map[string]interface{}{
			"batch": len(stats.leads),
			"error": err.Error(),
		})
	} else {
		stats.indexed += n
	}
	stats.leads = stats.leads[:0]
}

func (r *Runner) notify(ctx context.Context, job *models.EnrichmentJob, recipient string, log logger.Logger) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.JobFinished(ctx, job, recipient); err != nil {
		log.Warn("job notification failed", map[string]interface{}{"error": err.Error()})
	}
}

func (r *Runner) record(ctx context.Context, job *models.EnrichmentJob, start time.Time) {
	status := string(job.Status)
	r.obs.RecordJobProcessed(ctx, status)
	r.obs.RecordJobDuration(ctx, time.Since(start), status)
	r.obs.RecordRecords(ctx, job.TotalRecords, job.EnrichedCount)
}

// BuildQuery derives the lookup for one transcoded row. The identifier is the
// first non-blank of siret, siren and company_name; the location is
// "address, zip_code city" when an address is present, else the city. Rows
// without an identifier yield nil.
func BuildQuery(record []string, columns map[models.CanonicalField]int) *models.EnrichmentQuery {
	get := func(f models.CanonicalField) string {
		i, ok := columns[f]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	identifier := firstNonBlank(get(models.FieldSiret), get(models.FieldSiren), get(models.FieldCompanyName))
	if identifier == "" {
		return nil
	}

	q := &models.EnrichmentQuery{Identifier: identifier}

	address, zip, city := get(models.FieldAddress), get(models.FieldZipCode), get(models.FieldCity)
	switch {
	case address != "":
		loc := address
		if locality := strings.TrimSpace(zip + " " + city); locality != "" {
			loc += ", " + locality
		}
		q.Location = &loc
	case city != "":
		q.Location = &city
	}

	return q
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// indexColumns finds the position of each canonical field in a transcoded
// header. The first occurrence wins.
func indexColumns(headers []string) map[models.CanonicalField]int {
	columns := make(map[models.CanonicalField]int)
	for i, h := range headers {
		def, ok := models.LookupField(strings.TrimSpace(h))
		if !ok {
			continue
		}
		if _, seen := columns[def.Key]; !seen {
			columns[def.Key] = i
		}
	}
	return columns
}

func outputHeader(headers []string) []string {
	out := make([]string, 0, len(headers)+len(models.EnrichedColumns()))
	out = append(out, headers...)
	for _, c := range models.EnrichedColumns() {
		out = append(out, enrichedPrefix+c)
	}
	return out
}

// fitWidth pads or truncates a row to the header width so enrichment columns
// line up. Callers log truncation.
func fitWidth(record []string, width int) []string {
	out := make([]string, width)
	copy(out, record)
	return out
}
