// Package ledger persists enrichment jobs and their status transitions.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrJobNotFound       = errors.New("JOB_NOT_FOUND")
	ErrInvalidTransition = errors.New("INVALID_JOB_TRANSITION")
)

// Ledger is the job store used by the runner and the workers. Every write
// touches a single row.
type Ledger interface {
	Create(ctx context.Context, job *models.EnrichmentJob) (*models.EnrichmentJob, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, update models.JobUpdate) error
	Get(ctx context.Context, id string) (*models.EnrichmentJob, error)
	IncrementEnriched(ctx context.Context, id string, delta int) error
}

const Schema = `CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id                VARCHAR(64) PRIMARY KEY,
	user_id           VARCHAR(255) NOT NULL,
	original_filename TEXT NOT NULL,
	sources           JSONB NOT NULL DEFAULT '[]',
	total_records     INTEGER NOT NULL DEFAULT 0,
	enriched_count    INTEGER NOT NULL DEFAULT 0,
	status            VARCHAR(20) NOT NULL,
	input_file        TEXT NOT NULL,
	output_file       TEXT,
	mapping           JSONB NOT NULL DEFAULT '{}',
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	insertJobQuery = `INSERT INTO enrichment_jobs (id, user_id, original_filename, sources, total_records, enriched_count, status, input_file, mapping) VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8) RETURNING created_at, updated_at`

	selectJobQuery = `SELECT id, user_id, original_filename, sources, total_records, enriched_count, status, input_file, output_file, mapping, error_message, created_at, updated_at FROM enrichment_jobs WHERE id = $1`

	updateStatusQuery = `UPDATE enrichment_jobs SET status = $2, total_records = COALESCE($3, total_records), enriched_count = COALESCE($4, enriched_count), output_file = COALESCE($5, output_file), error_message = COALESCE($6, error_message), updated_at = NOW() WHERE id = $1 AND status = ANY($7)`

	incrementEnrichedQuery = `UPDATE enrichment_jobs SET enriched_count = enriched_count + $2, updated_at = NOW() WHERE id = $1 AND status = $3`

	selectStatusQuery = `SELECT status FROM enrichment_jobs WHERE id = $1`
)

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema creates the jobs table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create enrichment_jobs: %w", err)
	}
	return nil
}

// Create stores a new pending job. An empty ID is replaced by a fresh UUID.
func (l *PostgresLedger) Create(ctx context.Context, job *models.EnrichmentJob) (*models.EnrichmentJob, error) {
	created := *job
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.Status = models.JobStatusPending
	created.EnrichedCount = 0
	if created.Sources == nil {
		created.Sources = []string{}
	}
	if created.Mapping == nil {
		created.Mapping = models.ColumnMapping{}
	}

	sources, err := json.Marshal(created.Sources)
	if err != nil {
		return nil, fmt.Errorf("encode sources: %w", err)
	}
	mapping, err := json.Marshal(created.Mapping)
	if err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}

	err = l.db.QueryRowContext(ctx, insertJobQuery,
		created.ID, created.UserID, created.OriginalFilename, sources,
		created.TotalRecords, string(created.Status), created.InputFile, mapping,
	).Scan(&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewLedgerUpdateFailedError(created.ID, err)
	}

	return &created, nil
}

func (l *PostgresLedger) Get(ctx context.Context, id string) (*models.EnrichmentJob, error) {
	var (
		job                      models.EnrichmentJob
		status                   string
		sources, mapping         []byte
		outputFile, errorMessage sql.NullString
		createdAt, updatedAt     time.Time
	)

	err := l.db.QueryRowContext(ctx, selectJobQuery, id).Scan(
		&job.ID, &job.UserID, &job.OriginalFilename, &sources, &job.TotalRecords,
		&job.EnrichedCount, &status, &job.InputFile, &outputFile, &mapping,
		&errorMessage, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewJobNotFoundError(id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &job.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for job %s: %w", id, err)
		}
	}
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &job.Mapping); err != nil {
			return nil, fmt.Errorf("decode mapping for job %s: %w", id, err)
		}
	}
	job.Status = models.JobStatus(status)
	job.OutputFile = outputFile.String
	job.ErrorMessage = errorMessage.String
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt

	return &job, nil
}

// UpdateStatus moves a job to status and writes the non-nil fields of update
// in the same statement. The current status is checked in SQL so concurrent
// writers cannot skip a state.
func (l *PostgresLedger) UpdateStatus(ctx context.Context, id string, status models.JobStatus, update models.JobUpdate) error {
	from := status.AllowedFrom()
	if len(from) == 0 {
		return apperrors.NewInvalidJobTransitionError(id, fmt.Sprintf("no transition leads to %s", status), ErrInvalidTransition)
	}
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	res, err := l.db.ExecContext(ctx, updateStatusQuery,
		id, string(status), update.TotalRecords, update.EnrichedCount,
		update.OutputFile, update.ErrorMessage, pq.Array(allowed),
	)
	if err != nil {
		return apperrors.NewLedgerUpdateFailedError(id, err)
	}

	return l.checkAffected(ctx, id, res, fmt.Sprintf("to %s", status))
}

// IncrementEnriched adds delta to the enriched count of a running job.
func (l *PostgresLedger) IncrementEnriched(ctx context.Context, id string, delta int) error {
	res, err := l.db.ExecContext(ctx, incrementEnrichedQuery, id, delta, string(models.JobStatusRunning))
	if err != nil {
		return apperrors.NewLedgerUpdateFailedError(id, err)
	}
	return l.checkAffected(ctx, id, res, "increment requires running")
}

// checkAffected tells a missing job apart from a rejected transition when an
// update matched no row.
func (l *PostgresLedger) checkAffected(ctx context.Context, id string, res sql.Result, details string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewLedgerUpdateFailedError(id, err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = l.db.QueryRowContext(ctx, selectStatusQuery, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.NewJobNotFoundError(id, ErrJobNotFound)
	case err != nil:
		return apperrors.NewLedgerUpdateFailedError(id, err)
	default:
		return apperrors.NewInvalidJobTransitionError(id, fmt.Sprintf("from %s %s", current, details), ErrInvalidTransition)
	}
}
