package runenrichmentjob

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/ledger"
	"leadgen-workers/internal/models"
	"leadgen-workers/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, jobID, notifyEmail string) (*pipeline.Result, error) {
	args := m.Called(ctx, jobID, notifyEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func createTestHandler(t *testing.T, runner *MockRunner) *Handler {
	return NewHandler(&Config{Timeout: time.Minute}, runner, logger.NewTestLogger(t))
}

func TestHandler_Execute_Completed(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "job-1", "sales@client.example").Return(&pipeline.Result{
		Job: &models.EnrichmentJob{
			ID:            "job-1",
			Status:        models.JobStatusCompleted,
			TotalRecords:  120,
			EnrichedCount: 97,
			OutputFile:    "/data/prospects.enriched.csv",
		},
		IndexedCount: 95,
	}, nil)

	output, err := createTestHandler(t, runner).Execute(context.Background(), &Input{
		JobID:       "job-1",
		NotifyEmail: "sales@client.example",
	})

	require.NoError(t, err)
	assert.Equal(t, &Output{
		JobID:         "job-1",
		Status:        models.JobStatusCompleted,
		TotalRecords:  120,
		EnrichedCount: 97,
		IndexedCount:  95,
		OutputFile:    "/data/prospects.enriched.csv",
	}, output)
	runner.AssertExpectations(t)
}

func TestHandler_Execute_FailedJobBecomesBPMNError(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "job-2", "").Return(&pipeline.Result{
		Job: &models.EnrichmentJob{
			ID:           "job-2",
			Status:       models.JobStatusFailed,
			ErrorMessage: "Uploaded file is empty (file: /data/empty.csv)",
		},
		ErrorCode: apperrors.ErrCodeEmptyFile,
	}, nil)

	output, err := createTestHandler(t, runner).Execute(context.Background(), &Input{JobID: "job-2"})

	require.Error(t, err)
	require.NotNil(t, output)
	assert.Equal(t, models.JobStatusFailed, output.Status)

	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeEmptyFile, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	bpmnErr := apperrors.ConvertToBPMNError(stdErr)
	assert.Equal(t, "EMPTY_FILE", bpmnErr.Code)
	assert.Zero(t, bpmnErr.Retries)
}

func TestHandler_Execute_LedgerErrorsPropagate(t *testing.T) {
	runner := new(MockRunner)
	notFound := apperrors.NewJobNotFoundError("missing", ledger.ErrJobNotFound)
	runner.On("Run", mock.Anything, "missing", "").Return(nil, notFound)

	output, err := createTestHandler(t, runner).Execute(context.Background(), &Input{JobID: "missing"})

	assert.Nil(t, output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrJobNotFound))
}

func TestHandler_Execute_RequiresJobID(t *testing.T) {
	runner := new(MockRunner)

	_, err := createTestHandler(t, runner).Execute(context.Background(), &Input{JobID: "  "})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.Normalize(err).Code)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}
