package enrichcompany

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/enrichment"
	"leadgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) EnrichFrom(ctx context.Context, q models.EnrichmentQuery, enabled enrichment.Sources) *models.EnrichedRecord {
	args := m.Called(ctx, q, enabled)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.EnrichedRecord)
}

func createTestHandler(t *testing.T, e *MockEnricher) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, e, logger.NewTestLogger(t))
}

func TestHandler_Execute_Found(t *testing.T) {
	e := new(MockEnricher)
	record := &models.EnrichedRecord{CompanyName: "GOOGLE FRANCE", Siren: "443061841", City: "Paris"}
	e.On("EnrichFrom", mock.Anything, mock.MatchedBy(func(q models.EnrichmentQuery) bool {
		return q.Identifier == "443061841" && q.Location != nil && *q.Location == "Paris"
	}), enrichment.AllSources()).Return(record)

	location := "  Paris "
	output, err := createTestHandler(t, e).Execute(context.Background(), &Input{
		Identifier: " 443061841 ",
		Location:   &location,
	})

	require.NoError(t, err)
	assert.True(t, output.Found)
	assert.Equal(t, record, output.Record)
	e.AssertExpectations(t)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	e := new(MockEnricher)
	e.On("EnrichFrom", mock.Anything, models.EnrichmentQuery{Identifier: "Nowhere SARL"},
		enrichment.Sources{Legal: false, Places: true}).Return(nil)

	blank := " "
	output, err := createTestHandler(t, e).Execute(context.Background(), &Input{
		Identifier: "Nowhere SARL",
		Location:   &blank,
		Sources:    []string{models.SourcePlaces},
	})

	require.NoError(t, err)
	assert.False(t, output.Found)
	assert.Nil(t, output.Record)

	body, err := json.Marshal(output)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":false,"record":null}`, string(body))
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{"blank identifier", &Input{Identifier: "  "}},
		{"unknown source", &Input{Identifier: "ACME", Sources: []string{"linkedin"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := new(MockEnricher)
			output, err := createTestHandler(t, e).Execute(context.Background(), tt.input)

			require.Error(t, err)
			assert.Nil(t, output)
			assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.Normalize(err).Code)
			e.AssertNotCalled(t, "EnrichFrom", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
