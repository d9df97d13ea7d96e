// Package leadindex makes enriched leads searchable in Elasticsearch.
package leadindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultIndex = "leads"

const indexMapping = `{
	"mappings": {
		"properties": {
			"job_id":        {"type": "keyword"},
			"user_id":       {"type": "keyword"},
			"row":           {"type": "integer"},
			"indexed_at":    {"type": "date"},
			"company_name":  {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"siren":         {"type": "keyword"},
			"siret":         {"type": "keyword"},
			"naf_code":      {"type": "keyword"},
			"postal_code":   {"type": "keyword"},
			"city":          {"type": "keyword"},
			"country_code":  {"type": "keyword"},
			"business_type": {"type": "keyword"},
			"rating":        {"type": "float"},
			"review_count":  {"type": "integer"}
		}
	}
}`

// Lead is one indexed document: an enriched record plus its origin.
type Lead struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Row       int       `json:"row"`
	IndexedAt time.Time `json:"indexed_at"`
	*models.EnrichedRecord
}

// DocumentID is "<jobID>-<row>", so re-indexing a job overwrites its documents.
func DocumentID(jobID string, row int) string {
	return fmt.Sprintf("%s-%d", jobID, row)
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.NewIndexingFailedError(i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewIndexingFailedError(i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewIndexingFailedError(i.index, fmt.Errorf("create index: %s", res.Status()))
	}

	i.logger.Info("lead index created", nil)
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// IndexLeads bulk-indexes leads and returns how many documents were accepted.
// Leads without a record are skipped.
func (i *Indexer) IndexLeads(ctx context.Context, leads []Lead) (int, error) {
	var body bytes.Buffer
	count := 0
	for _, lead := range leads {
		if lead.EnrichedRecord == nil {
			continue
		}
		if lead.IndexedAt.IsZero() {
			lead.IndexedAt = time.Now().UTC()
		}

		meta := map[string]map[string]string{"index": {"_id": DocumentID(lead.JobID, lead.Row)}}
		if err := json.NewEncoder(&body).Encode(meta); err != nil {
			return 0, apperrors.NewIndexingFailedError(i.index, err)
		}
		if err := json.NewEncoder(&body).Encode(lead); err != nil {
			return 0, apperrors.NewIndexingFailedError(i.index, err)
		}
		count++
	}
	if count == 0 {
		return 0, nil
	}

	res, err := i.client.Bulk(
		&body,
		i.client.Bulk.WithIndex(i.index),
		i.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return 0, apperrors.NewIndexingFailedError(i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, apperrors.NewIndexingFailedError(i.index, fmt.Errorf("bulk request: %s", res.Status()))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, apperrors.NewIndexingFailedError(i.index, fmt.Errorf("decode bulk response: %w", err))
	}

	indexed := count
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Error == nil {
					continue
				}
				indexed--
				i.logger.Warn("lead rejected by index", map[string]interface{}{
					"docId":  result.ID,
					"status": result.Status,
					"reason": result.Error.Reason,
				})
			}
		}
	}

	i.logger.Info("leads indexed", map[string]interface{}{
		"submitted": count,
		"indexed":   indexed,
	})

	return indexed, nil
}
