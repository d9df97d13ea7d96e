// internal/workers/leads/run-enrichment-job/models.go
package runenrichmentjob

import "leadgen-workers/internal/models"

type Input struct {
	JobID       string `json:"jobId"`
	NotifyEmail string `json:"notifyEmail,omitempty"`
}

type Output struct {
	JobID         string           `json:"jobId"`
	Status        models.JobStatus `json:"status"`
	TotalRecords  int              `json:"totalRecords"`
	EnrichedCount int              `json:"enrichedCount"`
	IndexedCount  int              `json:"indexedCount"`
	OutputFile    string           `json:"outputFile,omitempty"`
	ErrorMessage  string           `json:"errorMessage,omitempty"`
}
