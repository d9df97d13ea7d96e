// internal/workers/leads/create-enrichment-job/models.go
package createenrichmentjob

import "leadgen-workers/internal/models"

type Input struct {
	UserID           string               `json:"userId"`
	OriginalFilename string               `json:"originalFilename"`
	InputFile        string               `json:"inputFile"`
	Sources          []string             `json:"sources,omitempty"`
	Mapping          models.ColumnMapping `json:"mapping"`
}

type Output struct {
	JobID  string           `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

const inputSchema = `{
	"type": "object",
	"required": ["userId", "originalFilename", "inputFile", "mapping"],
	"properties": {
		"userId":           {"type": "string", "minLength": 1},
		"originalFilename": {"type": "string", "minLength": 1},
		"inputFile":        {"type": "string", "minLength": 1},
		"sources": {
			"type": "array",
			"items": {"type": "string", "enum": ["pappers", "google_places"]},
			"uniqueItems": true
		},
		"mapping": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {"type": "string"}
		}
	}
}`
