// internal/workers/leads/enrich-company/models.go
package enrichcompany

import "leadgen-workers/internal/models"

type Input struct {
	Identifier string   `json:"identifier"`
	Location   *string  `json:"location,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// Output.Record is null when no source knew the company.
type Output struct {
	Found  bool                   `json:"found"`
	Record *models.EnrichedRecord `json:"record"`
}
