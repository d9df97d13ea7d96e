// internal/workers/leads/suggest-column-mapping/models.go
package suggestcolumnmapping

import "leadgen-workers/internal/models"

// Input either carries the header and sample rows directly or points at the
// uploaded file to read them from.
type Input struct {
	Columns   []string            `json:"columns,omitempty"`
	Sample    []map[string]string `json:"sample,omitempty"`
	InputFile string              `json:"inputFile,omitempty"`
}

type Output struct {
	Columns    []string                           `json:"columns"`
	Mapping    models.ColumnMapping               `json:"mapping"`
	Completion models.CompletionStats             `json:"completion"`
	Duplicates map[string][]models.CanonicalField `json:"duplicates,omitempty"`
	Fields     []models.FieldDefinition           `json:"fields"`
}
