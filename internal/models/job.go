// internal/models/job.go
package models

import "time"

// Enrichment source names as stored on a job.
const (
	SourcePappers = "pappers"
	SourcePlaces  = "google_places"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition allows pending→running→completed|failed, pending→failed, and
// running→running for progress writes.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusRunning || to == JobStatusFailed
	case JobStatusRunning:
		return to == JobStatusRunning || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// AllowedFrom lists the statuses a job may be in before moving to s.
func (s JobStatus) AllowedFrom() []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed} {
		if from.CanTransition(s) {
			out = append(out, from)
		}
	}
	return out
}

// EnrichmentJob is the ledger entry for one uploaded file.
type EnrichmentJob struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	OriginalFilename string        `json:"originalFilename"`
	Sources          []string      `json:"sources"`
	TotalRecords     int           `json:"totalRecords"`
	EnrichedCount    int           `json:"enrichedCount"`
	Status           JobStatus     `json:"status"`
	InputFile        string        `json:"inputFile"`
	OutputFile       string        `json:"outputFile,omitempty"`
	Mapping          ColumnMapping `json:"mapping"`
	ErrorMessage     string        `json:"errorMessage,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// HasSource reports whether the named enrichment source is enabled for the job.
// A job with no explicit sources uses all of them.
func (j *EnrichmentJob) HasSource(name string) bool {
	if len(j.Sources) == 0 {
		return true
	}
	for _, s := range j.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// JobUpdate carries the optional fields written alongside a status change.
type JobUpdate struct {
	TotalRecords  *int
	EnrichedCount *int
	OutputFile    *string
	ErrorMessage  *string
}
