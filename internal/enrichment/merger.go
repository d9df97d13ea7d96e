// Package enrichment looks a company up in the legal registry and the places
// source and merges both answers into one EnrichedRecord.
package enrichment

import (
	"context"
	"fmt"
	"strings"

	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/models"
)

// LegalSource answers company lookups from a legal registry.
type LegalSource interface {
	Lookup(ctx context.Context, q models.LegalQuery) (*models.LegalData, error)
}

// PlacesSource answers business lookups from a places/reviews provider.
type PlacesSource interface {
	Lookup(ctx context.Context, query string, location *string) (*models.PlacesData, error)
}

// Sources toggles each source for one call.
type Sources struct {
	Legal  bool
	Places bool
}

// AllSources enables every source.
func AllSources() Sources {
	return Sources{Legal: true, Places: true}
}

// SourcesFor derives the enabled sources from a job's source list.
func SourcesFor(job *models.EnrichmentJob) Sources {
	return Sources{
		Legal:  job.HasSource(models.SourcePappers),
		Places: job.HasSource(models.SourcePlaces),
	}
}

// ParseSources reads a list of source names. An empty list enables everything.
func ParseSources(names []string) Sources {
	return SourcesFor(&models.EnrichmentJob{Sources: names})
}

type Merger struct {
	legal  LegalSource
	places PlacesSource
	logger logger.Logger
}

// NewMerger wires the two sources. Either may be nil, in which case it is
// treated as always returning nothing.
func NewMerger(legal LegalSource, places PlacesSource, log logger.Logger) *Merger {
	return &Merger{
		legal:  legal,
		places: places,
		logger: log.WithFields(map[string]interface{}{"component": "enrichment"}),
	}
}

// Enrich runs one query against every source and formats the result. It never
// fails; a nil record means neither source found anything.
func (m *Merger) Enrich(ctx context.Context, q models.EnrichmentQuery) *models.EnrichedRecord {
	return m.EnrichFrom(ctx, q, AllSources())
}

// EnrichFrom is Enrich restricted to the enabled sources.
func (m *Merger) EnrichFrom(ctx context.Context, q models.EnrichmentQuery, enabled Sources) *models.EnrichedRecord {
	outcome := m.Resolve(ctx, q, enabled)
	metrics.EnrichmentRecords.WithLabelValues(outcome.Kind.String()).Inc()
	return FormatResult(outcome)
}

// Resolve queries the sources in order: the legal registry first, then the
// places source using the legal company name and registered address as hints
// when the caller gave none. Source errors are logged and treated as no data.
func (m *Merger) Resolve(ctx context.Context, q models.EnrichmentQuery, enabled Sources) Outcome {
	legalQuery := models.ClassifyIdentifier(q.Identifier)

	var legal *models.LegalData
	if enabled.Legal && m.legal != nil && legalQuery.Value != "" {
		data, err := m.legal.Lookup(ctx, legalQuery)
		if err != nil {
			m.sourceFailed(models.SourcePappers, legalQuery.Value, err)
		} else {
			legal = data
		}
	}

	searchText := strings.TrimSpace(q.Identifier)
	if legal != nil && legal.CompanyName != "" {
		searchText = legal.CompanyName
	}

	location := q.Location
	if location == nil && legal != nil {
		location = locationFromAddress(legal.RegisteredAddress)
	}

	var places *models.PlacesData
	if enabled.Places && m.places != nil && searchText != "" {
		data, err := m.places.Lookup(ctx, searchText, location)
		if err != nil {
			m.sourceFailed(models.SourcePlaces, searchText, err)
		} else {
			places = data
		}
	}

	return NewOutcome(legal, places)
}

func (m *Merger) sourceFailed(source, query string, err error) {
	metrics.EnrichmentSourceFailures.WithLabelValues(source).Inc()
	m.logger.Warn("enrichment source lookup failed", map[string]interface{}{
		"source": source,
		"query":  query,
		"error":  err.Error(),
	})
}

// locationFromAddress renders "line1, postal_code city, country" when the
// address has a city, the bare first line otherwise.
func locationFromAddress(a *models.LegalAddress) *string {
	if a == nil {
		return nil
	}
	var loc string
	switch {
	case a.City != "":
		loc = fmt.Sprintf("%s, %s %s, %s", a.Line1, a.PostalCode, a.City, a.Country)
	case a.Line1 != "":
		loc = a.Line1
	default:
		return nil
	}
	return &loc
}
