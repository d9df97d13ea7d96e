package enrichment

import "leadgen-workers/internal/models"

// OutcomeKind says which sources produced data for a query.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeLegalOnly
	OutcomePlacesOnly
	OutcomeMerged
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLegalOnly:
		return "legal_only"
	case OutcomePlacesOnly:
		return "places_only"
	case OutcomeMerged:
		return "merged"
	default:
		return "none"
	}
}

// Outcome carries the source answers for one query. Legal is set only for
// LegalOnly and Merged, Places only for PlacesOnly and Merged.
type Outcome struct {
	Kind   OutcomeKind
	Legal  *models.LegalData
	Places *models.PlacesData
}

// NewOutcome tags the pair of (possibly nil) source answers.
func NewOutcome(legal *models.LegalData, places *models.PlacesData) Outcome {
	switch {
	case legal != nil && places != nil:
		return Outcome{Kind: OutcomeMerged, Legal: legal, Places: places}
	case legal != nil:
		return Outcome{Kind: OutcomeLegalOnly, Legal: legal}
	case places != nil:
		return Outcome{Kind: OutcomePlacesOnly, Places: places}
	default:
		return Outcome{Kind: OutcomeNone}
	}
}

// FormatResult turns an outcome into the flat output record. OutcomeNone
// yields nil.
//
// Merged records take business_type, phone, website, rating, review_count and
// any present address component from places; every other field comes from the
// legal registry.
func FormatResult(o Outcome) *models.EnrichedRecord {
	switch o.Kind {
	case OutcomeNone:
		return nil
	case OutcomeLegalOnly:
		return fromLegal(o.Legal)
	case OutcomePlacesOnly:
		return fromPlaces(o.Places)
	case OutcomeMerged:
		rec := fromLegal(o.Legal)
		if rec.CompanyName == "" {
			rec.CompanyName = o.Places.Name
		}
		rec.BusinessType = o.Places.BusinessType
		rec.Phone = o.Places.Phone
		rec.Website = o.Places.Website
		rec.Rating = o.Places.Rating
		rec.ReviewCount = o.Places.ReviewCount
		if a := o.Places.Address; a != nil {
			rec.AddressLine1 = coalesce(a.Line1, rec.AddressLine1)
			rec.AddressLine2 = coalesce(a.Line2, rec.AddressLine2)
			rec.PostalCode = coalesce(a.PostalCode, rec.PostalCode)
			rec.City = coalesce(a.City, rec.City)
			rec.Country = coalesce(a.Country, rec.Country)
			rec.CountryCode = coalesce(a.CountryCode, rec.CountryCode)
		}
		return rec
	default:
		return nil
	}
}

func fromLegal(l *models.LegalData) *models.EnrichedRecord {
	rec := &models.EnrichedRecord{
		ManagerName:   l.ManagerName,
		CompanyName:   l.CompanyName,
		LegalForm:     l.LegalForm,
		LegalCategory: l.LegalCategory,
		Siren:         l.Siren,
		NafCode:       l.NafCode,
	}
	if a := l.RegisteredAddress; a != nil {
		rec.Siret = a.Siret
		rec.AddressLine1 = a.Line1
		rec.AddressLine2 = a.Line2
		rec.PostalCode = a.PostalCode
		rec.City = a.City
		rec.Country = a.Country
		rec.CountryCode = a.CountryCode
	}
	return rec
}

func fromPlaces(p *models.PlacesData) *models.EnrichedRecord {
	rec := &models.EnrichedRecord{
		CompanyName:  p.Name,
		BusinessType: p.BusinessType,
		Phone:        p.Phone,
		Website:      p.Website,
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
	}
	if a := p.Address; a != nil {
		rec.AddressLine1 = a.Line1
		rec.AddressLine2 = a.Line2
		rec.PostalCode = a.PostalCode
		rec.City = a.City
		rec.Country = a.Country
		rec.CountryCode = a.CountryCode
	}
	return rec
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
