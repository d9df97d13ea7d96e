// internal/models/enrichment.go
package models

import (
	"regexp"
	"strconv"
	"strings"
)

// IdentifierKind tells the legal registry how to search for a company.
type IdentifierKind string

const (
	IdentifierSIREN IdentifierKind = "siren"
	IdentifierSIRET IdentifierKind = "siret"
	IdentifierName  IdentifierKind = "name"
)

var (
	sirenPattern = regexp.MustCompile(`^\d{9}$`)
	siretPattern = regexp.MustCompile(`^\d{14}$`)
)

// EnrichmentQuery is one lookup request: a company name, SIREN or SIRET plus
// an optional location hint for the places source.
type EnrichmentQuery struct {
	Identifier string  `json:"identifier"`
	Location   *string `json:"location,omitempty"`
}

// LegalQuery is the shape handed to the legal registry.
type LegalQuery struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// ClassifyIdentifier routes 9 digits to a SIREN lookup, 14 digits to a SIRET
// lookup and anything else to a name search. Spaces inside registration numbers
// ("732 829 320") are ignored.
func ClassifyIdentifier(raw string) LegalQuery {
	trimmed := strings.TrimSpace(raw)
	compact := strings.ReplaceAll(trimmed, " ", "")

	switch {
	case siretPattern.MatchString(compact):
		return LegalQuery{Kind: IdentifierSIRET, Value: compact}
	case sirenPattern.MatchString(compact):
		return LegalQuery{Kind: IdentifierSIREN, Value: compact}
	default:
		return LegalQuery{Kind: IdentifierName, Value: trimmed}
	}
}

// LegalAddress is the registered (headquarters) address from the legal registry.
type LegalAddress struct {
	Siret       string `json:"siret"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// LegalData is a legal registry answer.
type LegalData struct {
	CompanyName       string        `json:"company_name"`
	ManagerName       string        `json:"manager_name,omitempty"`
	LegalForm         string        `json:"legal_form"`
	LegalCategory     string        `json:"legal_category"`
	Siren             string        `json:"siren"`
	NafCode           string        `json:"naf_code"`
	RegisteredAddress *LegalAddress `json:"registered_address,omitempty"`
}

// PlacesAddress is the flat address returned by the places source.
type PlacesAddress struct {
	Line1       string `json:"address_line1"`
	Line2       string `json:"address_line2,omitempty"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// PlacesData is a places/reviews answer.
type PlacesData struct {
	Name         string         `json:"name"`
	BusinessType string         `json:"business_type"`
	Phone        string         `json:"phone"`
	Website      string         `json:"website"`
	Rating       *float64       `json:"rating,omitempty"`
	ReviewCount  *int           `json:"review_count,omitempty"`
	Address      *PlacesAddress `json:"address,omitempty"`
}

// EnrichedRecord is the normalized, merged output for one query.
type EnrichedRecord struct {
	ManagerName   string   `json:"manager_name"`
	CompanyName   string   `json:"company_name"`
	LegalForm     string   `json:"legal_form"`
	LegalCategory string   `json:"legal_category"`
	Siren         string   `json:"siren"`
	NafCode       string   `json:"naf_code"`
	Siret         string   `json:"siret"`
	AddressLine1  string   `json:"address_line1"`
	AddressLine2  string   `json:"address_line2"`
	PostalCode    string   `json:"postal_code"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
	CountryCode   string   `json:"country_code"`
	BusinessType  string   `json:"business_type"`
	Phone         string   `json:"phone"`
	Website       string   `json:"website"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
}

var enrichedColumns = []string{
	"manager_name", "company_name", "legal_form", "legal_category", "siren", "naf_code",
	"siret", "address_line1", "address_line2", "postal_code", "city", "country",
	"country_code", "business_type", "phone", "website", "rating", "review_count",
}

// EnrichedColumns is the CSV header used for enrichment output columns.
func EnrichedColumns() []string {
	out := make([]string, len(enrichedColumns))
	copy(out, enrichedColumns)
	return out
}

// Values projects the record onto EnrichedColumns. A nil record yields
// empty placeholders.
func (r *EnrichedRecord) Values() []string {
	if r == nil {
		return make([]string, len(enrichedColumns))
	}

	rating := ""
	if r.Rating != nil {
		rating = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	reviews := ""
	if r.ReviewCount != nil {
		reviews = strconv.Itoa(*r.ReviewCount)
	}

	return []string{
		r.ManagerName, r.CompanyName, r.LegalForm, r.LegalCategory, r.Siren, r.NafCode,
		r.Siret, r.AddressLine1, r.AddressLine2, r.PostalCode, r.City, r.Country,
		r.CountryCode, r.BusinessType, r.Phone, r.Website, rating, reviews,
	}
}
