// Package mapping suggests and edits the binding between uploaded spreadsheet
// headers and canonical lead fields, and previews how complete each mapped
// field is on a sample of the file.
//
// Suggestions use plain substring containment and the first matching column
// wins. A mapping is always confirmed by a person before transcoding.
package mapping

import (
	"math"
	"strings"
	"unicode"

	"leadgen-workers/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Suggestion bundles everything shown to the user when confirming a mapping.
type Suggestion struct {
	Mapping    models.ColumnMapping               `json:"mapping"`
	Completion models.CompletionStats             `json:"completion"`
	Duplicates map[string][]models.CanonicalField `json:"duplicates,omitempty"`
}

// Suggest runs SuggestMapping, then scores it against sample.
func Suggest(columns []string, sample []map[string]string) Suggestion {
	m := SuggestMapping(columns)
	return Suggestion{
		Mapping:    m,
		Completion: CompletionStats(sample, m),
		Duplicates: DuplicateBindings(m),
	}
}

// SuggestMapping proposes a source column for each canonical field. A column is
// a match when, lowercased and accent-folded, it contains the field label, is
// contained in the label, or contains the field key. Source order breaks ties.
// Fields without a plausible column are left out.
func SuggestMapping(columns []string) models.ColumnMapping {
	suggested := make(models.ColumnMapping)

	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = normalizeHeader(c)
	}

	for _, def := range models.CanonicalFields() {
		label := normalizeHeader(def.Label)
		key := normalizeHeader(string(def.Key))

		for i, col := range normalized {
			if col == "" {
				continue
			}
			if strings.Contains(col, label) || strings.Contains(label, col) || strings.Contains(col, key) {
				suggested[def.Key] = columns[i]
				break
			}
		}
	}

	return suggested
}

// ApplyMapping returns a copy of current with field bound to column. An empty
// column unbinds the field. Binding a column already used by another field is
// allowed (last write wins); see DuplicateBindings.
func ApplyMapping(field models.CanonicalField, column string, current models.ColumnMapping) models.ColumnMapping {
	next := current.Clone()
	if column == "" {
		delete(next, field)
		return next
	}
	next[field] = column
	return next
}

// DuplicateBindings lists source columns bound to more than one field.
func DuplicateBindings(m models.ColumnMapping) map[string][]models.CanonicalField {
	byColumn := make(map[string][]models.CanonicalField)
	for _, def := range models.CanonicalFields() {
		if col, ok := m[def.Key]; ok && col != "" {
			byColumn[col] = append(byColumn[col], def.Key)
		}
	}

	dups := make(map[string][]models.CanonicalField)
	for col, fields := range byColumn {
		if len(fields) > 1 {
			dups[col] = fields
		}
	}
	return dups
}

// CompletionStats gives, for every canonical field, the rounded percentage of
// sample rows whose mapped column holds a non-blank value. Unmapped fields and
// an empty sample score 0.
func CompletionStats(sample []map[string]string, m models.ColumnMapping) models.CompletionStats {
	stats := make(models.CompletionStats)
	total := len(sample)

	for _, def := range models.CanonicalFields() {
		col, mapped := m[def.Key]
		if !mapped || col == "" || total == 0 {
			stats[def.Key] = 0
			continue
		}

		filled := 0
		for _, row := range sample {
			if strings.TrimSpace(row[col]) != "" {
				filled++
			}
		}
		stats[def.Key] = int(math.Round(float64(filled) / float64(total) * 100))
	}

	return stats
}

// normalizeHeader lowercases, trims and strips diacritics so "Téléphone"
// and "telephone" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "’", "'")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
