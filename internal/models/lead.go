// internal/models/lead.go
package models

// CanonicalField is one of the fixed target keys every upload is mapped onto.
type CanonicalField string

const (
	FieldCompanyName   CanonicalField = "company_name"
	FieldSiret         CanonicalField = "siret"
	FieldSiren         CanonicalField = "siren"
	FieldDomain        CanonicalField = "domain"
	FieldEmail         CanonicalField = "email"
	FieldPhone         CanonicalField = "phone"
	FieldFullName      CanonicalField = "full_name"
	FieldAddress       CanonicalField = "address"
	FieldZipCode       CanonicalField = "zip_code"
	FieldCity          CanonicalField = "city"
	FieldCountry       CanonicalField = "country"
	FieldNafCode       CanonicalField = "naf_code"
	FieldSector        CanonicalField = "sector"
	FieldEmployeeCount CanonicalField = "employee_count"
)

type FieldPriority string

const (
	PriorityKey       FieldPriority = "key"
	PrioritySecondary FieldPriority = "secondary"
)

// FieldDefinition is the static metadata attached to a canonical field.
type FieldDefinition struct {
	Key         CanonicalField `json:"key"`
	Label       string         `json:"label"`
	Priority    FieldPriority  `json:"priority"`
	Description string         `json:"description"`
}

var fieldDefinitions = []FieldDefinition{
	{FieldCompanyName, "Nom de l'entreprise", PriorityKey, "Raison sociale ou nom commercial"},
	{FieldSiret, "SIRET", PriorityKey, "Numéro d'établissement à 14 chiffres"},
	{FieldSiren, "SIREN", PriorityKey, "Numéro d'entreprise à 9 chiffres"},
	{FieldDomain, "Domaine", PriorityKey, "Nom de domaine du site web"},
	{FieldEmail, "Email", PriorityKey, "Adresse email de contact"},
	{FieldPhone, "Téléphone", PriorityKey, "Numéro de téléphone"},
	{FieldFullName, "Nom complet", PrioritySecondary, "Nom et prénom du contact"},
	{FieldAddress, "Adresse", PrioritySecondary, "Adresse postale"},
	{FieldZipCode, "Code postal", PrioritySecondary, "Code postal"},
	{FieldCity, "Ville", PrioritySecondary, "Ville"},
	{FieldCountry, "Pays", PrioritySecondary, "Pays"},
	{FieldNafCode, "Code NAF", PrioritySecondary, "Code d'activité NAF/APE"},
	{FieldSector, "Secteur", PrioritySecondary, "Secteur d'activité"},
	{FieldEmployeeCount, "Effectif", PrioritySecondary, "Tranche d'effectif salarié"},
}

// CanonicalFields returns the field table in declaration order.
func CanonicalFields() []FieldDefinition {
	out := make([]FieldDefinition, len(fieldDefinitions))
	copy(out, fieldDefinitions)
	return out
}

// LookupField resolves a raw key to its definition.
func LookupField(key string) (FieldDefinition, bool) {
	for _, def := range fieldDefinitions {
		if string(def.Key) == key {
			return def, true
		}
	}
	return FieldDefinition{}, false
}

// ColumnMapping binds canonical fields to source column names.
type ColumnMapping map[CanonicalField]string

// Clone returns an independent copy; a nil mapping clones to an empty one.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CompletionStats is the share (0-100) of non-empty sample values per field.
type CompletionStats map[CanonicalField]int
