package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["userId", "sources"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"sources": {
			"type": "array",
			"items": {"type": "string", "enum": ["pappers", "google_places"]}
		},
		"options": {
			"type": "object",
			"required": ["limit"],
			"properties": {"limit": {"type": "integer", "minimum": 1}}
		}
	}
}`

func TestSchema_ValidateInput(t *testing.T) {
	schema := MustCompileSchema(testSchema)

	tests := []struct {
		name        string
		input       map[string]interface{}
		valid       bool
		errorFields []string
	}{
		{
			name:  "valid input",
			input: map[string]interface{}{"userId": "u1", "sources": []interface{}{"pappers"}},
			valid: true,
		},
		{
			name:        "missing required field",
			input:       map[string]interface{}{"userId": "u1"},
			errorFields: []string{"sources"},
		},
		{
			name:        "wrong enum value",
			input:       map[string]interface{}{"userId": "u1", "sources": []interface{}{"linkedin"}},
			errorFields: []string{"sources.0"},
		},
		{
			name: "nested required field",
			input: map[string]interface{}{
				"userId":  "u1",
				"sources": []interface{}{},
				"options": map[string]interface{}{},
			},
			errorFields: []string{"options.limit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.ValidateInput(tt.input)

			assert.Equal(t, tt.valid, result.Valid)
			for _, field := range tt.errorFields {
				assert.True(t, result.HasErrors(field), "expected error on %s, got %v", field, result.GetErrorMessages())
			}
		})
	}
}

func TestSchema_ErrorMessages(t *testing.T) {
	schema := MustCompileSchema(testSchema)

	result := schema.ValidateInput(map[string]interface{}{"userId": ""})

	require.False(t, result.Valid)
	messages := result.GetErrorMessages()
	assert.Len(t, messages, 2)
	for _, e := range result.Errors {
		assert.NotEmpty(t, e.Code)
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompileSchema(`not json`) })
}
