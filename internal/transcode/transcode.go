// Package transcode rewrites the header row of an uploaded delimited file so
// that mapped source columns carry their canonical field keys.
package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "leadgen-workers/internal/common/errors"
	"leadgen-workers/internal/models"
)

// ErrEmptyFile is returned (wrapped in an EMPTY_FILE StandardError) when the
// input holds no non-blank line.
var ErrEmptyFile = errors.New("empty file")

const mappedSuffix = ".mapped"

// OutputPath returns where Transcode writes the rewritten copy of path:
// "<dir>/<base>.mapped<ext>".
func OutputPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), base+mappedSuffix+ext)
}

// Transcode rewrites the header line of filePath using mapping and writes the
// result next to the input. Header tokens bound to a canonical field are
// replaced by the field key; other tokens pass through. Every output header
// token is double-quoted. Data lines are copied byte for byte.
func Transcode(filePath string, mapping models.ColumnMapping) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", apperrors.NewFileReadFailedError(filePath, err)
	}

	content := strings.TrimPrefix(string(data), "\ufeff")
	if strings.TrimSpace(content) == "" {
		return "", apperrors.NewEmptyFileError(filePath, ErrEmptyFile)
	}

	// Leading blank lines stay in place so the output keeps the input's line count.
	lines := strings.Split(content, "\n")
	at := 0
	for strings.TrimSpace(lines[at]) == "" {
		at++
	}

	header, lineEnd := lines[at], ""
	if strings.HasSuffix(header, "\r") {
		header, lineEnd = strings.TrimSuffix(header, "\r"), "\r"
	}
	lines[at] = RewriteHeader(header, mapping) + lineEnd

	outPath := OutputPath(filePath)
	if err := os.WriteFile(outPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return "", apperrors.NewFileWriteFailedError(outPath, err)
	}

	return outPath, nil
}

// RewriteHeader maps one comma-separated header line. Quotes around each
// token are stripped before lookup.
func RewriteHeader(header string, mapping models.ColumnMapping) string {
	reverse := reverseMapping(mapping)

	tokens := strings.Split(header, ",")
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		name := unquote(strings.TrimSpace(tok))
		if field, ok := reverse[name]; ok {
			name = string(field)
		}
		out[i] = quote(name)
	}
	return strings.Join(out, ",")
}

// reverseMapping indexes mapping by source column. When one column is bound
// to several fields the first field in canonical order wins.
func reverseMapping(mapping models.ColumnMapping) map[string]models.CanonicalField {
	reverse := make(map[string]models.CanonicalField, len(mapping))
	for _, def := range models.CanonicalFields() {
		col, ok := mapping[def.Key]
		if !ok || col == "" {
			continue
		}
		if _, taken := reverse[col]; !taken {
			reverse[col] = def.Key
		}
	}
	return reverse
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WidthMismatch is a data line whose naive field count differs from the header's.
type WidthMismatch struct {
	Line   int `json:"line"`
	Fields int `json:"fields"`
}

// HeaderWidthMismatch reports data lines whose comma-separated field count
// differs from the header. It is diagnostic only; Transcode never rejects a
// file for it.
func HeaderWidthMismatch(filePath string) (int, []WidthMismatch, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	content := strings.TrimPrefix(string(data), "\ufeff")
	if strings.TrimSpace(content) == "" {
		return 0, nil, apperrors.NewEmptyFileError(filePath, ErrEmptyFile)
	}

	var (
		width      = -1
		mismatches []WidthMismatch
	)
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Count(line, ",") + 1
		if width < 0 {
			width = fields
			continue
		}
		if fields != width {
			mismatches = append(mismatches, WidthMismatch{Line: i + 1, Fields: fields})
		}
	}

	return width, mismatches, nil
}
