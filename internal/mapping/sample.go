package mapping

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSampleSize bounds the preview read when the caller gives no limit.
const DefaultSampleSize = 100

// ErrNoHeader is returned when the input has no header row at all.
var ErrNoHeader = errors.New("empty file: no header row found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSample reads the header and at most limit data rows from a delimited file.
// Short rows are padded and long rows truncated to the header width; rows that
// fail to parse are skipped. Only a prefix of the file is ever read.
func ReadSample(r io.Reader, limit int) ([]string, []map[string]string, error) {
	if limit <= 0 {
		limit = DefaultSampleSize
	}

	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoHeader
		}
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, limit)
	for len(rows) < limit {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, nil, fmt.Errorf("failed to read sample row: %w", err)
		}

		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return headers, rows, nil
}
