package core

// rows.go turns raw CSV bytes from a ShotGrid export into normalized
// TaskRow values. Cell handling covers the messy reality of spreadsheet
// round-trips: BOM markers, Excel formula wrappers (="value"), stray
// quotes, and ids that come back as "7.0" after a trip through a float
// column. The whole input is materialized before any transformation runs.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stagepipe/omcbridge/internal/schema"
)

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
// ShotGrid exports occasionally carry preamble rows above the real header.
var MaxHeaderSearchRows = 20

// HeaderIndex maps canonical column names (lowercase) to their position in
// the CSV row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a CSV header row. Headers are
// resolved through the export schema so aliases land on their canonical
// column; unrecognized headers are kept under their own lowercased name.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		name := CleanCell(h)
		if canonical, ok := schema.Canonical(name); ok {
			name = canonical
		}
		idx[strings.ToLower(name)] = i
	}
	return idx
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// getCell returns the cleaned value of the named column, or "" when the
// column is missing from the header or the row is too short.
func getCell(row []string, idx HeaderIndex, col string) string {
	pos, ok := idx[strings.ToLower(col)]
	if !ok || pos < 0 || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// ParseTaskID parses a ShotGrid id cell. Plain integers and integral float
// forms ("7.0") are accepted; anything else means the row has no usable id.
func ParseTaskID(s string) (int64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// TaskRowFromRecord builds a TaskRow from one data row. The second return
// is false when the row carries no parseable id and must be skipped.
func TaskRowFromRecord(record []string, idx HeaderIndex) (TaskRow, bool) {
	id, ok := ParseTaskID(getCell(record, idx, schema.ColID))
	if !ok {
		return TaskRow{}, false
	}

	return TaskRow{
		ID:           id,
		TaskName:     getCell(record, idx, schema.ColTaskName),
		Link:         getCell(record, idx, schema.ColLink),
		PipelineStep: getCell(record, idx, schema.ColPipelineStep),
		Status:       getCell(record, idx, schema.ColStatus),
		AssignedTo:   getCell(record, idx, schema.ColAssignedTo),
		Reviewer:     getCell(record, idx, schema.ColReviewer),
		StartDate:    getCell(record, idx, schema.ColStartDate),
		DueDate:      getCell(record, idx, schema.ColDueDate),
		ShotStatus:   getCell(record, idx, schema.ColShotStatus),
		Project:      getCell(record, idx, schema.ColProject),
		Thumbnail:    getCell(record, idx, schema.ColThumbnail),
	}, true
}

// SourceRow is one non-empty data row of a parsed export.
type SourceRow struct {
	Line   int      // 1-indexed line in the file
	Record []string // raw cells, for preview display
	Task   TaskRow  // normalized fields; meaningful only when HasID
	HasID  bool
}

// ParsedSource is a fully materialized export: located header plus every
// non-empty data row in file order.
type ParsedSource struct {
	HeaderLine int // 1-indexed
	Header     []string
	Index      HeaderIndex
	Rows       []SourceRow
}

// ParseSource reads a ShotGrid export into a ParsedSource. Any error is a
// pass-level input failure; nothing partial is returned alongside one.
func ParseSource(data []byte) (*ParsedSource, error) {
	data = stripBOM(sanitizeUTF8(data))

	records, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	headerIdx := findTaskHeader(records)
	if headerIdx < 0 {
		return nil, fmt.Errorf("header not found: no row names the %q column plus at least one other export column", schema.ColID)
	}

	header := records[headerIdx]
	idx := MakeHeaderIndex(header)

	src := &ParsedSource{
		HeaderLine: headerIdx + 1,
		Header:     header,
		Index:      idx,
	}

	for i, record := range records[headerIdx+1:] {
		if isEmptyRow(record) {
			continue
		}
		task, hasID := TaskRowFromRecord(record, idx)
		src.Rows = append(src.Rows, SourceRow{
			Line:   headerIdx + i + 2,
			Record: record,
			Task:   task,
			HasID:  hasID,
		})
	}

	return src, nil
}

// findTaskHeader locates the header row within the first MaxHeaderSearchRows
// rows. A row qualifies when it names the Id column and at least one other
// known export column, in any order.
func findTaskHeader(records [][]string) int {
	maxRows := MaxHeaderSearchRows
	if len(records) < maxRows {
		maxRows = len(records)
	}

	for i := 0; i < maxRows; i++ {
		var hasID bool
		var known int
		for _, cell := range records[i] {
			canonical, ok := schema.Canonical(CleanCell(cell))
			if !ok {
				continue
			}
			known++
			if canonical == schema.ColID {
				hasID = true
			}
		}
		if hasID && known >= 2 {
			return i
		}
	}
	return -1
}

// stripBOM drops a leading UTF-8 byte order mark so the first header cell
// matches its column name. Windows exports carry one routinely.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			// Same replacement SanitizedReader uses, so preview and
			// conversion agree on damaged input.
			buf.WriteByte('?')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
