// Package relation turns uploaded statement files into raw relations: the
// file's rows after parsing-config application, with the original header
// names as columns, ready to be staged for the transform query.
package relation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/models"

	"github.com/xuri/excelize/v2"
)

// RawRelation is the ephemeral representation of one uploaded file after
// the parsing configuration has been applied. Columns are the original
// header names, or synthetic col_N names when the file has no header.
type RawRelation struct {
	Columns []string
	Rows    [][]string
}

// HeaderIndex returns a column-name -> position lookup.
func (r *RawRelation) HeaderIndex() map[string]int {
	index := make(map[string]int, len(r.Columns))
	for i, name := range r.Columns {
		index[name] = i
	}
	return index
}

// Load reads file bytes according to the parsing configuration and returns
// the raw relation. All failures are fatal for the file and reported as
// *importerror.LoadError.
func Load(r io.Reader, fileName string, cfg models.ParsingConfig) (*RawRelation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &importerror.LoadError{FileName: fileName, Reason: "read failed", Err: err}
	}

	var rows [][]string
	switch cfg.Format {
	case models.FormatExcel:
		rows, err = readExcel(data, cfg)
	case models.FormatCSV, "":
		rows, err = readCSV(data, cfg)
	default:
		err = fmt.Errorf("unsupported format %q", cfg.Format)
	}
	if err != nil {
		return nil, &importerror.LoadError{FileName: fileName, Reason: "parse failed", Err: err}
	}

	var columns []string
	if cfg.HasHeader {
		if len(rows) == 0 {
			return nil, &importerror.LoadError{FileName: fileName, Reason: "no header row after skip"}
		}
		columns = sanitizeHeader(rows[0])
		rows = rows[1:]
	} else {
		columns = syntheticHeader(rows)
	}

	if len(rows) == 0 {
		return nil, &importerror.LoadError{FileName: fileName, Reason: "no data rows after skip"}
	}

	// Exports are frequently ragged; pad every row to the header width so
	// the staging table always gets a full tuple.
	for i, row := range rows {
		if len(row) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, row)
			rows[i] = padded
		} else if len(row) > len(columns) {
			rows[i] = row[:len(columns)]
		}
	}

	return &RawRelation{Columns: columns, Rows: rows}, nil
}

// readCSV decodes the bytes with the configured encoding and parses them
// as delimited text. skipRows counts physical lines and preambles often
// contain blank lines the CSV parser would silently drop, so the skip is
// applied to the raw text before parsing. Exports are frequently ragged,
// so the reader runs with FieldsPerRecord disabled and rows are
// reconciled against the header afterwards.
func readCSV(data []byte, cfg models.ParsingConfig) ([][]string, error) {
	text, err := decode(data, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	text = skipLines(text, cfg.SkipRows)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if cfg.Delimiter != "" {
		reader.Comma = []rune(cfg.Delimiter)[0]
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	return rows, nil
}

// readExcel opens the workbook and reads the configured sheet, or the
// first sheet when none is configured.
func readExcel(data []byte, cfg models.ParsingConfig) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed workbook: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	if cfg.SkipRows > 0 {
		if cfg.SkipRows >= len(rows) {
			return nil, nil
		}
		rows = rows[cfg.SkipRows:]
	}
	return rows, nil
}

// skipLines drops the first n physical lines of the text, blank lines
// included.
func skipLines(text string, n int) string {
	for ; n > 0; n-- {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return ""
		}
		text = text[i+1:]
	}
	return text
}

// decode converts raw bytes to UTF-8 text using the configured encoding.
// UTF-8 is assumed when no encoding is configured.
func decode(data []byte, encodingName string) (string, error) {
	if encodingName == "" || strings.EqualFold(encodingName, "utf-8") || strings.EqualFold(encodingName, "utf8") {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("cannot decode as utf-8")
		}
		return string(data), nil
	}

	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q: %w", encodingName, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("cannot decode as %s: %w", encodingName, err)
	}
	return string(decoded), nil
}

// sanitizeHeader trims whitespace, fills in names for blank header cells
// and disambiguates repeated names so every column is addressable from
// SQL. Repeats get a _1, _2... suffix; exports with two "Currency" columns
// exist.
func sanitizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n)
		} else {
			seen[name] = 1
		}
		columns[i] = name
	}
	return columns
}

// syntheticHeader produces col_0..col_n names sized to the widest row.
func syntheticHeader(rows [][]string) []string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	columns := make([]string, width)
	for i := range columns {
		columns[i] = fmt.Sprintf("col_%d", i)
	}
	return columns
}
