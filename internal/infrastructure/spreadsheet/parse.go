package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/ports"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed manifest with canonical headers.
type Table struct {
	Headers []string
	Rows    []manifest.Row
}

// Parser adapts Parse to ports.ManifestParser.
type Parser struct{}

var _ ports.ManifestParser = Parser{}

func NewParser() Parser { return Parser{} }

func (Parser) Parse(fileName string, payload []byte, shape manifest.Shape) (ports.ParsedManifest, error) {
	table, err := Parse(fileName, payload, shape)
	if err != nil {
		return ports.ParsedManifest{}, err
	}
	return ports.ParsedManifest{Headers: table.Headers, Rows: table.Rows}, nil
}

// IsSupported reports whether the file extension can be parsed.
func IsSupported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// Parse reads a CSV or XLSX payload and maps its columns onto shape.
// The first non-empty row is the header.
func Parse(fileName string, payload []byte, shape manifest.Shape) (Table, error) {
	var (
		records [][]string
		err     error
	)
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		records, err = readCSV(payload)
	case ".xlsx":
		records, err = readExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %q", manifest.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Table{}, err
	}
	return buildTable(records, shape)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx file has no sheets")
	}

	// Raw values keep date serials and long numeric identifiers unformatted.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows from xlsx: %w", err)
	}
	return rows, nil
}

func buildTable(records [][]string, shape manifest.Shape) (Table, error) {
	headerIndex := -1
	for idx, row := range records {
		if !isEmptyRow(row) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return Table{}, manifest.ErrEmptyManifest
	}

	headers := canonicalHeaders(records[headerIndex], shape)
	hasIdentifier := false
	for _, header := range headers {
		if header == shape.IdentifierColumn {
			hasIdentifier = true
			break
		}
	}
	if !hasIdentifier {
		return Table{}, fmt.Errorf("%w: expected %q", manifest.ErrMissingIdentifierColumn, shape.IdentifierColumn)
	}

	table := Table{Headers: make([]string, 0, len(headers))}
	for _, header := range headers {
		if header != "" {
			table.Headers = append(table.Headers, header)
		}
	}

	for _, record := range records[headerIndex+1:] {
		if isEmptyRow(record) {
			continue
		}
		record = padRow(record, len(headers))
		row := make(manifest.Row, len(table.Headers))
		for idx, header := range headers {
			if header == "" {
				continue
			}
			if _, dup := row[header]; dup {
				continue
			}
			row[header] = strings.TrimSpace(record[idx])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// canonicalHeaders maps raw headers onto the shape. Blank headers stay blank
// so their cells are dropped.
func canonicalHeaders(raw []string, shape manifest.Shape) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		headers[idx] = shape.CanonicalColumn(value)
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
