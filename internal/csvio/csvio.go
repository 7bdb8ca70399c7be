// Package csvio reads buyer import sheets and writes export and template
// files.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/homequest/internal/models"
)

// Columns lists the import columns in template order.
var Columns = []string{
	"fullName", "email", "phone", "city", "propertyType", "bhk", "purpose",
	"budgetMin", "budgetMax", "timeline", "source", "status", "notes", "tags",
}

// Required lists the columns an import sheet must carry.
var Required = []string{"fullName", "phone", "city", "propertyType", "purpose", "timeline", "source"}

// ExportColumns lists the export columns: the import columns plus createdAt.
var ExportColumns = append(append([]string{}, Columns...), "createdAt")

var (
	// ErrEmpty is returned for an empty or whitespace-only upload.
	ErrEmpty = errors.New("csv file is empty")
	// ErrNoRows is returned when the sheet has a header but no data rows.
	ErrNoRows = errors.New("csv file contains no data rows")
)

// MissingHeadersError lists required columns absent from the header row.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// ParseError wraps a malformed-quote or similar syntax error.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "csv parsing failed: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Row is one data record.
type Row struct {
	// Number is the 1-based sheet row, counting the header as row 1.
	Number int
	// Raw maps the trimmed header text to the cell, as uploaded.
	Raw map[string]string
	// Values maps canonical column names to cells; unknown columns are dropped.
	Values map[string]string
}

// Sheet is a parsed upload.
type Sheet struct {
	Headers []string
	Rows    []Row
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// canonical maps lower-cased header text to the column name.
var canonical = func() map[string]string {
	m := make(map[string]string, len(Columns))
	for _, c := range Columns {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// Parse reads a whole sheet. Empty lines are skipped; a record of empty
// cells is kept as a row.
func Parse(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	headers := make([]string, len(records[0]))
	names := make([]string, len(records[0]))
	seen := make(map[string]bool)
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
		if name, ok := canonical[strings.ToLower(headers[i])]; ok {
			names[i] = name
			seen[name] = true
		}
	}

	var missing []string
	for _, req := range Required {
		if !seen[req] {
			missing = append(missing, req)
		}
	}

	sheet := &Sheet{Headers: headers}
	for i, rec := range records[1:] {
		row := Row{
			Number: i + 2,
			Raw:    make(map[string]string, len(headers)),
			Values: make(map[string]string, len(Columns)),
		}
		for i, h := range headers {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			row.Raw[h] = cell
			if names[i] != "" {
				row.Values[names[i]] = strings.TrimSpace(cell)
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	if len(sheet.Rows) == 0 {
		return nil, ErrNoRows
	}
	if len(missing) > 0 {
		return nil, &MissingHeadersError{Missing: missing}
	}
	return sheet, nil
}

// WriteExport writes buyers with a header row, quoting every field.
func WriteExport(w io.Writer, buyers []*models.Buyer) error {
	qw := &quotedWriter{w: w}
	qw.write(ExportColumns)
	for _, b := range buyers {
		qw.write(exportRecord(b))
	}
	return qw.err
}

func exportRecord(b *models.Buyer) []string {
	return []string{
		b.FullName,
		str(b.Email),
		b.Phone,
		string(b.City),
		string(b.PropertyType),
		str(b.BHK),
		string(b.Purpose),
		amount(b.BudgetMin),
		amount(b.BudgetMax),
		string(b.Timeline),
		string(b.Source),
		string(b.Status),
		str(b.Notes),
		strings.Join(b.Tags, ", "),
		b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func amount(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// quotedWriter emits RFC 4180 records with every field quoted. csv.Writer
// only quotes when a field needs it.
type quotedWriter struct {
	w   io.Writer
	err error
	buf bytes.Buffer
}

func (q *quotedWriter) write(record []string) {
	if q.err != nil {
		return
	}
	q.buf.Reset()
	for i, field := range record {
		if i > 0 {
			q.buf.WriteByte(',')
		}
		q.buf.WriteByte('"')
		q.buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		q.buf.WriteByte('"')
	}
	q.buf.WriteString("\r\n")
	_, q.err = q.w.Write(q.buf.Bytes())
}

// templateRow is the example record shipped in the import template.
var templateRow = []string{
	"John Doe", "john@example.com", "9876543210", "Chandigarh", "Apartment", "Three", "Buy",
	"5000000", "7000000", "ZeroToThree", "Website", "New",
	"Looking for 3BHK apartment in Chandigarh", "urgent, premium",
}

// WriteTemplate writes the import template: the header row and one example.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Columns); err != nil {
		return err
	}
	if err := cw.Write(templateRow); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export file for the given day.
func ExportFilename(filtered bool, day time.Time) string {
	suffix := ""
	if filtered {
		suffix = "_filtered"
	}
	return fmt.Sprintf("buyers_export%s_%s.csv", suffix, day.Format(time.DateOnly))
}

// TemplateFilename is the download name of the import template.
const TemplateFilename = "buyers_import_template.csv"
