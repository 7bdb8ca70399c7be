package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/homequest/internal/csvio"
	"github.com/mmynk/homequest/internal/filter"
	"github.com/mmynk/homequest/internal/leads"
	"github.com/mmynk/homequest/internal/metrics"
	"github.com/mmynk/homequest/internal/models"
	"github.com/mmynk/homequest/internal/storage"
)

const (
	maxSummaryErrors = 5
	maxDetailErrors  = 10
)

// RowError describes one rejected import row.
type RowError struct {
	Row    int                 `json:"row"`
	Data   map[string]string   `json:"data"`
	Errors map[string][]string `json:"errors"`
}

// ImportSummary reports the outcome of an import.
type ImportSummary struct {
	TotalRows         int        `json:"totalRows"`
	Successful        int        `json:"successful"`
	Failed            int        `json:"failed"`
	DuplicatesSkipped int        `json:"duplicatesSkipped"`
	Errors            []RowError `json:"errors,omitempty"`
}

// Export is a rendered CSV download.
type Export struct {
	Filename string
	Body     []byte
	Rows     int
}

// TransferOptions tunes a TransferService.
type TransferOptions struct {
	Location *time.Location
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// TransferService imports and exports buyers as CSV.
type TransferService struct {
	store   storage.BuyerStore
	opts    TransferOptions
	metrics *metrics.Metrics
}

// NewTransferService creates a new TransferService with the given storage backend.
func NewTransferService(store storage.BuyerStore, opts TransferOptions) *TransferService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TransferService{store: store, opts: opts, metrics: opts.Metrics}
}

// Import validates every row of an uploaded sheet and bulk inserts the valid
// ones for owner. Rows whose email the owner already uses, or that repeat an
// earlier row's email, are skipped as duplicates.
func (s *TransferService) Import(ctx context.Context, owner string, r io.Reader) (*ImportSummary, error) {
	slog.Info("Import request received", "owner_id", owner)

	sheet, err := csvio.Parse(r)
	if err != nil {
		return nil, sheetError(err)
	}

	var (
		valid     []*models.Buyer
		rowErrors []RowError
	)
	for _, row := range sheet.Rows {
		in, err := leads.DecodeRow(row.Values)
		if err != nil {
			var verr *leads.ValidationError
			if !errors.As(err, &verr) {
				return nil, internalError(err)
			}
			rowErrors = append(rowErrors, RowError{Row: row.Number, Data: row.Raw, Errors: verr.Fields})
			continue
		}
		valid = append(valid, in.Buyer(owner))
	}
	s.metrics.ImportRows(metrics.OutcomeFailed, len(rowErrors))

	if len(valid) == 0 {
		slog.Warn("Import rejected, no valid rows", "rows", len(sheet.Rows))
		e := NewError(CodeInvalidArgument, nil).WithMessage("All rows have validation errors", "No valid data found to import")
		e.Details = rowErrors[:min(len(rowErrors), maxDetailErrors)]
		return nil, e
	}

	fresh, duplicates, err := s.dropDuplicates(ctx, owner, valid)
	if err != nil {
		slog.Error("Import failed", "error", err)
		return nil, internalError(err)
	}

	inserted, err := s.store.InsertBuyers(ctx, fresh)
	if err != nil {
		if storage.IsDuplicate(err) {
			return nil, NewError(CodeAlreadyExists, err).WithMessage(
				"Duplicate data detected", "Some buyers in the CSV already exist in the database")
		}
		slog.Error("Import failed", "error", err)
		return nil, internalError(err).WithMessage("Internal server error", "Failed to import CSV data")
	}
	// Rows lost to a concurrent insert of the same email count as duplicates.
	duplicates += len(fresh) - int(inserted)

	s.metrics.ImportRows(metrics.OutcomeInserted, int(inserted))
	s.metrics.ImportRows(metrics.OutcomeDuplicate, duplicates)

	summary := &ImportSummary{
		TotalRows:         len(sheet.Rows),
		Successful:        int(inserted),
		Failed:            len(rowErrors),
		DuplicatesSkipped: duplicates,
	}
	if len(rowErrors) > 0 {
		summary.Errors = rowErrors[:min(len(rowErrors), maxSummaryErrors)]
	}

	slog.Info("Import completed",
		"total", summary.TotalRows,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duplicates", summary.DuplicatesSkipped,
	)
	return summary, nil
}

func (s *TransferService) dropDuplicates(ctx context.Context, owner string, buyers []*models.Buyer) ([]*models.Buyer, int, error) {
	var emails []string
	for _, b := range buyers {
		if b.Email != nil {
			emails = append(emails, *b.Email)
		}
	}
	existing, err := s.store.ExistingEmails(ctx, owner, emails)
	if err != nil {
		return nil, 0, err
	}
	if existing == nil {
		existing = make(map[string]bool)
	}

	fresh := make([]*models.Buyer, 0, len(buyers))
	duplicates := 0
	for _, b := range buyers {
		if b.Email == nil {
			fresh = append(fresh, b)
			continue
		}
		if existing[*b.Email] {
			duplicates++
			continue
		}
		existing[*b.Email] = true
		fresh = append(fresh, b)
	}
	return fresh, duplicates, nil
}

// Export renders the owner's buyers matching the query filters.
func (s *TransferService) Export(ctx context.Context, owner string, q url.Values) (*Export, error) {
	slog.Info("Export request received", "owner_id", owner, "query", q.Encode())

	spec, err := filter.Build(q, s.opts.Location)
	if err != nil {
		return nil, invalidFilter(err)
	}

	buyers, err := s.store.ListBuyers(ctx, owner, spec)
	if err != nil {
		slog.Error("Export failed", "error", err)
		return nil, internalError(err)
	}
	if len(buyers) == 0 {
		return nil, NewError(CodeNotFound, nil).WithMessage("No buyers found", "No buyers match the specified criteria")
	}

	var buf bytes.Buffer
	if err := csvio.WriteExport(&buf, buyers); err != nil {
		slog.Error("Export failed", "error", err)
		return nil, internalError(err)
	}

	slog.Info("Export successful", "rows", len(buyers))
	return &Export{
		Filename: csvio.ExportFilename(!spec.Empty(), s.opts.Now().In(s.opts.Location)),
		Body:     buf.Bytes(),
		Rows:     len(buyers),
	}, nil
}

// Template renders the one-row example sheet.
func (s *TransferService) Template() (*Export, error) {
	var buf bytes.Buffer
	if err := csvio.WriteTemplate(&buf); err != nil {
		return nil, internalError(err)
	}
	return &Export{Filename: csvio.TemplateFilename, Body: buf.Bytes(), Rows: 1}, nil
}

// sheetError maps a rejected upload to a client error.
func sheetError(err error) *Error {
	var (
		missing  *csvio.MissingHeadersError
		parseErr *csvio.ParseError
	)
	switch {
	case errors.Is(err, csvio.ErrEmpty):
		return NewError(CodeInvalidArgument, err).WithMessage("Empty file", "The uploaded CSV file is empty")
	case errors.Is(err, csvio.ErrNoRows):
		return NewError(CodeInvalidArgument, err).WithMessage("No data found", "CSV file contains no data rows")
	case errors.As(err, &missing):
		e := NewError(CodeInvalidArgument, err).WithMessage("Invalid CSV format",
			"Missing required headers: "+strings.Join(missing.Missing, ", "))
		e.Details = map[string]any{"missingHeaders": missing.Missing}
		return e
	case errors.As(err, &parseErr):
		e := NewError(CodeInvalidArgument, err).WithMessage("CSV parsing failed", "Invalid CSV format")
		e.Details = parseErr.Err.Error()
		return e
	default:
		return internalError(err)
	}
}
