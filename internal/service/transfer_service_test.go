package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/homequest/internal/metrics"
	"github.com/mmynk/homequest/internal/models"
)

const importHeader = "fullName,email,phone,city,propertyType,bhk,purpose,budgetMin,budgetMax,timeline,source,status,notes,tags\n"

func newTransferService(t *testing.T) (*TransferService, *BuyerService) {
	t.Helper()
	store := newTestStore(t)
	now := func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }
	transfer := NewTransferService(store, TransferOptions{
		Location: time.UTC,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Now:      now,
	})
	buyers := NewBuyerService(store, BuyerOptions{Location: time.UTC, Now: now})
	return transfer, buyers
}

func importCSV(t *testing.T, svc *TransferService, owner, body string) *ImportSummary {
	t.Helper()
	summary, err := svc.Import(context.Background(), owner, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return summary
}

func TestImportInvalidRow(t *testing.T) {
	svc, buyers := newTransferService(t)

	csv := importHeader +
		"Ravi Kumar,ravi@example.com,9876543210,Chandigarh,Apartment,2,Buy,5000000,7000000,0-3m,Website,,,\n" +
		"Neha Singh,neha@example.com,9876543211,Atlantis,Villa,,Buy,,,Exploring,Call,,,\n" +
		"Karan Mehta,,9876543212,Mohali,Plot,,Rent,,,3-6m,Walk-in,Qualified,corner plot,\"hot, repeat\"\n"

	summary := importCSV(t, svc, alice, csv)
	if summary.TotalRows != 3 || summary.Successful != 2 || summary.Failed != 1 || summary.DuplicatesSkipped != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Row != 3 {
		t.Fatalf("expected one error on row 3, got %+v", summary.Errors)
	}
	if len(summary.Errors[0].Errors["city"]) == 0 {
		t.Errorf("expected city error, got %v", summary.Errors[0].Errors)
	}
	if summary.Errors[0].Data["city"] != "Atlantis" {
		t.Errorf("expected raw row data, got %v", summary.Errors[0].Data)
	}

	stored, err := buyers.List(context.Background(), alice, url.Values{"source": {"WalkIn"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected the walk-in buyer, got %d", len(stored))
	}
	karan := stored[0]
	if karan.Status != models.StatusQualified || karan.Timeline != models.TimelineThreeToSix || karan.Email != nil {
		t.Errorf("unexpected imported buyer %+v", karan)
	}
	if strings.Join(karan.Tags, "|") != "hot|repeat" {
		t.Errorf("expected split tags, got %v", karan.Tags)
	}
}

func TestImportCommaOnlyRow(t *testing.T) {
	svc, _ := newTransferService(t)

	csv := importHeader +
		"Ravi Kumar,ravi@example.com,9876543210,Chandigarh,Apartment,2,Buy,,,0-3m,Website,,,\n" +
		",,,,,,,,,,,,,\n" +
		"Neha Singh,neha@example.com,9876543211,Atlantis,Villa,,Buy,,,Exploring,Call,,,\n"

	summary := importCSV(t, svc, alice, csv)
	if summary.TotalRows != 3 || summary.Successful != 1 || summary.Failed != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Errors) != 2 || summary.Errors[0].Row != 3 || summary.Errors[1].Row != 4 {
		t.Fatalf("expected errors on rows 3 and 4, got %+v", summary.Errors)
	}
	if len(summary.Errors[0].Errors["fullName"]) == 0 {
		t.Errorf("expected fullName error on the comma-only row, got %v", summary.Errors[0].Errors)
	}
}

func TestImportCounts(t *testing.T) {
	svc, buyers := newTransferService(t)
	ctx := context.Background()

	// D = 2: one email already stored, one repeated within the file.
	addBuyer(t, buyers, alice, map[string]any{"email": "taken@example.com"})

	var b strings.Builder
	b.WriteString(importHeader)
	rows := []string{
		"Lead One,one@example.com,9876543210,Mohali,Apartment,,Buy,,,Exploring,Website,,,",
		"Lead Two,taken@example.com,9876543210,Mohali,Apartment,,Buy,,,Exploring,Website,,,",
		"Lead Three,three@example.com,9876543210,Mohali,Apartment,,Buy,abc,,Exploring,Website,,,",
		"Lead Four,one@example.com,9876543210,Mohali,Apartment,,Buy,,,Exploring,Website,,,",
		"Lead Five,,123,Mohali,Apartment,,Buy,,,Exploring,Website,,,",
		"Lead Six,,9876543210,Panchkula,Office,,Rent,,,6m,Referral,,,",
	}
	for _, r := range rows {
		b.WriteString(r + "\n")
	}

	summary := importCSV(t, svc, alice, b.String())
	n, k, d := 6, 2, 2
	if summary.TotalRows != n || summary.Failed != k || summary.DuplicatesSkipped != d || summary.Successful != n-k-d {
		t.Fatalf("unexpected summary %+v", summary)
	}

	stored, err := buyers.List(ctx, alice, url.Values{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1+n-k-d {
		t.Errorf("expected %d stored buyers, got %d", 1+n-k-d, len(stored))
	}
}

func TestImportAllRowsInvalid(t *testing.T) {
	svc, _ := newTransferService(t)

	var b strings.Builder
	b.WriteString(importHeader)
	for i := 0; i < 12; i++ {
		b.WriteString("X,,1,Nowhere,Castle,,Buy,,,Exploring,Website,,,\n")
	}

	_, err := svc.Import(context.Background(), alice, strings.NewReader(b.String()))
	se := wantCode(t, err, CodeInvalidArgument)
	if se.Message != "All rows have validation errors" {
		t.Errorf("unexpected message %q", se.Message)
	}
	details, ok := se.Details.([]RowError)
	if !ok || len(details) != 10 {
		t.Fatalf("expected 10 row errors in details, got %#v", se.Details)
	}
	if details[0].Row != 2 {
		t.Errorf("expected first failing row 2, got %d", details[0].Row)
	}
}

func TestImportRejectsSheet(t *testing.T) {
	svc, _ := newTransferService(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", "", "Empty file"},
		{"whitespace", " \n\t\n", "Empty file"},
		{"header only", importHeader, "No data found"},
		{"missing headers", "fullName,email\nAsha,asha@example.com\n", "Invalid CSV format"},
		{"bad quotes", importHeader + "\"Asha,asha@example.com\n", "CSV parsing failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), alice, strings.NewReader(tt.body))
			se := wantCode(t, err, CodeInvalidArgument)
			if se.Message != tt.message {
				t.Errorf("expected %q, got %q", tt.message, se.Message)
			}
		})
	}
}

func TestImportBOMAndHeaderCase(t *testing.T) {
	svc, _ := newTransferService(t)

	csv := "\ufeff FULLNAME , Phone,CITY,propertytype,Purpose,Timeline,Source\n" +
		"Asha Verma,9876543210,Chandigarh,Apartment,Buy,Exploring,Website\n"
	summary := importCSV(t, svc, alice, csv)
	if summary.Successful != 1 {
		t.Errorf("expected one row imported, got %+v", summary)
	}
}

func TestExportRoundTrip(t *testing.T) {
	svc, buyers := newTransferService(t)
	ctx := context.Background()

	addBuyer(t, buyers, alice, nil)
	addBuyer(t, buyers, alice, map[string]any{
		"fullName": "Vikram \"Vicky\" Rao",
		"email":    "vikram@example.com",
		"city":     "Zirakpur",
		"bhk":      nil,
		"notes":    "Needs parking, lift",
		"tags":     []string{},
	})

	export, err := svc.Export(ctx, alice, url.Values{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if export.Filename != "buyers_export_2024-02-01.csv" || export.Rows != 2 {
		t.Errorf("unexpected export %q rows=%d", export.Filename, export.Rows)
	}

	// Re-importing into another owner reproduces every field.
	summary := importCSV(t, svc, bob, string(export.Body))
	if summary.Successful != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	// The original owner already has both emails.
	again := importCSV(t, svc, alice, string(export.Body))
	if again.Successful != 0 || again.DuplicatesSkipped != 2 {
		t.Errorf("expected both rows skipped, got %+v", again)
	}

	original, _ := buyers.List(ctx, alice, url.Values{})
	copied, _ := buyers.List(ctx, bob, url.Values{})
	byEmail := make(map[string]*models.Buyer)
	for _, b := range copied {
		byEmail[*b.Email] = b
	}
	for _, want := range original {
		got, ok := byEmail[*want.Email]
		if !ok {
			t.Fatalf("buyer %s missing after re-import", *want.Email)
		}
		wantIn, gotIn := exportable(want), exportable(got)
		if wantIn != gotIn {
			t.Errorf("round trip mismatch:\nwant %s\ngot  %s", wantIn, gotIn)
		}
	}
}

// exportable renders the fields an export carries, excluding identity and time.
func exportable(b *models.Buyer) string {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	amount := func(p *int) string {
		if p == nil {
			return ""
		}
		return strconv.Itoa(*p)
	}
	bhk := ""
	if b.BHK != nil {
		bhk = string(*b.BHK)
	}
	return strings.Join([]string{
		b.FullName, deref(b.Email), b.Phone, string(b.City), string(b.PropertyType), bhk,
		string(b.Purpose), amount(b.BudgetMin), amount(b.BudgetMax), string(b.Timeline),
		string(b.Source), string(b.Status), deref(b.Notes), strings.Join(b.Tags, ","),
	}, "|")
}

func TestExportFiltered(t *testing.T) {
	svc, buyers := newTransferService(t)
	ctx := context.Background()
	addBuyer(t, buyers, alice, nil)

	export, err := svc.Export(ctx, alice, url.Values{"city": {"Mohali"}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if export.Filename != "buyers_export_filtered_2024-02-01.csv" {
		t.Errorf("unexpected filename %q", export.Filename)
	}
	if !strings.HasPrefix(string(export.Body), `"fullName","email"`) {
		t.Errorf("expected quoted header, got %q", string(export.Body))
	}

	_, err = svc.Export(ctx, alice, url.Values{"city": {"Panchkula"}})
	se := wantCode(t, err, CodeNotFound)
	if se.Message != "No buyers found" {
		t.Errorf("unexpected message %q", se.Message)
	}

	_, err = svc.Export(ctx, bob, url.Values{})
	wantCode(t, err, CodeNotFound)
}

func TestTemplate(t *testing.T) {
	svc, _ := newTransferService(t)

	tmpl, err := svc.Template()
	if err != nil {
		t.Fatalf("Template failed: %v", err)
	}
	if tmpl.Filename != "buyers_import_template.csv" {
		t.Errorf("unexpected filename %q", tmpl.Filename)
	}

	// The template itself imports cleanly.
	summary := importCSV(t, svc, alice, string(tmpl.Body))
	if summary.Successful != 1 {
		t.Errorf("expected template row to import, got %+v", summary)
	}
}
