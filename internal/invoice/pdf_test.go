package invoice_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"repairTracker/internal/billing"
	"repairTracker/internal/invoice"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() billing.Invoice {
	issued := time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)
	id := uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001")
	return billing.Invoice{
		Number:       billing.InvoiceNumber(id, issued),
		IssuedAt:     issued,
		BusinessName: "Repair Shop",
		Currency:     "USD",
		TaskID:       id,
		Status:       task.StatusBilled,
		CustomerName: "Ana Lopez",
		CustomerInfo: []string{"ana@example.com"},
		VIN:          "1HGCM82633A004352",
		VehicleLabel: "2019 Honda Civic",
		HourlyRate:   60,
		Lines: []billing.InvoiceLine{{
			SessionID:   uuid.New(),
			Date:        issued.Add(-6 * time.Hour),
			Description: "Brake service",
			Parts:       []task.Part{{Name: "Brake pads", Quantity: 2, Price: 20}},
			Totals:      billing.Totals{Seconds: 5400, Labor: 90, Parts: 40, Total: 130},
		}},
		Totals: billing.Totals{Seconds: 5400, Labor: 90, Parts: 40, Total: 130},
	}
}

func TestRender(t *testing.T) {
	data, err := invoice.Render(sampleInvoice())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRender_NoLines(t *testing.T) {
	inv := sampleInvoice()
	inv.Lines = nil
	inv.Totals = billing.Totals{}

	data, err := invoice.Render(inv)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices")
	exp := invoice.NewFileExporter(dir)
	inv := sampleInvoice()

	require.NoError(t, exp.ExportInvoice(context.Background(), inv))

	data, err := os.ReadFile(exp.Path(inv.TaskID))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "invoice-"+inv.TaskID.String()+".pdf", filepath.Base(exp.Path(inv.TaskID)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}

func TestFileExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp := invoice.NewFileExporter(t.TempDir())
	assert.ErrorIs(t, exp.ExportInvoice(ctx, sampleInvoice()), context.Canceled)
}
