// Package invoice renders billing.Invoice documents as PDF.
package invoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"repairTracker/internal/billing"
	"repairTracker/internal/logger"

	"github.com/google/uuid"
	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
	"go.uber.org/zap"
)

var (
	lineHeaders = []string{"Date", "Work", "Hours", "Labor", "Parts", "Total"}
	lineGrid    = []uint{2, 4, 1, 2, 1, 2}
	partHeaders = []string{"Part", "Qty", "Price", "Amount"}
	partGrid    = []uint{6, 2, 2, 2}
	stripe      = &color.Color{Red: 240, Green: 240, Blue: 240}
)

// Render lays out inv on A4 pages and returns the PDF bytes. All amounts are
// taken from inv as computed by the billing package.
func Render(inv billing.Invoice) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(8, func() {
				m.Text(inv.BusinessName, props.Text{Top: 3, Style: consts.Bold, Size: 16})
			})
			m.Col(4, func() {
				m.Text(inv.Number, props.Text{Top: 4, Align: consts.Right, Size: 10})
			})
		})
	})

	m.Row(8, func() {
		m.Col(12, func() {
			m.Text("Issued "+inv.IssuedAt.Format("2006-01-02"), props.Text{Top: 2, Size: 10})
		})
	})
	m.Row(7, func() {
		m.Col(6, func() {
			m.Text(inv.CustomerName, props.Text{Style: consts.Bold, Size: 11})
		})
		m.Col(6, func() {
			m.Text(inv.VehicleLabel, props.Text{Align: consts.Right, Size: 11})
		})
	})
	m.Row(6, func() {
		m.Col(6, func() {
			m.Text(strings.Join(inv.CustomerInfo, "  "), props.Text{Size: 9})
		})
		m.Col(6, func() {
			m.Text("VIN "+inv.VIN, props.Text{Align: consts.Right, Size: 9})
		})
	})
	m.Row(8, func() {
		m.Col(12, func() {
			m.Text("Labor rate: "+billing.FormatMoney(inv.HourlyRate, inv.Currency)+" / hour",
				props.Text{Top: 2, Size: 9})
		})
	})

	rows := make([][]string, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		rows = append(rows, []string{
			l.Date.Format("2006-01-02"),
			orDash(l.Description),
			strconv.FormatFloat(billing.Hours(l.Totals.Seconds), 'f', 2, 64),
			money(l.Totals.Labor),
			money(l.Totals.Parts),
			money(l.Totals.Total),
		})
	}
	m.TableList(lineHeaders, rows, tableProps(lineGrid))

	var parts [][]string
	for _, l := range inv.Lines {
		for _, p := range l.Parts {
			parts = append(parts, []string{
				p.Name,
				strconv.Itoa(p.Quantity),
				money(p.Price),
				money(float64(p.Quantity) * p.Price),
			})
		}
	}
	if len(parts) > 0 {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text("Parts", props.Text{Top: 4, Style: consts.Bold, Size: 12})
			})
		})
		m.TableList(partHeaders, parts, tableProps(partGrid))
	}

	m.Row(6, func() {})
	for _, total := range []struct {
		label  string
		amount float64
		style  consts.Style
	}{
		{"Labor", inv.Totals.Labor, consts.Normal},
		{"Parts", inv.Totals.Parts, consts.Normal},
		{"Total", inv.Totals.Total, consts.Bold},
	} {
		m.Row(7, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("%s: %s", total.label, billing.FormatMoney(total.amount, inv.Currency)),
					props.Text{Align: consts.Right, Style: total.style, Size: 11})
			})
		})
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return buf.Bytes(), nil
}

func tableProps(grid []uint) props.TableList {
	return props.TableList{
		HeaderProp:           props.TableListContent{Size: 9, GridSizes: grid},
		ContentProp:          props.TableListContent{Size: 9, GridSizes: grid},
		Align:                consts.Center,
		AlternatedBackground: stripe,
		HeaderContentSpace:   1,
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FileExporter writes each exported invoice to dir/invoice-<taskID>.pdf,
// replacing an earlier export of the same task.
type FileExporter struct {
	dir string
}

func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{dir: dir}
}

func (e *FileExporter) Path(taskID uuid.UUID) string {
	return filepath.Join(e.dir, "invoice-"+taskID.String()+".pdf")
}

func (e *FileExporter) ExportInvoice(ctx context.Context, inv billing.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Render(inv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create invoice dir: %w", err)
	}

	path := e.Path(inv.TaskID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write invoice: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write invoice: %w", err)
	}
	logger.Info("Invoice: written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
