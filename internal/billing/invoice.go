package billing

import (
	"fmt"
	"strings"
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
)

type InvoiceLine struct {
	SessionID   uuid.UUID   `json:"session_id" yaml:"session_id"`
	Date        time.Time   `json:"date" yaml:"date"`
	Description string      `json:"description" yaml:"description"`
	Parts       []task.Part `json:"parts" yaml:"parts"`
	Totals      Totals      `json:"totals" yaml:"totals"`
}

// Invoice is everything an exporter needs to print a bill for one task.
type Invoice struct {
	Number       string        `json:"number" yaml:"number"`
	IssuedAt     time.Time     `json:"issued_at" yaml:"issued_at"`
	BusinessName string        `json:"business_name" yaml:"business_name"`
	Currency     string        `json:"currency" yaml:"currency"`
	TaskID       uuid.UUID     `json:"task_id" yaml:"task_id"`
	Status       task.Status   `json:"status" yaml:"status"`
	CustomerName string        `json:"customer_name" yaml:"customer_name"`
	CustomerInfo []string      `json:"customer_info,omitempty" yaml:"customer_info,omitempty"`
	VIN          string        `json:"vin" yaml:"vin"`
	VehicleLabel string        `json:"vehicle_label" yaml:"vehicle_label"`
	HourlyRate   float64       `json:"hourly_rate" yaml:"hourly_rate"`
	Lines        []InvoiceLine `json:"lines" yaml:"lines"`
	Totals       Totals        `json:"totals" yaml:"totals"`
}

// BuildInvoice lays the task out one line per session with periods or parts.
// Invoice totals come from TaskTotals, the same figures the API and portal show.
// The client and vehicle may be nil when they were deleted; the task snapshot
// is used instead.
func BuildInvoice(t *task.Task, c *garage.Client, v *garage.Vehicle, st garage.Settings, issued time.Time) Invoice {
	rate := HourlyRate(c, st.DefaultHourlyRate)
	inv := Invoice{
		Number:       InvoiceNumber(t.ID, issued),
		IssuedAt:     issued,
		BusinessName: st.BusinessName,
		Currency:     st.Currency,
		TaskID:       t.ID,
		Status:       t.Status,
		CustomerName: t.CustomerName,
		VIN:          t.CarVIN,
		VehicleLabel: t.CarVIN,
		HourlyRate:   rate,
		Lines:        []InvoiceLine{},
		Totals:       TaskTotals(t, rate),
	}
	if c != nil {
		inv.CustomerName = c.Name
		if c.Email != nil && *c.Email != "" {
			inv.CustomerInfo = append(inv.CustomerInfo, *c.Email)
		}
		if c.Phone != nil && *c.Phone != "" {
			inv.CustomerInfo = append(inv.CustomerInfo, *c.Phone)
		}
	}
	if v != nil {
		inv.VIN = v.VIN
		inv.VehicleLabel = v.Label()
	}

	for _, s := range t.Sessions {
		if len(s.Periods) == 0 && len(s.Parts) == 0 {
			continue
		}
		date := s.CreatedAt
		if len(s.Periods) > 0 {
			date = s.Periods[0].StartTime
		}
		inv.Lines = append(inv.Lines, InvoiceLine{
			SessionID:   s.ID,
			Date:        date,
			Description: strings.TrimSpace(s.Description),
			Parts:       append([]task.Part{}, s.Parts...),
			Totals:      SessionTotals(s, rate),
		})
	}
	return inv
}

// InvoiceNumber is stable for a task and issue date, e.g. "INV-20250310-1A2B3C4D".
func InvoiceNumber(taskID uuid.UUID, issued time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(taskID.String(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", issued.Format("20060102"), short)
}

func FormatMoney(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
