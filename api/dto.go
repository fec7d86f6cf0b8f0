/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are sent twice: a display string with two decimals ("12.34") and
  the integer cents. Clients that sum must use the cents.

HOURS:
  Durations are rendered H:MM:SS, the same as the text report.

SEE ALSO:
  - handlers.go: Uses these types
  - store/sqlite/sqlite.go: RunRecord
*/
package api

import (
	"time"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
	"github.com/Astoria-Consulting/mad-dogs/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateRunRequest asks for a run over an inclusive date range. When both
// dates are empty the most recently closed pay period is used.
type CreateRunRequest struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// RunDTO is an archived run.
type RunDTO struct {
	ID          string          `json:"id"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Timezone    string          `json:"timezone"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   string          `json:"started_at"`
	FinishedAt  string          `json:"finished_at,omitempty"`
	Stats       StatsDTO        `json:"stats"`
	Rows        []ReportRowDTO  `json:"rows,omitempty"`
	Diagnostics []DiagnosticDTO `json:"diagnostics,omitempty"`
}

// StatsDTO mirrors payroll.Stats.
type StatsDTO struct {
	Payments          int    `json:"payments"`
	Processed         int    `json:"processed"`
	Failed            int    `json:"failed"`
	DuplicatePayments int    `json:"duplicate_payments"`
	DuplicateOrders   int    `json:"duplicate_orders"`
	MissingOrders     int    `json:"missing_orders"`
	Allocations       int    `json:"allocations"`
	SkippedItems      int    `json:"skipped_items"`
	DirectTips        string `json:"direct_tips"`
	Tipouts           string `json:"tipouts"`
}

// ReportRowDTO is one worker's line of the report.
type ReportRowDTO struct {
	WorkerID     string `json:"worker_id"`
	Name         string `json:"name"`
	NetTips      string `json:"net_tips"`
	NetTipsCents int64  `json:"net_tips_cents"`
	Kitchen      string `json:"kitchen"`
	Bartender    string `json:"bartender"`
	Server       string `json:"server"`
	Host         string `json:"host"`
}

// DiagnosticDTO is a non-fatal problem recorded by a run.
type DiagnosticDTO struct {
	Kind      string `json:"kind"`
	PaymentID string `json:"payment_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	WorkerID  string `json:"worker_id,omitempty"`
	Message   string `json:"message"`
}

// PostingDTO is one ledger movement.
type PostingDTO struct {
	Kind       string `json:"kind"`
	Delta      string `json:"delta"`
	DeltaCents int64  `json:"delta_cents"`
	PaymentID  string `json:"payment_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Category   string `json:"category,omitempty"`
	LineItem   string `json:"line_item,omitempty"`
}

// RoutingRuleDTO is one category's routing.
type RoutingRuleDTO struct {
	Category   string   `json:"category"`
	From       []string `json:"from"`
	To         []string `json:"to"`
	Percentage string   `json:"percentage"`
}

// HealthDTO reports the state of each dependency.
type HealthDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRunDTO(rec *sqlite.RunRecord) RunDTO {
	dto := RunDTO{
		ID:          rec.ID,
		PeriodStart: rec.PeriodStart,
		PeriodEnd:   rec.PeriodEnd,
		Timezone:    rec.Timezone,
		Status:      rec.Status,
		Error:       rec.Error,
		StartedAt:   rec.StartedAt.Format(time.RFC3339),
		Stats:       toStatsDTO(rec.Stats),
	}
	if !rec.FinishedAt.IsZero() {
		dto.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
	}
	for _, row := range rec.Rows {
		dto.Rows = append(dto.Rows, toReportRowDTO(row))
	}
	for _, d := range rec.Diagnostics {
		dto.Diagnostics = append(dto.Diagnostics, DiagnosticDTO{
			Kind:      d.Kind,
			PaymentID: d.PaymentID,
			OrderID:   d.OrderID,
			WorkerID:  d.WorkerID,
			Message:   d.Message,
		})
	}
	return dto
}

func toStatsDTO(s payroll.Stats) StatsDTO {
	return StatsDTO{
		Payments:          s.Payments,
		Processed:         s.Processed,
		Failed:            s.Failed,
		DuplicatePayments: s.DuplicatePayments,
		DuplicateOrders:   s.DuplicateOrders,
		MissingOrders:     s.MissingOrders,
		Allocations:       s.Allocations,
		SkippedItems:      s.SkippedItems,
		DirectTips:        s.DirectTips.String(),
		Tipouts:           s.Tipouts.String(),
	}
}

func toReportRowDTO(row payroll.ReportRow) ReportRowDTO {
	return ReportRowDTO{
		WorkerID:     string(row.WorkerID),
		Name:         row.WorkerName,
		NetTips:      row.NetTips.String(),
		NetTipsCents: int64(row.NetTips),
		Kitchen:      payroll.FormatDuration(row.Kitchen()),
		Bartender:    payroll.FormatDuration(row.Bartender()),
		Server:       payroll.FormatDuration(row.Server()),
		Host:         payroll.FormatDuration(row.Host()),
	}
}

func toPostingDTO(p payroll.Posting) PostingDTO {
	return PostingDTO{
		Kind:       string(p.Kind),
		Delta:      p.Delta.String(),
		DeltaCents: int64(p.Delta),
		PaymentID:  string(p.PaymentID),
		OrderID:    string(p.OrderID),
		Category:   p.Category,
		LineItem:   p.LineItem,
	}
}

func toRoutingRuleDTO(r payroll.RoutingRule) RoutingRuleDTO {
	dto := RoutingRuleDTO{
		Category:   r.Category,
		From:       []string{},
		To:         []string{},
		Percentage: r.Percentage.String(),
	}
	for _, role := range r.From {
		dto.From = append(dto.From, role.String())
	}
	for _, role := range r.To {
		dto.To = append(dto.To, role.String())
	}
	return dto
}
