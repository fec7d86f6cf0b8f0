package payroll

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// REPORT - One row per ledger entry
// =============================================================================

// ReportRow is the final line for one worker.
type ReportRow struct {
	WorkerID   WorkerID
	WorkerName string
	NetTips    Cents
	Hours      RoleHours
}

// Kitchen, Bartender, Server and Host return the per-role worked time.
func (r ReportRow) Kitchen() time.Duration   { return r.Hours.Get(RoleKitchen) }
func (r ReportRow) Bartender() time.Duration { return r.Hours.Get(RoleBartender) }
func (r ReportRow) Server() time.Duration    { return r.Hours.Get(RoleServer) }
func (r ReportRow) Host() time.Duration      { return r.Hours.Get(RoleHost) }

// Fields returns the row's columns in their fixed order:
// name, net tips, kitchen, bartender, server, host.
func (r ReportRow) Fields() []string {
	fields := []string{r.WorkerName, r.NetTips.String()}
	for _, role := range Roles {
		fields = append(fields, FormatDuration(r.Hours.Get(role)))
	}
	return fields
}

// Line renders the row pipe-delimited.
func (r ReportRow) Line() string {
	return strings.Join(r.Fields(), " | ")
}

// ReportHeader is the column header matching ReportRow.Line.
func ReportHeader() string {
	cols := []string{"Name", "Net Tips"}
	for _, role := range Roles {
		cols = append(cols, role.String())
	}
	return strings.Join(cols, " | ")
}

// =============================================================================
// SINKS
// =============================================================================

// Sink receives report rows as a run is emitted.
type Sink interface {
	Emit(ctx context.Context, row ReportRow) error
}

// WriterSink writes one pipe-delimited line per row.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	header bool
}

// NewWriterSink writes rows to w, optionally preceded by ReportHeader.
func NewWriterSink(w io.Writer, header bool) *WriterSink {
	return &WriterSink{w: w, header: header}
}

func (s *WriterSink) Emit(_ context.Context, row ReportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header {
		if _, err := fmt.Fprintln(s.w, ReportHeader()); err != nil {
			return err
		}
		s.header = false
	}
	_, err := fmt.Fprintln(s.w, row.Line())
	return err
}
