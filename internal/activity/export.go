package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"vaulttrail/internal/activity/metrics"
)

// Format selects the export rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a caller-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// EmptyCSVExport is the sentinel returned instead of header+rows when there is
// nothing to export.
const EmptyCSVExport = "No logs to export"

const csvHeader = "ID,Timestamp,Date,Type,Description,Status,Duration (ms),User DID,Details,Sub Steps"

// filePrefix names generated export files: <prefix>-<epoch-ms>.<ext>.
const filePrefix = "activity-logs"

// Export is one rendered download.
type Export struct {
	Format      Format
	FileName    string
	Content     string
	RecordCount int
}

// ContentType returns the MIME type for file delivery.
func (e Export) ContentType() string {
	if e.Format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Exporter renders the collection into deterministic textual form. Every
// successful export appends a data_exported activity through the lifecycle
// service, recording the format, generated file name, and pre-export count.
type Exporter struct {
	store   LogStore
	service *Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type ExporterOption func(*Exporter)

func WithExporterLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = logger }
}

func WithExporterMetrics(m *metrics.Metrics) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

func WithExporterClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) { e.now = now }
}

func NewExporter(store LogStore, service *Service, opts ...ExporterOption) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("activity log store is required")
	}
	if service == nil {
		return nil, fmt.Errorf("activity service is required")
	}

	e := &Exporter{store: store, service: service, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Export renders the full collection in the given format. The self-referential
// data_exported record is appended only after content generation succeeds; a
// failure to append it does not fail the export.
func (e *Exporter) Export(ctx context.Context, format Format) (Export, error) {
	logs, err := e.store.Load(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("export activities: %w", err)
	}
	return e.render(ctx, wellFormed(logs), format)
}

// ExportFiltered renders an already-filtered view, normally the Query
// engine's output.
func (e *Exporter) ExportFiltered(ctx context.Context, logs []Log, format Format) (Export, error) {
	return e.render(ctx, logs, format)
}

func (e *Exporter) render(ctx context.Context, logs []Log, format Format) (Export, error) {
	var content string
	var err error
	switch format {
	case FormatJSON:
		content, err = RenderJSON(logs)
	case FormatCSV:
		content = RenderCSV(logs)
	default:
		return Export{}, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return Export{}, fmt.Errorf("render %s export: %w", format, err)
	}

	out := Export{
		Format:      format,
		FileName:    fmt.Sprintf("%s-%d.%s", filePrefix, e.now().UnixMilli(), format),
		Content:     content,
		RecordCount: len(logs),
	}

	if _, err := e.service.LogActivity(ctx, TypeDataExported,
		fmt.Sprintf("Exported %d activity logs as %s", out.RecordCount, strings.ToUpper(string(format))),
		WithDetails(map[string]any{
			"format":   string(format),
			"fileName": out.FileName,
			"logCount": out.RecordCount,
		}),
	); err != nil {
		// The export itself succeeded; losing the follow-up record is the
		// lesser failure.
		e.logger.Warn("failed to record data_exported activity", "error", err)
	}
	if e.metrics != nil {
		e.metrics.IncrementExportsGenerated(string(format))
	}
	return out, nil
}

// RenderJSON is the pretty-printed array form, 2-space indentation, field
// order and presence as declared on Log.
func RenderJSON(logs []Log) (string, error) {
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderCSV is the fixed-header row form. String fields that can hold
// arbitrary text (description, details, sub-steps) are quoted with internal
// double quotes doubled; numeric and enum fields are emitted bare. An empty
// collection produces the EmptyCSVExport sentinel instead of header+rows.
func RenderCSV(logs []Log) string {
	if len(logs) == 0 {
		return EmptyCSVExport
	}

	var b strings.Builder
	b.WriteString(csvHeader)
	for _, l := range logs {
		b.WriteByte('\n')
		b.WriteString(csvRow(l))
	}
	return b.String()
}

func csvRow(l Log) string {
	duration := ""
	if l.Duration != nil {
		duration = strconv.FormatInt(*l.Duration, 10)
	}

	details := ""
	if l.Details != nil {
		if rendered, err := json.Marshal(l.Details); err == nil {
			details = csvQuote(string(rendered))
		}
	}

	subSteps := ""
	if len(l.SubSteps) > 0 {
		parts := make([]string, len(l.SubSteps))
		for i, st := range l.SubSteps {
			parts[i] = fmt.Sprintf("%d. %s [%s]", st.Order, st.Description, st.Status)
		}
		subSteps = csvQuote(strings.Join(parts, "; "))
	}

	fields := []string{
		l.ID,
		strconv.FormatInt(l.Timestamp, 10),
		isoDate(l.Timestamp),
		string(l.Type),
		csvQuote(l.Description),
		string(l.Status),
		duration,
		l.UserDID,
		details,
		subSteps,
	}
	return strings.Join(fields, ",")
}

// csvQuote wraps a field in double quotes, doubling any embedded quotes, the
// standard CSV escape so re-parsing recovers the original text.
func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isoDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
