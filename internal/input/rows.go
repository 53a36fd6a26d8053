// Package input loads delivery rows from CSV, JSON or YAML files and prepares them
// for checkpoint evaluation.
package input

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EmundoT/vendor-qc/internal/schedule"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// Column names of the delivery table.
const (
	ColumnToolNumber       = "Tool_Number"
	ColumnToolColumn       = "Tool Column"
	ColumnCustomerSchedule = "Customer schedule"
	ColumnResponsibleUser  = "Responsible User"
	ColumnVendor           = "Vendor"
	ColumnTechnology       = "technology"
	ColumnProjectStartDate = "Project Start Date"
)

// RequiredColumns must be present in every input file.
var RequiredColumns = []string{
	ColumnToolNumber,
	ColumnToolColumn,
	ColumnCustomerSchedule,
	ColumnResponsibleUser,
}

// dateLayouts are tried in order when parsing date cells.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006/01/02",
	time.DateTime,
}

// maxInputFileSize guards against loading an unreasonably large input file.
const maxInputFileSize = 64 << 20

// ErrUnsupportedFormat is returned for file extensions Load does not know.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// ColumnError lists required columns absent from the input.
type ColumnError struct {
	Path    string
	Missing []string
}

func (e *ColumnError) Error() string {
	msg := "Missing required columns: " + strings.Join(e.Missing, ", ")
	if e.Path != "" {
		return e.Path + ": " + msg
	}
	return msg
}

// IsColumnError checks if err is a ColumnError.
func IsColumnError(err error) bool {
	var target *ColumnError
	return errors.As(err, &target)
}

// Option configures Load and Decode.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger receives warnings for dropped rows.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads delivery rows from path, choosing the decoder by extension
// (.csv, .json, .yaml, .yml). Rows with an unparseable customer schedule are
// dropped with a warning.
func Load(path string, opts ...Option) ([]types.DeliveryRow, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "yml" {
		format = "yaml"
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.Size() > maxInputFileSize {
		return nil, fmt.Errorf("input file %s exceeds %d bytes", path, maxInputFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rows, err := Decode(f, format, opts...)
	if err != nil {
		var colErr *ColumnError
		if errors.As(err, &colErr) {
			colErr.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// Decode reads rows in the given format: csv, json or yaml.
func Decode(r io.Reader, format string, opts ...Option) ([]types.DeliveryRow, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		records []map[string]any
		columns []string
		err     error
	)
	switch format {
	case "csv":
		records, columns, err = readCSV(r)
	case "json":
		records, columns, err = readJSON(r)
	case "yaml":
		records, columns, err = readYAML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if missing := missingColumns(columns); len(missing) > 0 {
		return nil, &ColumnError{Missing: missing}
	}

	rows := make([]types.DeliveryRow, 0, len(records))
	for i, rec := range records {
		row, err := toRow(rec)
		if err != nil {
			o.logger.Warn("dropping input row", "row", i+1, "tool", cell(rec[ColumnToolNumber]), "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([]map[string]any, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []map[string]any
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		rec := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = fields[i]
			}
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func readJSON(r io.Reader) ([]map[string]any, []string, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, nil, fmt.Errorf("parse json input: %w", err)
	}
	return records, unionColumns(records), nil
}

func readYAML(r io.Reader) ([]map[string]any, []string, error) {
	var records []map[string]any
	if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("parse yaml input: %w", err)
	}
	return records, unionColumns(records), nil
}

// unionColumns returns every key seen in any record.
func unionColumns(records []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func missingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func toRow(rec map[string]any) (types.DeliveryRow, error) {
	row := types.DeliveryRow{
		ToolNumber:      cell(rec[ColumnToolNumber]),
		ToolColumn:      cell(rec[ColumnToolColumn]),
		Vendor:          cell(rec[ColumnVendor]),
		ResponsibleUser: cell(rec[ColumnResponsibleUser]),
	}

	due, err := ParseDate(rec[ColumnCustomerSchedule])
	if err != nil {
		return row, fmt.Errorf("%s: %w", ColumnCustomerSchedule, err)
	}
	row.CustomerSchedule = due

	if v, ok := rec[ColumnProjectStartDate]; ok && cell(v) != "" {
		start, err := ParseDate(v)
		if err != nil {
			return row, fmt.Errorf("%s: %w", ColumnProjectStartDate, err)
		}
		row.ProjectStartDate = start
	}

	if v, ok := rec[ColumnTechnology]; ok && cell(v) != "" {
		tech, err := parseInt(v)
		if err != nil {
			return row, fmt.Errorf("%s: %w", ColumnTechnology, err)
		}
		row.Technology = tech
		row.HasTechnology = true
	}
	return row, nil
}

// ParseDate accepts a time.Time or a string in one of the supported layouts.
// The result is truncated to a UTC calendar date.
func ParseDate(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return dateOnly(t), nil
	}
	s := cell(v)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	}
	s := cell(v)
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// cell renders a decoded value as trimmed text.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.Format(time.DateOnly)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// FilterWindow keeps rows whose customer schedule falls within [asOf, asOf+weeks],
// compared by calendar date.
func FilterWindow(rows []types.DeliveryRow, asOf time.Time, weeks int) []types.DeliveryRow {
	from := dateOnly(asOf)
	to := from.AddDate(0, 0, 7*weeks)

	out := make([]types.DeliveryRow, 0, len(rows))
	for _, r := range rows {
		d := dateOnly(r.CustomerSchedule)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FillStartDates sets ProjectStartDate to leadBusinessDays business days before the
// customer schedule on rows that have none. rows is not modified.
func FillStartDates(rows []types.DeliveryRow, cal schedule.Calendar, leadBusinessDays int) []types.DeliveryRow {
	out := make([]types.DeliveryRow, len(rows))
	for i, r := range rows {
		if r.ProjectStartDate.IsZero() && !r.CustomerSchedule.IsZero() {
			r.ProjectStartDate = schedule.ProjectStartDate(cal, r.CustomerSchedule, leadBusinessDays)
		}
		out[i] = r
	}
	return out
}
