// Package out renders query result tables as table, CSV, JSON, or xargs
// output.
package out

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rusty-ferris-club/recon/internal/index"
	"github.com/rusty-ferris-club/recon/internal/ui"
)

// repr renders a single cell value. NULL renders empty, strings render
// verbatim, everything else via its canonical text form.
func repr(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ToCSV exports the table as CSV with a header row.
func ToCSV(vt *index.ValuesTable) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(vt.Columns); err != nil {
		return "", fmt.Errorf("cannot convert to csv: %w", err)
	}
	for _, row := range vt.Rows {
		record := make([]string, len(row))
		for i, val := range row {
			record[i] = repr(val)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("cannot convert to csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("cannot convert to csv: %w", err)
	}
	return sb.String(), nil
}

// ToJSON exports the result set as a JSON array of row objects keyed by
// column name.
func ToJSON(vt *index.ValuesTable) (string, error) {
	objects := make([]map[string]any, 0, len(vt.Rows))
	for _, row := range vt.Rows {
		obj := make(map[string]any, len(vt.Columns))
		for i, col := range vt.Columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		objects = append(objects, obj)
	}
	b, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not convert to json: %w", err)
	}
	return string(b) + "\n", nil
}

// ToXargs converts the result to an xargs-friendly list: the first column of
// every row, one value per line.
func ToXargs(vt *index.ValuesTable) string {
	vals := make([]string, 0, len(vt.Rows))
	for _, row := range vt.Rows {
		if len(row) > 0 {
			vals = append(vals, repr(row[0]))
		}
	}
	return strings.Join(vals, "\n") + "\n"
}

// ToTable renders the result set as a table. Styled output draws borders via
// lipgloss; plain output (--no-style or a pipe) uses spacing alignment only.
// width caps the styled table's width; 0 leaves it unbounded.
func ToTable(vt *index.ValuesTable, styled bool, width int) string {
	if !styled {
		return plainTable(vt)
	}

	rows := make([][]string, len(vt.Rows))
	for i, row := range vt.Rows {
		cells := make([]string, len(row))
		for j, val := range row {
			cells[j] = repr(val)
		}
		rows[i] = cells
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.Muted).
		Headers(vt.Columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.Bold.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if width > 0 {
		tbl = tbl.Width(width)
	}
	return tbl.Render() + "\n"
}

func plainTable(vt *index.ValuesTable) string {
	t := ui.NewTable(len(vt.Columns))
	t.SetHeader(vt.Columns...)
	for _, row := range vt.Rows {
		cells := make([]string, len(row))
		for i, val := range row {
			cells[i] = repr(val)
		}
		t.AddRow(cells...)
	}
	return t.String()
}
