package ui

import (
	"strings"
)

// Table provides minimal table rendering with simple spacing alignment and
// no borders, for --no-style output and non-TTY pipes.
type Table struct {
	header     []string
	rows       [][]string
	colWidths  []int
	colPadding int
}

// NewTable creates a new table with the specified number of columns.
func NewTable(cols int) *Table {
	return &Table{
		colWidths:  make([]int, cols),
		colPadding: 2,
	}
}

// SetHeader sets the header row.
func (t *Table) SetHeader(cells ...string) {
	t.header = t.fit(cells)
}

// AddRow adds a data row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, t.fit(cells))
}

// fit clamps a row to the column count and tracks column widths.
func (t *Table) fit(cells []string) []string {
	row := make([]string, len(t.colWidths))
	for i := 0; i < len(t.colWidths) && i < len(cells); i++ {
		row[i] = cells[i]
		if len(cells[i]) > t.colWidths[i] {
			t.colWidths[i] = len(cells[i])
		}
	}
	return row
}

// String renders the table as a string, header first when set.
func (t *Table) String() string {
	if len(t.rows) == 0 && t.header == nil {
		return ""
	}

	var sb strings.Builder
	if t.header != nil {
		t.writeRow(&sb, t.header)
	}
	for _, row := range t.rows {
		t.writeRow(&sb, row)
	}
	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, row []string) {
	padding := strings.Repeat(" ", t.colPadding)
	for i, cell := range row {
		if i > 0 {
			sb.WriteString(padding)
		}
		// Left-align, pad to column width (except last)
		if i < len(row)-1 {
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", t.colWidths[i]-len(cell)))
		} else {
			sb.WriteString(cell)
		}
	}
	sb.WriteString("\n")
}
