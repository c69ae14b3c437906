package hexdump

import (
	"fmt"
	"io"
	"strings"

	"memvis/coloransi"
)

// FormatFunc is a callback to format/colorize cell values
type FormatFunc func(value string) string

// ColumnSpec defines a column's properties
type ColumnSpec struct {
	Header     string
	BlankValue string     // Value to show for empty cells (default: "-")
	FormatFunc FormatFunc // Optional formatter/colorizer
	MinWidth   int        // Minimum column width
}

// border separates columns and frames the table.
const border = "|"

// Table lays out rows of cells in aligned, bordered columns. Cells may carry
// ANSI colour sequences; widths are computed from the visible text.
type Table struct {
	columns   []ColumnSpec
	rows      [][]string
	widths    []int
	separator string
}

// NewTable creates a new table with the given column specifications
func NewTable(cols ...ColumnSpec) *Table {
	t := &Table{
		columns:   cols,
		rows:      make([][]string, 0),
		widths:    make([]int, len(cols)),
		separator: "-",
	}

	for i, col := range cols {
		t.widths[i] = max(col.MinWidth, coloransi.VisibleLength(col.Header))
	}

	for i := range t.columns {
		if t.columns[i].BlankValue == "" {
			t.columns[i].BlankValue = "-"
		}
	}

	return t
}

// AddRow adds a row of data to the table
func (t *Table) AddRow(data ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(data) && data[i] != "" {
			row[i] = data[i]
		} else {
			row[i] = t.columns[i].BlankValue
		}

		if visLen := coloransi.VisibleLength(row[i]); visLen > t.widths[i] {
			t.widths[i] = visLen
		}
	}

	t.rows = append(t.rows, row)
}

// Render writes the table to the given writer
func (t *Table) Render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = t.pad(col.Header, t.widths[i])
	}

	rule := t.rule()
	if _, err := fmt.Fprintln(w, rule); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.line(headers)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, rule); err != nil {
		return err
	}

	for _, row := range t.rows {
		formatted := make([]string, len(row))
		for i, val := range row {
			displayVal := val
			if t.columns[i].FormatFunc != nil {
				displayVal = t.columns[i].FormatFunc(val)
			}
			formatted[i] = t.pad(displayVal, t.widths[i])
		}
		if _, err := fmt.Fprintln(w, t.line(formatted)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, rule)
	return err
}

func (t *Table) line(cells []string) string {
	return border + " " + strings.Join(cells, " "+border+" ") + " " + border
}

func (t *Table) rule() string {
	parts := make([]string, len(t.widths))
	for i, width := range t.widths {
		parts[i] = strings.Repeat(t.separator, width+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

// pad pads a string to the given width
func (t *Table) pad(s string, width int) string {
	visibleLen := coloransi.VisibleLength(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
