package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// BorderStyle defines table border characters
type BorderStyle struct {
	Corner     string
	Horizontal string
	Vertical   string
}

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name            string
	Border          BorderStyle
	HeaderSeparator bool
	Padding         int
}

var (
	// DefaultTableStyle is a simple ASCII table
	DefaultTableStyle = TableStyle{
		Name:            "default",
		Border:          BorderStyle{Corner: "+", Horizontal: "-", Vertical: "|"},
		HeaderSeparator: true,
		Padding:         1,
	}

	// CompactTableStyle aligns columns without borders
	CompactTableStyle = TableStyle{
		Name:    "compact",
		Padding: 1,
	}
)

// GetTableStyle returns the style with the given name, default when unknown
func GetTableStyle(name string) TableStyle {
	if name == CompactTableStyle.Name {
		return CompactTableStyle
	}
	return DefaultTableStyle
}

// Table renders rows as aligned columns
type Table struct {
	headers    []string
	rows       [][]string
	alignments map[int]Alignment
	style      TableStyle
	colors     *ColorSystem
	maxWidth   int
}

// NewTable creates a table sized to the terminal. colors may be nil.
func NewTable(colors *ColorSystem, headers ...string) *Table {
	return &Table{
		headers:    headers,
		alignments: make(map[int]Alignment),
		style:      DefaultTableStyle,
		colors:     colors,
		maxWidth:   terminalWidth(),
	}
}

// AddRow appends a row
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetColumnAlignment aligns one column
func (t *Table) SetColumnAlignment(column int, alignment Alignment) {
	t.alignments[column] = alignment
}

// SetStyle changes the border style
func (t *Table) SetStyle(style TableStyle) {
	t.style = style
}

// SetMaxWidth caps the rendered width, 0 for unlimited
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// Render returns the formatted table
func (t *Table) Render() string {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return ""
	}

	widths := t.columnWidths()
	var b strings.Builder

	border := t.style.Border.Horizontal != ""
	if border {
		b.WriteString(t.separator(widths))
	}
	if len(t.headers) > 0 {
		b.WriteString(t.renderRow(t.headers, widths, true))
		if border && t.style.HeaderSeparator {
			b.WriteString(t.separator(widths))
		}
	}
	for _, row := range t.rows {
		b.WriteString(t.renderRow(row, widths, false))
	}
	if border {
		b.WriteString(t.separator(widths))
	}
	return b.String()
}

// RenderTo writes the table to w
func (t *Table) RenderTo(w io.Writer) {
	fmt.Fprint(w, t.Render())
}

func (t *Table) columnCount() int {
	n := len(t.headers)
	for _, row := range t.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// columnWidths returns content widths, shrinking the widest column while the
// table exceeds maxWidth
func (t *Table) columnWidths() []int {
	widths := make([]int, t.columnCount())
	measure := func(cells []string) {
		for i, cell := range cells {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}

	if t.maxWidth <= 0 {
		return widths
	}
	for t.totalWidth(widths) > t.maxWidth {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 4 {
			break
		}
		widths[widest]--
	}
	return widths
}

func (t *Table) totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 2*t.style.Padding
	}
	if t.style.Border.Vertical != "" {
		total += len(widths) + 1
	}
	return total
}

func (t *Table) separator(widths []int) string {
	var b strings.Builder
	b.WriteString(t.style.Border.Corner)
	for _, w := range widths {
		b.WriteString(strings.Repeat(t.style.Border.Horizontal, w+2*t.style.Padding))
		b.WriteString(t.style.Border.Corner)
	}
	b.WriteString("\n")
	return b.String()
}

func (t *Table) renderRow(row []string, widths []int, header bool) string {
	var b strings.Builder
	b.WriteString(t.style.Border.Vertical)
	for i, width := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		b.WriteString(t.formatCell(cell, width, t.alignments[i], header))
		b.WriteString(t.style.Border.Vertical)
	}
	return strings.TrimRight(b.String(), " ") + "\n"
}

func (t *Table) formatCell(content string, width int, alignment Alignment, header bool) string {
	if utf8.RuneCountInString(content) > width {
		runes := []rune(content)
		if width > 3 {
			content = string(runes[:width-3]) + "..."
		} else {
			content = string(runes[:width])
		}
	}

	fill := strings.Repeat(" ", width-utf8.RuneCountInString(content))
	if header && t.colors != nil {
		content = t.colors.Colorize(content, t.colors.Theme().Primary)
	}

	pad := strings.Repeat(" ", t.style.Padding)
	if alignment == AlignRight {
		return pad + fill + content + pad
	}
	return pad + content + fill + pad
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
