package report

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	baseFont     = "Arial"
	baseSize     = 9.0
	lineHeight   = 5.0
	pageWidth    = 190.0
	pageBottom   = 297.0 - 15.0
	cellPadding  = 2.0
	maxCellLines = 8
)

// pdfRenderer walks a goldmark AST and draws it with fpdf core fonts
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

// write emits inline text. Core fonts are cp1252, so the rupee sign is
// spelled out.
func (r *pdfRenderer) write(s string) {
	s = strings.ReplaceAll(s, "₹", "Rs ")
	r.pdf.Write(lineHeight, r.translate(s))
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(baseFont, style, baseSize)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", baseSize)
			r.write(string(node.Text(r.source)))
			r.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		r.list(entering)
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(lineHeight)
			r.pdf.SetX(15 + float64(r.listLevel)*5)
			r.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(10, r.pdf.GetY(), 200, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(6)
		r.updateFont()
		return
	}
	r.pdf.Ln(4)
	size := 10.0
	switch n.Level {
	case 1:
		size = 14
	case 2:
		size = 12
	case 3:
		size = 11
	}
	r.pdf.SetFont(baseFont, "B", size)
}

// list tracks nesting. Items inside a tight list carry their text directly,
// so paragraph spacing is only added once the outermost list closes.
func (r *pdfRenderer) list(entering bool) {
	if entering {
		r.listLevel++
		return
	}
	r.listLevel--
	if r.listLevel == 0 {
		r.pdf.Ln(lineHeight + 2)
	}
}

func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableHeader, *extast.TableRow:
				var row []string
				for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
					row = append(row, r.translate(strings.ReplaceAll(string(cell.Text(r.source)), "₹", "Rs ")))
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const fontSize = 8.0
	const rowLine = 4.0
	widths := r.columnWidths(rows, fontSize)

	r.pdf.Ln(2)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(baseFont, style, fontSize)

		lines := 1
		for j, cell := range row {
			if j < len(widths) {
				if n := len(r.pdf.SplitText(cell, widths[j]-cellPadding)); n > lines {
					lines = n
				}
			}
		}
		if lines > maxCellLines {
			lines = maxCellLines
		}
		height := float64(lines)*rowLine + cellPadding

		x, y := r.pdf.GetX(), r.pdf.GetY()
		if y+height > pageBottom {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}

		offset := x
		for j, cell := range row {
			if j >= len(widths) {
				break
			}
			border := "D"
			if i == 0 {
				border = "FD"
			}
			r.pdf.Rect(offset, y, widths[j], height, border)

			wrapped := r.pdf.SplitText(cell, widths[j]-cellPadding)
			for k := 0; k < len(wrapped) && k < maxCellLines; k++ {
				r.pdf.SetXY(offset+1, y+1+float64(k)*rowLine)
				r.pdf.CellFormat(widths[j]-cellPadding, rowLine, wrapped[k], "", 0, "L", false, 0, "")
			}
			offset += widths[j]
		}
		r.pdf.SetXY(x, y+height)
	}

	r.pdf.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns by their widest cell, clamped to a third of the
// page, then scaled to fit the page width
func (r *pdfRenderer) columnWidths(rows [][]string, fontSize float64) []float64 {
	cols := len(rows[0])
	widths := make([]float64, cols)

	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(baseFont, style, fontSize)
		for j, cell := range row {
			if j < cols {
				if w := r.pdf.GetStringWidth(cell) + 4; w > widths[j] {
					widths[j] = w
				}
			}
		}
	}

	const minWidth = 12.0
	maxWidth := pageWidth / 3
	total := 0.0
	for j := range widths {
		if widths[j] < minWidth {
			widths[j] = minWidth
		}
		if widths[j] > maxWidth && cols > 2 {
			widths[j] = maxWidth
		}
		total += widths[j]
	}

	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}
