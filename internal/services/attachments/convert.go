package attachments

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// htmlText converts HTML to markdown, falling back to the document's
// visible text when conversion fails or comes back empty
func htmlText(html string) string {
	converter := md.NewConverter("", true, nil)
	if converted, err := converter.ConvertString(html); err == nil && strings.TrimSpace(converted) != "" {
		return converted
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()
	return collapseSpace(doc.Text())
}

// xmlText returns the text of every leaf element, one per line
func xmlText(xml string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(xml))
	if err != nil {
		return "", fmt.Errorf("failed to parse xml attachment: %w", err)
	}

	var lines []string
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		if text := collapseSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}

// pdfText extracts the page content streams with pdfcpu and keeps the
// string operands of the text showing operators
func pdfText(data []byte) (string, error) {
	outDir, err := os.MkdirTemp("", "marketdesk-pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	inFile := filepath.Join(outDir, "attachment.pdf")
	if err := os.WriteFile(inFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}
	pagesDir := filepath.Join(outDir, "pages")
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, pagesDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract pdf content: %w", err)
	}

	files, err := os.ReadDir(pagesDir)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf content: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return pageOrder(names[i]) < pageOrder(names[j]) })

	var pages []string
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(pagesDir, name))
		if err != nil {
			continue
		}
		if text := contentStreamText(string(content)); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageOrder(name string) int {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return 0
	}
	var n int
	fmt.Sscanf(name[i+1:], "%d", &n)
	return n
}

// contentStreamText collects literal strings from a PDF content stream.
// Strings shown within one text object are joined; a T* or Td/TD move or
// an ET starts a new line.
func contentStreamText(stream string) string {
	var (
		out  strings.Builder
		line strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteString("\n")
		}
		line.Reset()
	}

	for i := 0; i < len(stream); i++ {
		switch c := stream[i]; c {
		case '(':
			s, next := readLiteral(stream, i)
			line.WriteString(s)
			i = next
		case 'T':
			if i+1 < len(stream) && strings.ContainsRune("*dD", rune(stream[i+1])) {
				flush()
			}
		case 'E':
			if i+1 < len(stream) && stream[i+1] == 'T' {
				flush()
			}
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}

// readLiteral decodes the literal string starting at stream[start] == '('
// and returns it with the index of its closing parenthesis
func readLiteral(stream string, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i := start; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == '\\' && i+1 < len(stream):
			i++
			switch e := stream[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r', 't':
				sb.WriteByte(' ')
			default:
				if e >= '0' && e <= '7' {
					n := 0
					j := i
					for ; j < len(stream) && j < i+3 && stream[j] >= '0' && stream[j] <= '7'; j++ {
						n = n*8 + int(stream[j]-'0')
					}
					sb.WriteByte(byte(n))
					i = j - 1
				} else {
					sb.WriteByte(e)
				}
			}
		case c == '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), len(stream)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
