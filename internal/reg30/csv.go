package reg30

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	xbrlArchiveURL  = "https://nsearchives.nseindia.com/corporate/xbrl/"
	ixbrlArchiveURL = "https://nsearchives.nseindia.com/corporate/ixbrl/"

	unknownCompany = "Unknown"
)

// Header keys per logical column. A header matches a column when its
// normalized form contains any of the keys.
var (
	symbolKeys       = []string{"symbol", "sym"}
	companyKeys      = []string{"companyname", "issuer", "name"}
	subjectKeys      = []string{"subject", "purpose", "eventsubject", "category"}
	detailsKeys      = []string{"details", "description", "brief", "narration", "descriptionofevent", "typeofsubmission"}
	dateKeys         = []string{"date", "timestamp", "createdatetime", "reportingdate", "exdate", "broadcastdate"}
	attachmentKeys   = []string{"attachment", "link", "document", "xbrlfilename", "attachmentlink"}
	ratingActionKeys = []string{"ratingaction"}
)

var (
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]`)

	monthCodes = map[string]string{
		"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04", "MAY": "05", "JUN": "06",
		"JUL": "07", "AUG": "08", "SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
	}
)

// ParseCSV parses an exchange disclosure CSV export into event candidates.
// Columns are detected from the header; rows with fewer than two fields are
// skipped. now supplies the date used when a row has none.
func ParseCSV(text string, source Source, now time.Time) []EventCandidate {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r", "")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil
	}

	headers := SplitCSVLine(lines[0])
	idxSymbol := FindColumn(headers, symbolKeys)
	idxCompany := FindColumn(headers, companyKeys)
	idxSubject := FindColumn(headers, subjectKeys)
	idxDetails := FindColumn(headers, detailsKeys)
	idxDate := FindColumn(headers, dateKeys)
	idxAttachment := FindColumn(headers, attachmentKeys)
	idxRating := FindColumn(headers, ratingActionKeys)

	candidates := make([]EventCandidate, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		values := SplitCSVLine(lines[i])
		if len(values) < 2 {
			continue
		}

		company := field(values, idxCompany)
		if idxCompany == -1 || company == "" {
			company = unknownCompany
		}
		category := field(values, idxSubject)
		details := field(values, idxDetails)
		ratingAction := field(values, idxRating)
		link := NormalizeLink(field(values, idxAttachment), source)
		eventDate := NormalizeDate(field(values, idxDate), now)

		candidates = append(candidates, EventCandidate{
			ID:             StringHash(fmt.Sprintf("%s-%s-%d-%s", company, eventDate, i, source)),
			Source:         source,
			EventDate:      eventDate,
			Symbol:         strings.ToUpper(field(values, idxSymbol)),
			CompanyName:    company,
			Category:       category,
			Details:        details,
			RatingAction:   ratingAction,
			RawText:        fmt.Sprintf("%s | Details: %s | Company: %s", category, details, company),
			AttachmentLink: link,
			EventFamily:    Classify(ClassificationText(category, details, ratingAction), source),
		})
	}
	return candidates
}

// SplitCSVLine splits one CSV line on commas outside double quotes. Fields
// are trimmed and surrounding quotes removed.
func SplitCSVLine(line string) []string {
	var result []string
	var current strings.Builder
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			result = append(result, cleanField(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(result, cleanField(current.String()))
}

// FindColumn returns the index of the first header matching any key, or -1
func FindColumn(headers []string, keys []string) int {
	normKeys := make([]string, len(keys))
	for i, k := range keys {
		normKeys[i] = normalizeHeader(k)
	}
	for i, h := range headers {
		nh := normalizeHeader(h)
		for _, k := range normKeys {
			if strings.Contains(nh, k) {
				return i
			}
		}
	}
	return -1
}

// NormalizeLink expands an attachment file name into a full archive URL.
// Links that are already absolute are returned unchanged.
func NormalizeLink(raw string, source Source) string {
	link := strings.TrimSpace(raw)
	if link == "" || link == "null" {
		return ""
	}
	if strings.HasPrefix(link, "http") {
		return link
	}
	if strings.HasSuffix(link, ".xml") || source == SourceXBRL || source == SourceCreditRating {
		return xbrlArchiveURL + link
	}
	return ixbrlArchiveURL + link
}

// NormalizeDate converts the date formats seen in exchange exports to
// YYYY-MM-DD. Unrecognised input is returned upper-cased; empty input yields
// the date of now.
func NormalizeDate(raw string, now time.Time) string {
	clean := strings.ToUpper(strings.SplitN(strings.TrimSpace(raw), " ", 2)[0])
	if clean == "" {
		return now.Format("2006-01-02")
	}

	// DD-MON-YYYY
	if parts := strings.Split(clean, "-"); len(parts) == 3 && (!isDigit(clean[0]) || !isNumeric(parts[1])) {
		month, ok := monthCodes[parts[1]]
		if !ok {
			month = "01"
		}
		return parts[2] + "-" + month + "-" + padLeft(parts[0])
	}

	sep := ""
	switch {
	case strings.Contains(clean, "-"):
		sep = "-"
	case strings.Contains(clean, "/"):
		sep = "/"
	}
	if sep != "" {
		if p := strings.Split(clean, sep); len(p) == 3 {
			if len(p[2]) == 4 {
				return p[2] + "-" + padLeft(p[1]) + "-" + padLeft(p[0])
			}
			if len(p[0]) == 4 {
				return p[0] + "-" + padLeft(p[1]) + "-" + padLeft(p[2])
			}
		}
	}
	return clean
}

func field(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return values[idx]
}

func cleanField(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func normalizeHeader(s string) string {
	return nonAlnumPattern.ReplaceAllString(strings.ToLower(s), "")
}

func padLeft(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
