package reg30

import (
	"strconv"
	"unicode/utf16"
)

// StringHash returns the 32-bit rolling string hash (h = h*31 + c over UTF-16
// code units) of s as lower-case hex of its absolute value. It is stable
// across processes and used for candidate ids, cache keys and fingerprints.
func StringHash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 16)
}

// Fingerprint is the idempotency key of a persisted report
func Fingerprint(symbol, company, eventDate, summary, candidateID string) string {
	return StringHash(symbol + "|" + company + "|" + eventDate + "|" + prefix(summary, 30) + "|" + candidateID)
}

// ExtractionCacheKey keys the extraction cache by family, company and
// attachment link. The candidate id stands in only when there is no link.
func ExtractionCacheKey(c EventCandidate) string {
	link := c.AttachmentLink
	if link == "" {
		link = c.ID
	}
	return StringHash(string(c.EventFamily) + "|" + c.CompanyName + "|" + link)
}

// NarrativeCacheKey keys the narrative cache for a scored event
func NarrativeCacheKey(symbol, eventDate, plan string) string {
	return StringHash("narrative_v2|" + symbol + "|" + eventDate + "|" + plan)
}

// prefix returns the first n UTF-16 code units of s
func prefix(s string, n int) string {
	units := utf16.Encode([]rune(s))
	if len(units) <= n {
		return s
	}
	return string(utf16.Decode(units[:n]))
}
