// Package attachments downloads disclosure attachments and reduces them to
// plain text for the extraction model.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/interfaces"
)

const (
	// DefaultTimeout bounds a single attachment download
	DefaultTimeout = 20 * time.Second

	// DefaultMaxChars is the text budget kept per attachment
	DefaultMaxChars = 30000

	maxDownloadBytes = 20 << 20
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Kind is the detected attachment format
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindXML  Kind = "xml"
	KindText Kind = "text"
)

// Service implements interfaces.AttachmentFetcher
type Service struct {
	httpClient *http.Client
	maxChars   int
	logger     arbor.ILogger
}

var _ interfaces.AttachmentFetcher = (*Service)(nil)

// NewService creates an attachment fetcher. A nil client gets one with
// DefaultTimeout.
func NewService(httpClient *http.Client, maxChars int, logger arbor.ILogger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{
		httpClient: httpClient,
		maxChars:   maxChars,
		logger:     logger,
	}
}

// Fetch downloads link and returns its text. An empty link yields no text.
func (s *Service) Fetch(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attachment download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}

	kind := DetectKind(resp.Header.Get("Content-Type"), link, data)
	text, err := s.toText(kind, data)
	if err != nil {
		return "", err
	}

	text = common.TruncateRunes(strings.TrimSpace(text), s.maxChars)
	s.logger.Debug().
		Str("link", link).
		Str("kind", string(kind)).
		Int("bytes", len(data)).
		Int("chars", len(text)).
		Msg("Attachment converted to text")

	return text, nil
}

func (s *Service) toText(kind Kind, data []byte) (string, error) {
	switch kind {
	case KindPDF:
		return pdfText(data)
	case KindHTML:
		return htmlText(string(data)), nil
	case KindXML:
		return xmlText(string(data))
	default:
		return string(data), nil
	}
}

// DetectKind picks the attachment format from the PDF magic bytes, the
// content type and then the link extension
func DetectKind(contentType, link string, data []byte) Kind {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return KindPDF
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return KindPDF
	case strings.Contains(ct, "html"):
		return KindHTML
	case strings.Contains(ct, "xml"):
		return KindXML
	}

	lower := strings.ToLower(link)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return KindPDF
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return KindHTML
	case strings.HasSuffix(lower, ".xml"), strings.HasSuffix(lower, ".xbrl"):
		return KindXML
	}

	head := strings.ToLower(strings.TrimSpace(string(data[:min(len(data), 512)])))
	switch {
	case strings.HasPrefix(head, "<?xml"):
		return KindXML
	case strings.HasPrefix(head, "<!doctype html"), strings.HasPrefix(head, "<html"):
		return KindHTML
	}
	return KindText
}
