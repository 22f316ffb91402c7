// Package extraction implements the AI collaborators of disclosure
// analysis: structured field extraction and the tactical narrative.
package extraction

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"github.com/ternarybob/marketdesk/internal/services/llm"
)

// DefaultMaxDocumentChars is the attachment text budget sent to the model
const DefaultMaxDocumentChars = 30000

// Service implements interfaces.EventExtractor and interfaces.EventNarrator
type Service struct {
	generator        llm.Generator
	model            string
	maxDocumentChars int
	validate         *validator.Validate
	logger           arbor.ILogger
}

var (
	_ interfaces.EventExtractor = (*Service)(nil)
	_ interfaces.EventNarrator  = (*Service)(nil)
)

// NewService creates the extraction service. An empty model uses the
// generator's default provider.
func NewService(generator llm.Generator, model string, maxDocumentChars int, logger arbor.ILogger) *Service {
	if maxDocumentChars <= 0 {
		maxDocumentChars = DefaultMaxDocumentChars
	}
	return &Service{
		generator:        generator,
		model:            model,
		maxDocumentChars: maxDocumentChars,
		validate:         validator.New(),
		logger:           logger,
	}
}

// Extract asks the model for the structured fields of one disclosure
func (s *Service) Extract(ctx context.Context, input interfaces.ExtractionInput) (*reg30.Extraction, error) {
	document := common.TruncateRunes(input.DocumentText, s.maxDocumentChars)

	resp, err := s.generator.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []llm.Message{llm.UserMessage(buildExtractionPrompt(input, document))},
		Model:             s.model,
		SystemInstruction: extractionSystemInstruction,
		OutputSchema:      extractionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	ext, err := parseExtraction(s.validate, resp.Text)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("symbol", input.Candidate.Symbol).
			Str("provider", string(resp.Provider)).
			Msg("Extraction response rejected")
		return nil, err
	}

	s.logger.Debug().
		Str("symbol", input.Candidate.Symbol).
		Str("model", resp.Model).
		Float64("confidence", ext.Confidence).
		Int("missing_fields", len(ext.MissingFields)).
		Msg("Extraction completed")

	return ext, nil
}

// Narrate asks the model for the tactical narrative of a scored disclosure
func (s *Service) Narrate(ctx context.Context, input interfaces.NarrativeInput) (*reg30.Narrative, error) {
	resp, err := s.generator.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []llm.Message{llm.UserMessage(buildNarrativePrompt(input))},
		Model:             s.model,
		SystemInstruction: narrativeSystemInstruction,
		OutputSchema:      narrativeSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("narrative request failed: %w", err)
	}
	return parseNarrative(resp.Text)
}
