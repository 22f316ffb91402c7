package interfaces

import (
	"context"

	"github.com/ternarybob/marketdesk/internal/reg30"
)

// ExtractionInput is one disclosure handed to the extraction model
type ExtractionInput struct {
	Candidate    reg30.EventCandidate
	DocumentText string
}

// EventExtractor turns disclosure text into structured fields
type EventExtractor interface {
	Extract(ctx context.Context, input ExtractionInput) (*reg30.Extraction, error)
}

// NarrativeInput is a scored disclosure handed to the narrative model
type NarrativeInput struct {
	Candidate reg30.EventCandidate
	Summary   string
	Extracted reg30.ExtractedFields
	Score     reg30.ScoreResult
	Tactical  reg30.TacticalAnalysis
}

// EventNarrator writes a short tactical narrative for a scored disclosure
type EventNarrator interface {
	Narrate(ctx context.Context, input NarrativeInput) (*reg30.Narrative, error)
}

// AttachmentFetcher downloads a disclosure attachment and returns its text
type AttachmentFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}
