package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

const maxEvidenceChars = 160

// extractJSON returns the outermost {...} of response, or response itself
// when it holds no object
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

// parseExtraction decodes and validates a model response. Enum fields with
// values outside their allowed set are cleared and numeric ranges are
// clamped; only undecodable output fails.
func parseExtraction(validate *validator.Validate, response string) (*reg30.Extraction, error) {
	var ext reg30.Extraction
	if err := json.Unmarshal([]byte(extractJSON(response)), &ext); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	x := &ext.Extracted
	x.Stage = strings.ToUpper(strings.TrimSpace(x.Stage))
	x.OrderType = strings.ToUpper(strings.TrimSpace(x.OrderType))
	x.Conditionality = strings.ToUpper(strings.TrimSpace(x.Conditionality))

	if err := validate.Struct(&ext); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			if fe.Tag() != "oneof" {
				return nil, fmt.Errorf("invalid extraction: %w", err)
			}
			switch fe.StructField() {
			case "Stage":
				x.Stage = ""
			case "OrderType":
				x.OrderType = ""
			case "Conditionality":
				x.Conditionality = ""
			}
		}
	}

	ext.ImpactScore = math.Max(0, math.Min(100, ext.ImpactScore))
	ext.Confidence = math.Max(0, math.Min(1, ext.Confidence))

	if ext.MissingFields == nil {
		ext.MissingFields = []string{}
	}
	spans := make([]string, 0, len(ext.EvidenceSpans))
	for _, span := range ext.EvidenceSpans {
		if span = strings.TrimSpace(span); span != "" {
			spans = append(spans, common.TruncateRunes(span, maxEvidenceChars))
		}
	}
	ext.EvidenceSpans = spans

	return &ext, nil
}

func parseNarrative(response string) (*reg30.Narrative, error) {
	var n reg30.Narrative
	if err := json.Unmarshal([]byte(extractJSON(response)), &n); err != nil {
		return nil, fmt.Errorf("failed to decode narrative: %w", err)
	}
	n.Text = strings.TrimSpace(n.Text)
	if n.Text == "" {
		return nil, fmt.Errorf("narrative text is empty")
	}
	return &n, nil
}
