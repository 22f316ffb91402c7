// Package analysis runs disclosure batches through attachment fetch,
// extraction, scoring, tactical analysis and narrative, and persists the
// resulting reports.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/metrics"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

const (
	// Cache namespaces for AI results
	NamespaceExtraction = "extraction"
	NamespaceNarrative  = "narrative"

	DefaultImpactThreshold = 50

	fallbackNarrative   = "Tactical overview generated successfully."
	reanalyzedNarrative = "Analysis updated."
)

// ErrNoExtractor is returned when no extraction model is configured
var ErrNoExtractor = errors.New("no extraction model configured")

// Progress is one status change of a candidate within a run
type Progress struct {
	RunID       string       `json:"run_id"`
	CandidateID string       `json:"candidate_id"`
	Symbol      string       `json:"symbol"`
	Status      reg30.Status `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// RunSummary is published when a run finishes
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Service is the disclosure analysis pipeline
type Service struct {
	reports     interfaces.ReportStorage
	cache       interfaces.CacheStorage
	attachments interfaces.AttachmentFetcher
	extractor   interfaces.EventExtractor
	narrator    interfaces.EventNarrator
	events      interfaces.EventService
	logger      arbor.ILogger

	impactThreshold int
	now             func() time.Time

	// background runs derive from ctx and are tracked by wg
	ctx context.Context
	wg  sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*RunSummary
}

// NewService creates the pipeline. narrator and events may be nil; without a
// narrator high-impact reports get the fallback narrative.
func NewService(
	ctx context.Context,
	reports interfaces.ReportStorage,
	cache interfaces.CacheStorage,
	attachments interfaces.AttachmentFetcher,
	extractor interfaces.EventExtractor,
	narrator interfaces.EventNarrator,
	events interfaces.EventService,
	impactThreshold int,
	logger arbor.ILogger,
) *Service {
	if impactThreshold <= 0 {
		impactThreshold = DefaultImpactThreshold
	}
	return &Service{
		reports:         reports,
		cache:           cache,
		attachments:     attachments,
		extractor:       extractor,
		narrator:        narrator,
		events:          events,
		logger:          logger,
		impactThreshold: impactThreshold,
		now:             time.Now,
		ctx:             ctx,
		runs:            make(map[string]*RunSummary),
	}
}

// Start analyses candidates in the background and returns the run id.
// Progress is delivered on the event bus. The run stops between rows once
// the service context ends.
func (s *Service) Start(candidates []reg30.EventCandidate) (string, error) {
	if s.extractor == nil {
		return "", ErrNoExtractor
	}

	runID := common.NewRunID()
	s.setRun(&RunSummary{RunID: runID, Total: len(candidates)})

	s.wg.Add(1)
	common.SafeGo(s.logger, "reg30-analysis", func() {
		defer s.wg.Done()
		if _, err := s.analyze(s.ctx, runID, candidates, nil); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Analysis run failed")
		}
	})
	return runID, nil
}

// Wait blocks until every background run has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run returns the summary of a started run
func (s *Service) Run(runID string) (*RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	copied := *run
	return &copied, true
}

func (s *Service) setRun(run *RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.RunID] = &copied
}

// Analyze runs candidates through the pipeline one at a time and returns the
// saved reports. A failed row is reported through progress and does not stop
// the batch. progress may be nil.
func (s *Service) Analyze(ctx context.Context, candidates []reg30.EventCandidate, progress func(Progress)) ([]*reg30.Report, error) {
	runID := common.NewRunID()
	s.setRun(&RunSummary{RunID: runID, Total: len(candidates)})
	return s.analyze(ctx, runID, candidates, progress)
}

func (s *Service) analyze(ctx context.Context, runID string, candidates []reg30.EventCandidate, progress func(Progress)) ([]*reg30.Report, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}

	start := time.Now()
	summary := &RunSummary{RunID: runID, Total: len(candidates)}
	reports := make([]*reg30.Report, 0, len(candidates))

	s.logger.Info().Str("run_id", runID).Int("candidates", len(candidates)).Msg("Analysis run started")

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		emit := func(status reg30.Status, err error) {
			p := Progress{RunID: runID, CandidateID: c.ID, Symbol: c.Symbol, Status: status}
			if err != nil {
				p.Error = err.Error()
			}
			if progress != nil {
				progress(p)
			}
			s.publish(ctx, interfaces.EventReg30Progress, p)
		}

		report, err := s.analyzeOne(ctx, c, emit)
		if err != nil {
			summary.Failed++
			metrics.AnalysisRowsTotal.WithLabelValues(string(reg30.StatusFailed)).Inc()
			s.logger.Warn().Err(err).Str("run_id", runID).Str("symbol", c.Symbol).Msg("Disclosure analysis failed")
			emit(reg30.StatusFailed, err)
		} else {
			summary.Completed++
			metrics.AnalysisRowsTotal.WithLabelValues(string(reg30.StatusCompleted)).Inc()
			reports = append(reports, report)
			emit(reg30.StatusCompleted, nil)
		}
		s.setRun(summary)
	}

	summary.Duration = time.Since(start)
	s.setRun(summary)
	s.logger.Info().
		Str("run_id", runID).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Analysis run completed")
	s.publish(ctx, interfaces.EventReg30Completed, *summary)
	return reports, nil
}

func (s *Service) analyzeOne(ctx context.Context, c reg30.EventCandidate, emit func(reg30.Status, error)) (*reg30.Report, error) {
	emit(reg30.StatusFetching, nil)
	if c.EventFamily == "" {
		c.EventFamily = reg30.Classify(c.RawText, c.Source)
	}

	key := reg30.ExtractionCacheKey(c)
	var ext reg30.Extraction
	hit := s.getCached(ctx, NamespaceExtraction, key, &ext)
	if !hit {
		c.AttachmentText = s.resolveAttachment(ctx, c)
		emit(reg30.StatusAIAnalyzing, nil)
		result, err := s.extractor.Extract(ctx, interfaces.ExtractionInput{Candidate: c, DocumentText: c.AttachmentText})
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		ext = *result
		s.putCached(ctx, NamespaceExtraction, key, ext)
	}

	report := s.buildReport(c, ext)
	if report.ImpactScore >= s.impactThreshold {
		s.applyTactical(ctx, report, c, ext, true, fallbackNarrative)
	}

	emit(reg30.StatusSaving, nil)
	if _, err := s.reports.UpsertReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ReAnalyze re-runs extraction for a stored report, bypassing the caches,
// and replaces the stored analysis
func (s *Service) ReAnalyze(ctx context.Context, fingerprint string) (*reg30.Report, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}

	existing, err := s.reports.GetReport(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	rawText := existing.RawText
	if rawText == "" {
		rawText = existing.Summary
	}
	c := reg30.EventCandidate{
		ID:             existing.CandidateID,
		Source:         existing.Source,
		EventDate:      existing.EventDate,
		Symbol:         existing.Symbol,
		CompanyName:    existing.CompanyName,
		Category:       string(existing.EventFamily),
		RawText:        rawText,
		AttachmentLink: existing.AttachmentLink,
		EventFamily:    existing.EventFamily,
	}
	c.AttachmentText = s.resolveAttachment(ctx, c)

	result, err := s.extractor.Extract(ctx, interfaces.ExtractionInput{Candidate: c, DocumentText: c.AttachmentText})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	s.putCached(ctx, NamespaceExtraction, reg30.ExtractionCacheKey(c), *result)

	report := s.buildReport(c, *result)
	report.EventFingerprint = existing.EventFingerprint
	report.CreatedAt = existing.CreatedAt
	if report.ImpactScore >= s.impactThreshold {
		s.applyTactical(ctx, report, c, *result, false, reanalyzedNarrative)
	}

	if _, err := s.reports.UpsertReport(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info().Str("fingerprint", fingerprint).Int("impact", report.ImpactScore).Msg("Report re-analysed")
	return report, nil
}

// ListReports returns stored reports, newest event first
func (s *Service) ListReports(ctx context.Context, filter interfaces.ReportFilter) ([]*reg30.Report, error) {
	filter.Symbol = strings.ToUpper(strings.TrimSpace(filter.Symbol))
	return s.reports.ListReports(ctx, filter)
}

// GetReport returns one stored report
func (s *Service) GetReport(ctx context.Context, fingerprint string) (*reg30.Report, error) {
	return s.reports.GetReport(ctx, fingerprint)
}

// Wipe deletes every stored report
func (s *Service) Wipe(ctx context.Context) (int, error) {
	n, err := s.reports.DeleteAllReports(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("deleted", n).Msg("Report history cleared")
	return n, nil
}

// resolveAttachment returns the candidate's text, fetching the attachment
// when none was supplied. A fetch failure yields empty text.
func (s *Service) resolveAttachment(ctx context.Context, c reg30.EventCandidate) string {
	if c.AttachmentText != "" || c.AttachmentLink == "" || s.attachments == nil {
		return c.AttachmentText
	}
	text, err := s.attachments.Fetch(ctx, c.AttachmentLink)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", c.Symbol).Str("link", c.AttachmentLink).Msg("Attachment fetch failed")
		return ""
	}
	return text
}

func (s *Service) buildReport(c reg30.EventCandidate, ext reg30.Extraction) *reg30.Report {
	score := reg30.Score(c.EventFamily, ext.Extracted, ext.Confidence, c.EventDate)
	return &reg30.Report{
		EventFingerprint: reg30.Fingerprint(c.Symbol, c.CompanyName, c.EventDate, ext.Summary, c.ID),
		CandidateID:      c.ID,
		Source:           c.Source,
		Symbol:           c.Symbol,
		CompanyName:      c.CompanyName,
		EventDate:        c.EventDate,
		EventFamily:      c.EventFamily,
		Stage:            ext.Extracted.Stage,
		Summary:          ext.Summary,
		ImpactScore:      score.ImpactScore,
		Direction:        score.Direction,
		Confidence:       ext.Confidence,
		Recommendation:   score.Recommendation,
		Extracted:        ext.Extracted,
		EvidenceSpans:    ext.EvidenceSpans,
		MissingFields:    ext.MissingFields,
		ScoringFactors:   score.Factors,
		ConversionBonus:  score.ConversionBonus,
		ExecutionMonths:  score.ExecutionMonths,
		OrderType:        score.OrderType,
		RawText:          c.RawText,
		AttachmentLink:   c.AttachmentLink,
		AttachmentText:   c.AttachmentText,
	}
}

// applyTactical fills the deterministic tactical block and the narrative.
// A narrative failure falls back to fallback.
func (s *Service) applyTactical(ctx context.Context, report *reg30.Report, c reg30.EventCandidate, ext reg30.Extraction, useCache bool, fallback string) {
	tactical := reg30.AnalyzeTactical(reg30.TacticalInput{
		EventDate:   c.EventDate,
		Summary:     ext.Summary,
		ImpactScore: report.ImpactScore,
		Extracted:   ext.Extracted,
	})
	report.InstitutionalRisk = tactical.InstitutionalRisk
	report.PolicyBias = tactical.PolicyBias
	report.PolicyEvent = tactical.PolicyEvent
	report.TacticalPlan = tactical.TacticalPlan
	report.TriggerText = tactical.TriggerText
	report.ExecutionRealism = tactical.ExecutionRealism
	report.AnalysisUpdatedAt = s.now()

	report.Narrative = fallback
	if s.narrator == nil {
		return
	}

	key := reg30.NarrativeCacheKey(c.Symbol, c.EventDate, tactical.TacticalPlan)
	var narrative reg30.Narrative
	if useCache && s.getCached(ctx, NamespaceNarrative, key, &narrative) {
		report.Narrative = narrative.Text
		report.NarrativeTone = narrative.Tone
		return
	}

	score := reg30.ScoreResult{
		ImpactScore:     report.ImpactScore,
		Direction:       report.Direction,
		Recommendation:  report.Recommendation,
		Factors:         report.ScoringFactors,
		ConversionBonus: report.ConversionBonus,
		ExecutionMonths: report.ExecutionMonths,
		OrderType:       report.OrderType,
	}
	result, err := s.narrator.Narrate(ctx, interfaces.NarrativeInput{
		Candidate: c,
		Summary:   ext.Summary,
		Extracted: ext.Extracted,
		Score:     score,
		Tactical:  tactical,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", c.Symbol).Msg("Narrative generation failed")
		return
	}

	report.Narrative = result.Text
	report.NarrativeTone = result.Tone
	s.putCached(ctx, NamespaceNarrative, key, *result)
}

func (s *Service) getCached(ctx context.Context, namespace, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.GetCached(ctx, namespace, key, dest)
	if err != nil {
		s.logger.Warn().Err(err).Str("namespace", namespace).Msg("Cache read failed")
	}
	result := "miss"
	if found && err == nil {
		result = "hit"
	}
	metrics.AICacheTotal.WithLabelValues(namespace, result).Inc()
	return found && err == nil
}

func (s *Service) putCached(ctx context.Context, namespace, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutCached(ctx, namespace, key, value); err != nil {
		s.logger.Warn().Err(err).Str("namespace", namespace).Msg("Cache write failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
