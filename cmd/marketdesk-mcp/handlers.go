package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

const defaultImpactThreshold = 50

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// optionalFloat returns nil when the argument is absent
func optionalFloat(request mcp.CallToolRequest, key string) *float64 {
	if _, ok := request.GetArguments()[key]; !ok {
		return nil
	}
	v := request.GetFloat(key, 0)
	return &v
}

// handleComputeLiquidity implements the compute_liquidity tool
func handleComputeLiquidity(clock *market.SessionClock, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ltp, err := request.RequireFloat("ltp")
		if err != nil {
			return errorResult("Error: ltp parameter is required"), nil
		}

		q := market.Quote{
			LastTradedPrice:   ltp,
			Open:              request.GetFloat("open", 0),
			High:              request.GetFloat("high", 0),
			Low:               request.GetFloat("low", 0),
			Volume:            request.GetFloat("volume", 0),
			BestBidPrice:      request.GetFloat("bid", 0),
			BestOfferPrice:    request.GetFloat("ask", 0),
			BestBidQuantity:   request.GetFloat("bid_qty", 0),
			BestOfferQuantity: request.GetFloat("ask_qty", 0),
		}
		metrics := market.CalculateLiquidity(q, nil, optionalFloat(request, "avg_vol"))
		hint := market.RecommendationHint(clock.IsOpen(), &metrics)

		logger.Debug().Float64("ltp", ltp).Str("regime", string(metrics.Regime)).Msg("compute_liquidity")
		return textResult(formatLiquidity(metrics, hint)), nil
	}
}

// handleScoreEvent implements the score_event tool
func handleScoreEvent(logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		family, err := request.RequireString("family")
		if err != nil || family == "" {
			return errorResult("Error: family parameter is required"), nil
		}

		var ext reg30.ExtractedFields
		if raw := request.GetString("extracted", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &ext); err != nil {
				return errorResult(fmt.Sprintf("Error: extracted is not valid JSON: %v", err)), nil
			}
		}

		confidence := request.GetFloat("confidence", 1)
		eventDate := request.GetString("event_date", "")

		score := reg30.Score(reg30.Family(strings.ToUpper(family)), ext, confidence, eventDate)

		var tactical *reg30.TacticalAnalysis
		if score.ImpactScore >= defaultImpactThreshold {
			t := reg30.AnalyzeTactical(reg30.TacticalInput{
				EventDate:   eventDate,
				Summary:     request.GetString("summary", ""),
				ImpactScore: score.ImpactScore,
				Extracted:   ext,
			})
			tactical = &t
		}

		logger.Debug().Str("family", family).Int("impact", score.ImpactScore).Msg("score_event")
		return textResult(formatScore(score, tactical)), nil
	}
}

// handleClassifyEvent implements the classify_event tool
func handleClassifyEvent(logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return errorResult("Error: text parameter is required"), nil
		}

		source := reg30.ParseSource(request.GetString("source", ""))
		family, rule := reg30.ClassifyWithRule(text, source)

		logger.Debug().Str("family", string(family)).Str("rule", rule).Msg("classify_event")
		return textResult(fmt.Sprintf("**Family:** %s\n**Rule:** %s\n**Source:** %s\n", family, rule, source)), nil
	}
}

// handleMarketSession implements the market_session tool
func handleMarketSession(clock *market.SessionClock) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		now := clock.Now()
		return textResult(fmt.Sprintf("**Status:** %s\n**Open:** %t\n**Time (IST):** %s\n",
			clock.Status(), clock.IsOpen(), now.Format("Mon 02 Jan 2006 15:04"))), nil
	}
}

// handleListReports implements the list_reports tool
func handleListReports(reports interfaces.ReportStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 100
		}

		filter := interfaces.ReportFilter{
			Symbol: request.GetString("symbol", ""),
			Family: reg30.Family(strings.ToUpper(request.GetString("family", ""))),
			Limit:  limit,
		}

		list, err := reports.ListReports(ctx, filter)
		if err != nil {
			logger.Error().Err(err).Msg("ListReports failed")
			return errorResult(fmt.Sprintf("Failed to list reports: %v", err)), nil
		}

		return textResult(formatReports(list)), nil
	}
}
