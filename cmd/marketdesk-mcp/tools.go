package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createComputeLiquidityTool returns the compute_liquidity tool definition
func createComputeLiquidityTool() mcp.Tool {
	return mcp.NewTool("compute_liquidity",
		mcp.WithDescription("Compute spread, depth ratio, volume ratio, regime and execution style for one quote"),
		mcp.WithNumber("ltp", mcp.Required(), mcp.Description("Last traded price")),
		mcp.WithNumber("bid", mcp.Description("Best bid price")),
		mcp.WithNumber("ask", mcp.Description("Best offer price")),
		mcp.WithNumber("bid_qty", mcp.Description("Best bid quantity")),
		mcp.WithNumber("ask_qty", mcp.Description("Best offer quantity")),
		mcp.WithNumber("open", mcp.Description("Session open")),
		mcp.WithNumber("high", mcp.Description("Session high")),
		mcp.WithNumber("low", mcp.Description("Session low")),
		mcp.WithNumber("volume", mcp.Description("Volume traded today")),
		mcp.WithNumber("avg_vol", mcp.Description("20-day average volume; omit when unknown")),
	)
}

// createScoreEventTool returns the score_event tool definition
func createScoreEventTool() mcp.Tool {
	return mcp.NewTool("score_event",
		mcp.WithDescription("Score a classified disclosure and derive the deterministic tactical plan"),
		mcp.WithString("family",
			mcp.Required(),
			mcp.Description("Event family, e.g. ORDER_CONTRACT, CREDIT_RATING, LITIGATION_REGULATORY"),
		),
		mcp.WithString("extracted",
			mcp.Description(`Extracted fields as JSON, e.g. {"order_value_cr":1200,"stage":"LOA","execution_months":18}`),
		),
		mcp.WithNumber("confidence", mcp.Description("Extraction confidence 0..1 (default: 1)")),
		mcp.WithString("event_date", mcp.Description("Event date YYYY-MM-DD")),
		mcp.WithString("summary", mcp.Description("One-line summary, used for the policy check")),
	)
}

// createClassifyEventTool returns the classify_event tool definition
func createClassifyEventTool() mcp.Tool {
	return mcp.NewTool("classify_event",
		mcp.WithDescription("Classify disclosure text into an event family"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Subject and details of the disclosure")),
		mcp.WithString("source", mcp.Description("Feed: XBRL, CorpAction, CreditRating or RSS (default: XBRL)")),
	)
}

// createMarketSessionTool returns the market_session tool definition
func createMarketSessionTool() mcp.Tool {
	return mcp.NewTool("market_session",
		mcp.WithDescription("Report whether the NSE cash session is open now"),
	)
}

// createListReportsTool returns the list_reports tool definition
func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List stored disclosure reports, newest event first"),
		mcp.WithString("symbol", mcp.Description("Filter by exchange symbol")),
		mcp.WithString("family", mcp.Description("Filter by event family")),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 20, max: 100)")),
	)
}
