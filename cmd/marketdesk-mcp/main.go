package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/storage"
)

func main() {
	configPath := os.Getenv("MARKETDESK_CONFIG")
	if configPath == "" {
		configPath = "marketdesk.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// The badger directory is locked by a running server; point MARKETDESK_BADGER_PATH at a copy when both run
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	clock := market.NewSessionClock(nil)

	mcpServer := server.NewMCPServer(
		"marketdesk",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createComputeLiquidityTool(), handleComputeLiquidity(clock, logger))
	mcpServer.AddTool(createScoreEventTool(), handleScoreEvent(logger))
	mcpServer.AddTool(createClassifyEventTool(), handleClassifyEvent(logger))
	mcpServer.AddTool(createMarketSessionTool(), handleMarketSession(clock))
	mcpServer.AddTool(createListReportsTool(), handleListReports(storageManager.ReportStorage(), logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
