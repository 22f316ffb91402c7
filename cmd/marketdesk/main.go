// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 11:20:31 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/app"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/server"
)

const shutdownTimeout = 10 * time.Second

// defaultConfigFiles are tried in order when no -config flag is given
var defaultConfigFiles = []string{"marketdesk.toml", "deployments/local/marketdesk.toml"}

// configPaths collects repeated -config flags; later files win
type configPaths []string

func (c *configPaths) String() string { return strings.Join(*c, ",") }

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (repeatable, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()
	flag.Parse()

	common.LoadVersionFromFile()
	if *showVersion || *showVersionV {
		fmt.Printf("MarketDesk version %s\n", common.GetFullVersion())
		return
	}

	if len(configFiles) == 0 {
		configFiles = discoverConfig()
	}

	// Order matters: defaults, files, .env, env, then flags. The logger
	// needs the final config.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, resolvePort(), *serverHost)

	logger := common.InitLogger(config)
	common.InstallCrashHandler("")
	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("breeze_url", config.Breeze.BaseURL).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Strs("config_files", configFiles).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if err := serve(server.New(application), logger); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
	}
}

func discoverConfig() configPaths {
	for _, path := range defaultConfigFiles {
		if _, err := os.Stat(path); err == nil {
			return configPaths{path}
		}
	}
	return nil
}

// resolvePort prefers -p over -port; 0 keeps the configured port
func resolvePort() int {
	if *serverPortP != 0 {
		return *serverPortP
	}
	return *serverPort
}

// serve runs srv until SIGINT/SIGTERM or a listener failure, then drains
func serve(srv *server.Server, logger arbor.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		errCh <- srv.Start()
	})

	logger.Info().Msg("Server ready - Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Interrupt signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
