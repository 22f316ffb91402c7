// Package symbols maps exchange symbols to the broker's stock codes.
package symbols

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"gopkg.in/yaml.v3"
)

// MasterKeyPrefix prefixes master list entries in the key/value store
const MasterKeyPrefix = "nse_master:"

// builtin holds codes the broker is known to spell differently
var builtin = map[string]string{
	"AHLUCONT":   "AHLCON",
	"AXISCADES":  "AXIIT",
	"MEDICO":     "MEDREM",
	"WAAREERTL":  "SANADV",
	"SANGHVIMOV": "SANMOV",
}

// mappingFile is the YAML layout of the optional override file
type mappingFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

// Service implements interfaces.SymbolResolver
type Service struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
	file   map[string]string
	mu     sync.RWMutex
	cache  map[string]string
}

var _ interfaces.SymbolResolver = (*Service)(nil)

// NewService creates a resolver. mappingPath may be empty.
func NewService(kv interfaces.KeyValueStorage, mappingPath string, logger arbor.ILogger) (*Service, error) {
	s := &Service{
		kv:     kv,
		logger: logger,
		file:   map[string]string{},
		cache:  map[string]string{},
	}

	if mappingPath != "" {
		data, err := os.ReadFile(mappingPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read symbol mapping file %s: %w", mappingPath, err)
		}
		var mf mappingFile
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("failed to parse symbol mapping file %s: %w", mappingPath, err)
		}
		for k, v := range mf.Mappings {
			s.file[normalize(k)] = normalize(v)
		}
		logger.Info().Str("path", mappingPath).Int("mappings", len(s.file)).Msg("Symbol mapping file loaded")
	}

	return s, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Resolve returns the broker code for symbol. Lookup order is the cache,
// the builtin table, the mapping file, the master list and finally the
// symbol itself. Only matches are cached.
func (s *Service) Resolve(ctx context.Context, symbol string) string {
	sym := normalize(symbol)
	if sym == "" {
		return ""
	}

	s.mu.RLock()
	code, ok := s.cache[sym]
	s.mu.RUnlock()
	if ok {
		return code
	}

	code, ok = builtin[sym]
	if !ok {
		code, ok = s.file[sym]
	}
	if !ok && s.kv != nil {
		value, err := s.kv.Get(ctx, MasterKeyPrefix+sym)
		if err == nil && strings.TrimSpace(value) != "" {
			code, ok = normalize(value), true
		}
	}
	if !ok {
		return sym
	}

	s.mu.Lock()
	s.cache[sym] = code
	s.mu.Unlock()
	return code
}

// ImportMasterList stores a "symbol,short_name" CSV in the key/value store
// and returns the number of rows imported. A header row is skipped.
func (s *Service) ImportMasterList(ctx context.Context, csvText string) (int, error) {
	if s.kv == nil {
		return 0, fmt.Errorf("symbol master list requires key/value storage")
	}

	pairs := map[string]string{}
	for i, line := range strings.Split(strings.ReplaceAll(csvText, "\r", ""), "\n") {
		fields := reg30.SplitCSVLine(line)
		if len(fields) < 2 {
			continue
		}
		sym, short := normalize(fields[0]), normalize(fields[1])
		if i == 0 && strings.EqualFold(sym, "symbol") {
			continue
		}
		if sym == "" || short == "" {
			continue
		}
		pairs[MasterKeyPrefix+sym] = short
	}

	if len(pairs) == 0 {
		return 0, nil
	}
	if err := s.kv.SetMany(ctx, pairs, "NSE master list"); err != nil {
		return 0, fmt.Errorf("failed to store master list: %w", err)
	}

	// Drop cached results so imported codes take effect
	s.mu.Lock()
	s.cache = map[string]string{}
	s.mu.Unlock()

	s.logger.Info().Int("rows", len(pairs)).Msg("Symbol master list imported")
	return len(pairs), nil
}
