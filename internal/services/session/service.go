// Package session manages the broker's daily API session token
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
)

// KVKey is where the last activated session token is kept
const KVKey = "breeze_api_session"

// ErrNoSession is returned when no token has been stored
var ErrNoSession = errors.New("no broker session stored")

// Activator forwards a session token to the broker proxy
type Activator interface {
	SetSession(ctx context.Context, apiSession string) error
}

// Info describes the stored token without exposing it
type Info struct {
	Present     bool      `json:"present"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	Today       bool      `json:"today"`
	Masked      string    `json:"masked,omitempty"`
}

// Service activates and remembers the session token
type Service struct {
	proxy   Activator
	storage interfaces.KeyValueStorage
	clock   *market.SessionClock
	logger  arbor.ILogger
}

// NewService creates a new session service
func NewService(proxy Activator, storage interfaces.KeyValueStorage, clock *market.SessionClock, logger arbor.ILogger) *Service {
	return &Service{
		proxy:   proxy,
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

// Activate forwards token to the proxy and stores it once accepted
func (s *Service) Activate(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("api_session cannot be empty")
	}

	if err := s.proxy.SetSession(ctx, token); err != nil {
		s.logger.Error().Err(err).Msg("Failed to activate broker session")
		return err
	}

	if err := s.storage.Set(ctx, KVKey, token, "Breeze daily API session"); err != nil {
		s.logger.Error().Err(err).Str("key", KVKey).Msg("Failed to store broker session")
		return err
	}

	s.logger.Info().Str("session", mask(token)).Msg("Broker session activated")
	return nil
}

// Info reports whether a token is stored and when it was activated
func (s *Service) Info(ctx context.Context) (*Info, error) {
	pair, err := s.storage.GetPair(ctx, KVKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return &Info{}, nil
	}
	if err != nil {
		return nil, err
	}

	activated := pair.UpdatedAt.In(market.IST)
	return &Info{
		Present:     true,
		ActivatedAt: activated,
		Today:       sameDay(activated, s.clock.Now()),
		Masked:      mask(pair.Value),
	}, nil
}

// Restore re-sends a token activated earlier today, so a restart does not
// need a fresh login. Older tokens are expired upstream and are left alone.
func (s *Service) Restore(ctx context.Context) error {
	pair, err := s.storage.GetPair(ctx, KVKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}

	if !sameDay(pair.UpdatedAt.In(market.IST), s.clock.Now()) {
		s.logger.Debug().Time("activated_at", pair.UpdatedAt).Msg("Stored broker session is stale, not restoring")
		return ErrNoSession
	}

	if err := s.proxy.SetSession(ctx, pair.Value); err != nil {
		return fmt.Errorf("failed to restore broker session: %w", err)
	}
	s.logger.Info().Str("session", mask(pair.Value)).Msg("Broker session restored")
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// mask keeps the last four characters
func mask(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
