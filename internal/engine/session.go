package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/events"
)

// Mode identifies which adapter pair the session is bound to.
type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// TokenStore is the write side of the remote client's bearer token.
type TokenStore interface {
	Set(token string)
	Clear()
}

// IdentityStore persists the local guest identity across restarts.
type IdentityStore interface {
	LoadOrCreate() (string, error)
	Reset() (string, error)
}

// Adapters pairs the portfolio and watchlist stores for one backing side.
type Adapters struct {
	Portfolio domain.PortfolioStore
	Watchlist domain.WatchlistStore
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	Guest      Adapters
	Remote     Adapters
	Tokens     TokenStore
	Identities IdentityStore
	Cache      *cache.Store
	Events     *events.Manager
	Log        zerolog.Logger
}

// Session tracks the active identity and the adapter pair every read and
// mutation resolves through. Switching identity rescopes the cache, so no
// entry written under the previous identity survives the transition.
type Session struct {
	mu       sync.RWMutex
	mode     Mode
	identity string
	active   Adapters

	guest      Adapters
	remote     Adapters
	tokens     TokenStore
	identities IdentityStore
	cache      *cache.Store
	events     *events.Manager
	log        zerolog.Logger
}

// NewSession creates a session with no identity bound yet. Call
// BeginGuest before serving any requests.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		mode:       ModeGuest,
		guest:      cfg.Guest,
		remote:     cfg.Remote,
		tokens:     cfg.Tokens,
		identities: cfg.Identities,
		cache:      cfg.Cache,
		events:     cfg.Events,
		log:        cfg.Log.With().Str("service", "session").Logger(),
	}
}

// BeginGuest binds the guest adapters under the persisted guest identity,
// minting one on first run.
func (s *Session) BeginGuest() error {
	identity, err := s.identities.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load guest identity: %w", err)
	}

	s.rebind(ModeGuest, identity, s.guest)
	return nil
}

// Login stores the bearer token and rebinds the session to the remote
// adapters under the user's identity.
func (s *Session) Login(userID, token string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("User id is required.")
	}
	if strings.TrimSpace(token) == "" {
		return domain.NewValidationError("Token is required.")
	}

	s.tokens.Set(token)
	s.rebind(ModeAuthenticated, userID, s.remote)
	return nil
}

// Logout clears the bearer token and returns to guest mode under a
// fresh, empty guest identity. Logging out never resurrects the guest
// state that predated the login.
func (s *Session) Logout() error {
	s.tokens.Clear()

	identity, err := s.identities.Reset()
	if err != nil {
		return fmt.Errorf("failed to reset guest identity: %w", err)
	}

	s.rebind(ModeGuest, identity, s.guest)
	return nil
}

// rebind switches mode, identity and adapters, rescopes the cache, and
// announces the transition.
func (s *Session) rebind(mode Mode, identity string, adapters Adapters) {
	s.mu.Lock()
	s.mode = mode
	s.identity = identity
	s.active = adapters
	s.mu.Unlock()

	s.cache.Scope(identity)

	s.log.Info().
		Str("mode", string(mode)).
		Str("identity", identity).
		Msg("Session rebound")

	s.events.Emit("session", &events.SessionChangedData{
		Mode:     string(mode),
		Identity: identity,
	})
}

// Mode returns the current session mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Identity returns the identity the cache is currently scoped to.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Portfolio returns the portfolio store of the active adapter pair.
func (s *Session) Portfolio() domain.PortfolioStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Portfolio
}

// Watchlist returns the watchlist store of the active adapter pair.
func (s *Session) Watchlist() domain.WatchlistStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Watchlist
}
