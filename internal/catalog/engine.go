// Package catalog provides the search and launch engine that matches free-text
// queries against a session's catalog snapshot.
package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/match"
	pkgcatalog "github.com/HerbHall/skillpath/pkg/catalog"
)

// Config holds catalog engine settings.
type Config struct {
	FetchTimeout  time.Duration  `mapstructure:"fetch_timeout"`
	FetchOnLaunch bool           `mapstructure:"fetch_on_launch"`
	File          string         `mapstructure:"file"`
	Selector      match.Selector `mapstructure:"selector"`
	Resolver      match.Resolver `mapstructure:"resolver"`
	Suggestions   int            `mapstructure:"suggestions"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 30 * time.Second,
		Selector:     match.DefaultSelector(),
		Resolver:     match.DefaultResolver(),
		Suggestions:  3,
	}
}

// Engine ranks a session's catalog for content search and resolves launch
// requests against it.
type Engine struct {
	cache  *Cache
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an engine backed by cache.
func NewEngine(cache *Cache, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{cache: cache, cfg: cfg, logger: logger}
}

// Cache returns the engine's snapshot cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Search ranks the session's catalog against query and returns the bounded
// selection. The catalog is fetched on the session's first search.
func (e *Engine) Search(ctx context.Context, sessionID, query string) (match.Selection, error) {
	snap, err := e.cache.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ranking := match.Rank(query, snap.Entries(), entryTitle)
	sel := e.cfg.Selector.Select(ranking)

	e.logger.Debug("content search",
		zap.String("session_id", sessionID),
		zap.String("query", query),
		zap.Int("candidates", len(ranking)),
		zap.Int("selected", len(sel)),
	)
	return sel, nil
}

// Launch resolves name to a single catalog entry. Without a snapshot for the
// session the request is rejected, unless FetchOnLaunch is set.
func (e *Engine) Launch(ctx context.Context, sessionID, name string) (match.Decision, error) {
	snap := e.cache.Peek(sessionID)
	if snap == nil && e.cfg.FetchOnLaunch {
		var err error
		if snap, err = e.cache.Snapshot(ctx, sessionID); err != nil {
			return match.Decision{}, err
		}
	}

	var entries []pkgcatalog.Entry
	if snap != nil {
		entries = snap.Entries()
	}

	d := e.cfg.Resolver.Resolve(name, entries)
	e.logger.Debug("launch resolved",
		zap.String("session_id", sessionID),
		zap.String("name", name),
		zap.Bool("accepted", d.Accepted),
		zap.Float64("score", d.Score),
	)
	return d, nil
}

// Suggest lists close titles for a rejected launch using the snapshot the
// session already holds. It never fetches.
func (e *Engine) Suggest(sessionID, name string) []string {
	snap := e.cache.Peek(sessionID)
	if snap == nil {
		return nil
	}
	return match.Suggest(name, snap.Entries(), e.cfg.Suggestions)
}

// Entries returns the session's snapshot entries, or false when the session
// has not fetched a catalog yet.
func (e *Engine) Entries(sessionID string) ([]pkgcatalog.Entry, bool) {
	snap := e.cache.Peek(sessionID)
	if snap == nil {
		return nil, false
	}
	return snap.Entries(), true
}

func entryTitle(e pkgcatalog.Entry) string { return e.Title }
