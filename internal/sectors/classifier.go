// Package sectors resolves a stock's sector label and holds the theme tables
// used when clustering surging stocks.
package sectors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Classifier resolves sectors from ticker overrides first, then name rules.
// It never fails: unknown stocks resolve to SectorOther.
type Classifier struct {
	mu        sync.RWMutex
	overrides map[string]string
	rules     []Rule
	log       zerolog.Logger
}

// NewClassifier creates a classifier seeded with the built-in tables
func NewClassifier(log zerolog.Logger) *Classifier {
	overrides := make(map[string]string, len(builtinOverrides))
	for k, v := range builtinOverrides {
		overrides[k] = v
	}
	rules := make([]Rule, len(builtinRules))
	copy(rules, builtinRules)

	return &Classifier{
		overrides: overrides,
		rules:     rules,
		log:       log.With().Str("component", "sector_classifier").Logger(),
	}
}

// Sector returns the sector label for a stock
func (c *Classifier) Sector(ticker, name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if s, ok := c.overrides[ticker]; ok {
		return s
	}
	for _, r := range c.rules {
		if strings.Contains(name, r.Keyword) {
			return r.Sector
		}
	}
	return SectorOther
}

// SetOverride pins a ticker to a sector
func (c *Classifier) SetOverride(ticker, sector string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[ticker] = sector
}

// AddRules places extra rules ahead of the built-in ones, highest priority first
func (c *Classifier) AddRules(extra []Rule) {
	if len(extra) == 0 {
		return
	}
	sorted := make([]Rule, len(extra))
	copy(sorted, extra)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(sorted, c.rules...)
}

// LoadStore merges overrides and rules from the sqlite store
func (c *Classifier) LoadStore(ctx context.Context, store *Store) error {
	overrides, err := store.Overrides(ctx)
	if err != nil {
		return err
	}
	rules, err := store.Rules(ctx)
	if err != nil {
		return err
	}

	for ticker, sector := range overrides {
		c.SetOverride(ticker, sector)
	}
	c.AddRules(rules)

	c.log.Info().
		Int("overrides", len(overrides)).
		Int("rules", len(rules)).
		Msg("Loaded sector reference data")
	return nil
}
