package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the caching layer settings.
type Config struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// RefsTTL is the TTL for reference catalog responses.
	RefsTTL time.Duration

	// ReportTTL is the TTL for aggregated report responses.
	ReportTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int
}

// DefaultConfig returns a Config with sensible defaults. Reference data
// changes rarely, so it gets the longer TTL.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		RefsTTL:   60 * time.Second,
		ReportTTL: 15 * time.Second,
		MaxSize:   1000,
	}
}

// ConfigFromEnv reads INAU_CACHE_ENABLED, INAU_CACHE_REFS_TTL,
// INAU_CACHE_REPORT_TTL (seconds) and INAU_CACHE_MAX_SIZE, falling back to
// defaults for any unset variable.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("INAU_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("INAU_CACHE_REFS_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RefsTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("INAU_CACHE_REPORT_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ReportTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("INAU_CACHE_MAX_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			cfg.MaxSize = size
		}
	}

	return cfg
}

// Manager holds separate cache instances for the reference catalog and the
// report endpoints, each with its own TTL, so mutations only clear the
// affected cache.
type Manager struct {
	refs   *LRUCache
	report *LRUCache
}

// NewManager creates a Manager from cfg. A nil or disabled cfg yields nil,
// which callers treat as caching off.
func NewManager(cfg *Config) *Manager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Manager{
		refs:   NewLRUCache(cfg.MaxSize, cfg.RefsTTL),
		report: NewLRUCache(cfg.MaxSize, cfg.ReportTTL),
	}
}

// Refs returns the reference catalog cache.
func (m *Manager) Refs() *LRUCache { return m.refs }

// Report returns the report cache.
func (m *Manager) Report() *LRUCache { return m.report }

// InvalidateRefs clears the reference catalog cache after a catalog mutation.
func (m *Manager) InvalidateRefs() {
	if m != nil {
		m.refs.InvalidateAll()
	}
}

// InvalidateReport clears the report cache after a ledger write.
func (m *Manager) InvalidateReport() {
	if m != nil {
		m.report.InvalidateAll()
	}
}
