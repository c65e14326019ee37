package httpclient

import (
	"log/slog"
	"sync"
)

// CircuitBreakerManager shares circuit breakers and their stats across
// however many named HTTP clients a process creates. It provides:
//   - Shared circuit breakers by name (same name = same breaker instance)
//   - Global config with per-service profile overrides
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker              // Shared breakers by service name
	configs  map[string]*CircuitBreakerProfileConfig // Per-service config pointers
	config   *CircuitBreakerConfig                   // Full config with global + profiles
	logger   *slog.Logger
}

// NewCircuitBreakerManager creates a new manager with the given initial configuration.
func NewCircuitBreakerManager(cfg *CircuitBreakerConfig) *CircuitBreakerManager {
	if cfg == nil {
		defaultCfg := DefaultCircuitBreakerConfig()
		cfg = &defaultCfg
	}

	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		configs:  make(map[string]*CircuitBreakerProfileConfig),
		config:   cfg,
		logger:   slog.Default(),
	}
}

// GetOrCreate returns an existing circuit breaker for the service name,
// or creates a new one with the appropriate config (merged from global + service profile).
// Multiple calls with the same name return the same breaker instance.
func (m *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return existing breaker if found
	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	// Get or create the config for this service
	cfg := m.getOrCreateConfigLocked(name)

	// Create new breaker with the config
	breaker := NewCircuitBreakerWithConfig(cfg)
	m.breakers[name] = breaker

	m.logger.Debug("created circuit breaker",
		slog.String("service", name),
		slog.Int("failure_threshold", cfg.FailureThreshold),
		slog.Duration("reset_timeout", cfg.ResetTimeout),
	)

	return breaker
}

// getOrCreateConfigLocked returns the config for a service, creating it if needed.
// Caller must hold m.mu lock.
func (m *CircuitBreakerManager) getOrCreateConfigLocked(name string) *CircuitBreakerProfileConfig {
	// Return existing config if found
	if cfg, ok := m.configs[name]; ok {
		return cfg
	}

	// Create merged config from global + service profile
	cfg := m.config.GetProfileFor(name)
	m.configs[name] = cfg
	return cfg
}

// GetServiceConfig returns the effective config for a service (merged global + profile).
func (m *CircuitBreakerManager) GetServiceConfig(name string) CircuitBreakerProfileConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cfg, ok := m.configs[name]; ok && cfg != nil {
		return *cfg
	}
	return *m.config.GetProfileFor(name)
}

// GetAllEnhancedStats returns enhanced statistics for all active circuit breakers.
func (m *CircuitBreakerManager) GetAllEnhancedStats() map[string]EnhancedCircuitBreakerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]EnhancedCircuitBreakerStats, len(m.breakers))
	for name, breaker := range m.breakers {
		stats[name] = breaker.EnhancedStats(name)
	}
	return stats
}

// GetEnhancedStats returns enhanced statistics for a specific circuit breaker.
func (m *CircuitBreakerManager) GetEnhancedStats(name string) (EnhancedCircuitBreakerStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breaker, ok := m.breakers[name]
	if !ok {
		return EnhancedCircuitBreakerStats{}, false
	}
	return breaker.EnhancedStats(name), true
}

// DefaultManager is the global default circuit breaker manager.
var DefaultManager = NewCircuitBreakerManager(nil)
