package httpclient

import (
	"log/slog"
)

// ClientFactory creates HTTP clients with appropriate circuit breaker protection
// based on service names. This decouples services from circuit breaker management.
type ClientFactory struct {
	manager       *CircuitBreakerManager
	defaultConfig Config
	logger        *slog.Logger
}

// NewClientFactory creates a new client factory.
// If manager is nil, uses the DefaultManager.
func NewClientFactory(manager *CircuitBreakerManager) *ClientFactory {
	if manager == nil {
		manager = DefaultManager
	}

	return &ClientFactory{
		manager:       manager,
		defaultConfig: DefaultConfig(),
		logger:        slog.Default(),
	}
}

// CreateClientForService creates an HTTP client for a specific service.
// The client uses a circuit breaker from the manager, so every client created
// for the same service name shares one breaker's state.
//
// Service names:
//   - "catalog_m3u" - M3U catalog source fetching
//   - "proxy_image" - channel logo image proxying
func (f *ClientFactory) CreateClientForService(serviceName string) *Client {
	// Get or create circuit breaker for this service
	breaker := f.manager.GetOrCreate(serviceName)

	// Get the service's effective config for acceptable status codes
	cbConfig := f.manager.GetServiceConfig(serviceName)

	// Create client config
	cfg := f.defaultConfig
	cfg.AcceptableStatusCodes = cbConfig.AcceptableStatusCodes

	// Create client with the shared breaker
	client := NewWithBreaker(cfg, breaker)

	f.logger.Debug("created HTTP client for service",
		slog.String("service", serviceName),
		slog.String("circuit_state", breaker.State().String()),
	)

	return client
}

// CreateClientWithConfig creates an HTTP client with custom config and circuit breaker
// from the manager for the given service name.
func (f *ClientFactory) CreateClientWithConfig(serviceName string, cfg Config) *Client {
	breaker := f.manager.GetOrCreate(serviceName)

	// Override acceptable status codes from circuit breaker config if not set
	if cfg.AcceptableStatusCodes == nil {
		cbConfig := f.manager.GetServiceConfig(serviceName)
		cfg.AcceptableStatusCodes = cbConfig.AcceptableStatusCodes
	}

	return NewWithBreaker(cfg, breaker)
}

// DefaultFactory is a convenience factory using the default manager.
var DefaultFactory = NewClientFactory(nil)
