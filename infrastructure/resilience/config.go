package resilience

import (
	"time"

	"github.com/aosedge/aos_core_lib_go/infrastructure/logging"
)

// BackendCircuitBreakerConfig provides preconfigured circuit breaker
// settings for calls into a crypto back-end (PSA/HSM dispatch, provider
// key operations) or a resource-usage provider.
type BackendCircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int

	// TimeoutSeconds is the duration to wait in open state before trying half-open.
	TimeoutSeconds int

	// HalfOpenMax is the maximum number of requests allowed in half-open state.
	HalfOpenMax int

	// Logger for state change notifications (optional).
	Logger *logging.Logger
}

// DefaultBackendCBConfig returns a circuit breaker configuration suitable
// for most back-end dispatch calls.
func DefaultBackendCBConfig(logger *logging.Logger) Config {
	return BackendCBConfig(BackendCircuitBreakerConfig{
		MaxFailures:    5,
		TimeoutSeconds: 30,
		HalfOpenMax:    3,
		Logger:         logger,
	})
}

// StrictBackendCBConfig returns a conservative circuit breaker
// configuration for back-ends that should fail fast (e.g. a hardware
// security module with a narrow call budget).
func StrictBackendCBConfig(logger *logging.Logger) Config {
	return BackendCBConfig(BackendCircuitBreakerConfig{
		MaxFailures:    3,
		TimeoutSeconds: 60,
		HalfOpenMax:    1,
		Logger:         logger,
	})
}

// LenientBackendCBConfig returns a lenient circuit breaker configuration
// for back-ends that can tolerate more failures (e.g. a local gopsutil
// sampler).
func LenientBackendCBConfig(logger *logging.Logger) Config {
	return BackendCBConfig(BackendCircuitBreakerConfig{
		MaxFailures:    10,
		TimeoutSeconds: 15,
		HalfOpenMax:    5,
		Logger:         logger,
	})
}

// BackendCBConfig creates a Config from BackendCircuitBreakerConfig.
func BackendCBConfig(cfg BackendCircuitBreakerConfig) Config {
	cbConfig := Config{
		MaxFailures: cfg.MaxFailures,
		Timeout:     SecondsToDuration(cfg.TimeoutSeconds),
		HalfOpenMax: cfg.HalfOpenMax,
	}

	if cbConfig.MaxFailures <= 0 {
		cbConfig.MaxFailures = 5
	}
	if cbConfig.Timeout <= 0 {
		cbConfig.Timeout = 30 * time.Second
	}
	if cbConfig.HalfOpenMax <= 0 {
		cbConfig.HalfOpenMax = 3
	}

	if cfg.Logger != nil {
		cbConfig.OnStateChange = func(from, to State) {
			cfg.Logger.WithFields(map[string]interface{}{
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		}
	}

	return cbConfig
}

// SecondsToDuration converts seconds to a Duration.
func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
