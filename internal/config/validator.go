package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks only what must hold before the server can start.
// Per-request material (ingest keys, upstream secret/URL, routing config)
// is checked at request time so a node can boot before it is provisioned.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if cfg.Mode != ModeFull && cfg.Mode != ModeLite {
		errs = append(errs, &ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("mode must be %q or %q, got %q", ModeFull, ModeLite, cfg.Mode),
		})
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Edge.MaxHops < 1 {
		errs = append(errs, &ValidationError{
			Field:   "edge.max_hops",
			Message: fmt.Sprintf("max_hops must be at least 1, got %d", cfg.Edge.MaxHops),
		})
	}

	if cfg.Mode == ModeLite {
		switch cfg.Store.Backend {
		case "redis", "file":
		default:
			errs = append(errs, &ValidationError{
				Field:   "store.backend",
				Message: fmt.Sprintf("backend must be \"redis\" or \"file\", got %q", cfg.Store.Backend),
			})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}
