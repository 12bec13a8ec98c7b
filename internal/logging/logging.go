package logging

import (
	"fmt"
	"os"
)

// New builds the Logger for the configured backend ("slog" or "zap").
func New(backend, level string) (Logger, error) {
	switch backend {
	case "", "slog":
		return NewJSONSlogLogger(os.Stdout, level), nil
	case "zap":
		return NewProductionZapLogger(level)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
