package sources

import (
	"fmt"

	"github.com/stacklok/gateway-release-server/internal/config"
)

// NewSource creates the source described by the configuration
func NewSource(cfg *config.SourceConfig) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source configuration is required")
	}

	switch {
	case cfg.File != nil:
		return NewFileSource(cfg.File.Path)
	default:
		return nil, fmt.Errorf("no source type configured")
	}
}
