package steward

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/steward/pkg/adapters/loam"
	"github.com/aretw0/steward/pkg/config"
	"github.com/aretw0/steward/pkg/domain"
)

// LoadDocument reads a config file or a cookbook directory.
// All failures are *domain.ConfigParseError.
func LoadDocument(ctx context.Context, path string) (*config.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ConfigParseError{Path: path, Cause: err}
	}
	if !info.IsDir() {
		return config.Load(path)
	}

	loader, err := loam.Open(path)
	if err != nil {
		return nil, &domain.ConfigParseError{Path: path, Cause: err}
	}
	doc, err := loader.Load(ctx)
	if err != nil {
		var cpe *domain.ConfigParseError
		if errors.As(err, &cpe) {
			return nil, err
		}
		return nil, &domain.ConfigParseError{Path: path, Cause: fmt.Errorf("failed to load cookbook: %w", err)}
	}
	return doc, nil
}
