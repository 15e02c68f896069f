package ragchat

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
)

const modelCheckTimeout = 5 * time.Second

// modelLister is implemented by providers that can list the models present
// on their backend.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// hasModel reports whether model is available on the provider's backend.
// "llama3.1" matches "llama3.1:latest". Providers that cannot list models
// always report true.
func hasModel(ctx context.Context, provider any, model string) (bool, error) {
	lister, ok := provider.(modelLister)
	if !ok {
		return true, nil
	}

	names, err := lister.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == model || strings.HasPrefix(name, model+":") {
			return true, nil
		}
	}
	return false, nil
}

// warnMissingModel logs a warning when model has not been pulled yet. The
// first request would fail otherwise with an opaque 404 from the backend.
func warnMissingModel(ctx context.Context, kind string, provider any, model string) {
	ctx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	ok, err := hasModel(ctx, provider, model)
	switch {
	case err != nil:
		logger.Warnw("failed to list models", "kind", kind, "model", model, "error", err.Error())
	case !ok:
		logger.Warnw("model not available on backend, pull it before use", "kind", kind, "model", model)
	}
}
