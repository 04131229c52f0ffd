package qdrantidx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/engine"
	"github.com/cbir-io/retrieval/internal/queue"
)

// FXModule provides the Qdrant-backed engine and its shard factory.
//
// Dependencies required by this module:
//   - a qdrantidx.Config instance
//   - a queue.Publisher for async indexing jobs (may be nil when the
//     broker is not configured; async requests then fail fast)
//   - a *zap.Logger
var FXModule = fx.Module("engine-qdrant",
	fx.Provide(
		NewBackendWithDI,
		ProvideFactory,
	),
	fx.Invoke(RegisterBackendLifecycle),
)

// BackendParams groups the dependencies needed to open the backend.
type BackendParams struct {
	fx.In

	Config    Config
	Publisher queue.Publisher `optional:"true"`
	Logger    *zap.Logger
}

// NewBackendWithDI creates the backend from injected dependencies.
func NewBackendWithDI(params BackendParams) (*Backend, error) {
	return NewBackend(params.Config, params.Publisher, params.Logger)
}

// ProvideFactory exposes the backend's shard factory under the
// engine.Factory type expected by the registry.
func ProvideFactory(b *Backend) engine.Factory {
	return b.Factory()
}

// RegisterBackendLifecycle closes the gRPC connection on shutdown.
func RegisterBackendLifecycle(lc fx.Lifecycle, b *Backend) {
	lc.Append(fx.StopHook(b.Close))
}
