package memory

import (
	"go.uber.org/fx"

	"github.com/cbir-io/retrieval/internal/engine"
)

// FXModule provides the in-memory backend and its shard factory. The
// backend's async workers are stopped when the application shuts down.
var FXModule = fx.Module("engine-memory",
	fx.Provide(
		NewBackend,
		ProvideFactory,
	),
	fx.Invoke(RegisterBackendLifecycle),
)

// ProvideFactory exposes the backend's shard factory under the
// engine.Factory type expected by the registry.
func ProvideFactory(b *Backend) engine.Factory {
	return b.Factory()
}

// RegisterBackendLifecycle closes the backend on shutdown, draining
// every shard's async queue first.
func RegisterBackendLifecycle(lc fx.Lifecycle, b *Backend) {
	lc.Append(fx.StopHook(b.Close))
}
