package retrieval

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/registry"
)

// FXModule provides the retrieval gateway.
//
// Dependencies required by this module:
//   - a *registry.Registry
//   - a retrieval.Archive (optional; raw uploads are not kept without one)
//   - a *zap.Logger
var FXModule = fx.Module("retrieval",
	fx.Provide(NewServiceWithDI),
)

// ServiceParams groups the dependencies needed to build the gateway.
type ServiceParams struct {
	fx.In

	Registry *registry.Registry
	Archive  Archive `optional:"true"`
	Logger   *zap.Logger
}

// NewServiceWithDI creates the gateway from injected dependencies.
func NewServiceWithDI(params ServiceParams) *Service {
	return NewService(params.Registry, params.Archive, params.Logger)
}

// WorkerFXModule runs the background index worker. It is only included
// when a message broker is configured; the worker consumes queued jobs
// and replays them through the gateway's synchronous path.
var WorkerFXModule = fx.Module("index-worker",
	fx.Provide(NewIndexWorker),
	fx.Invoke(RegisterWorkerLifecycle),
)

// RegisterWorkerLifecycle starts consuming on application start and
// drains in-flight jobs on stop.
func RegisterWorkerLifecycle(lc fx.Lifecycle, w *IndexWorker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return w.Stop()
		},
	})
}
