package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FXModule provides the service logger to the dependency injection
// container and flushes buffered entries on shutdown.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    fx.Supply(logger.Config{Level: "debug"}),
//	    // other modules...
//	)
var FXModule = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle syncs the logger when the application stops.
// Sync errors on stderr are expected on some platforms and ignored.
func RegisterLoggerLifecycle(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		_ = log.Sync()
	}))
}
