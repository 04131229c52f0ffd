package rest

import (
	"go.uber.org/fx"
)

// FXModule provides the HTTP server and binds it to the application
// lifecycle: the listener starts with the app and drains on shutdown.
var FXModule = fx.Module("rest",
	fx.Provide(NewServer),
	fx.Invoke(RegisterServerLifecycle),
)

// RegisterServerLifecycle starts and stops the HTTP listener with the
// application.
func RegisterServerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
