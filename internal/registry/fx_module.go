package registry

import (
	"go.uber.org/fx"
)

// FXModule provides the shard registry. It expects an engine.Factory
// in the container, supplied by whichever engine module is active.
var FXModule = fx.Module("registry",
	fx.Provide(New),
)
