package archive

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cbir-io/retrieval/internal/retrieval"
)

// FXModule provides the MinIO-backed archive under the gateway's
// Archive interface. The bucket is created on startup if missing.
var FXModule = fx.Module("archive",
	fx.Provide(
		NewStoreWithDI,
		ProvideArchive,
	),
)

// StoreParams groups the dependencies needed to open the store.
type StoreParams struct {
	fx.In

	Config Config
	Logger *zap.Logger
}

// NewStoreWithDI creates the store from injected dependencies.
func NewStoreWithDI(params StoreParams) (*Store, error) {
	return NewStore(context.Background(), params.Config, params.Logger)
}

// ProvideArchive exposes the store under the retrieval.Archive
// interface.
func ProvideArchive(s *Store) retrieval.Archive { return s }
