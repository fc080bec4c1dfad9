//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"marlin/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(
		NewAppBuilder,
		provideAppFromBuilder,
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
	)
	return nil, nil
}
