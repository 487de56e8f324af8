//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/config"
)

// InitializeApp builds the application graph for cfg. sink may be nil.
func InitializeApp(ctx context.Context, cfg *config.Config, sink app.ProgressSink) (*app.App, func(), error) {
	wire.Build(AppSet)
	return &app.App{}, nil, nil
}
