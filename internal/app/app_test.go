package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/server"
)

type countingDispatcher struct {
	stops int
}

func (d *countingDispatcher) Dispatch(context.Context, *core.ReviewRequest) error { return nil }

func (d *countingDispatcher) Stop() { d.stops++ }

func newTestApp(t *testing.T, token string) (*App, *countingDispatcher) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0"},
		GitHub: config.GitHubConfig{Token: token},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := &countingDispatcher{}
	srv := server.NewServer(cfg, http.NewServeMux(), logger)
	return NewApp(cfg, logger, nil, nil, nil, nil, nil, d, srv), d
}

func TestApp_Publisher(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		a, _ := newTestApp(t, "")
		_, err := a.Publisher(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GITHUB_TOKEN")
	})

	t.Run("with token", func(t *testing.T) {
		a, _ := newTestApp(t, "ghp_test")
		p, err := a.Publisher(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, p)
	})
}

func TestApp_StopStopsDispatcher(t *testing.T) {
	a, d := newTestApp(t, "")

	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, 1, d.stops)

	a.StopDispatcher()
	assert.Equal(t, 2, d.stops)
}
