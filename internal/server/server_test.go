package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/config"
)

func TestNewServer_Timeouts(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.ServerConfig
		wantWrite    time.Duration
		wantShutdown time.Duration
	}{
		{
			name:         "defaults",
			cfg:          config.ServerConfig{Port: "8080"},
			wantWrite:    2 * time.Minute,
			wantShutdown: 20 * time.Second,
		},
		{
			name:         "configured",
			cfg:          config.ServerConfig{Port: "9090", WriteTimeout: 5 * time.Minute, ShutdownTimeout: time.Minute},
			wantWrite:    5 * time.Minute,
			wantShutdown: time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&config.Config{Server: tt.cfg}, http.NewServeMux(), discard)
			assert.Equal(t, ":"+tt.cfg.Port, s.Addr())
			assert.Equal(t, tt.wantWrite, s.server.WriteTimeout)
			assert.Equal(t, tt.wantShutdown, s.shutdownTimeout)
		})
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(&config.Config{Server: config.ServerConfig{Port: "0"}}, http.NewServeMux(), discard)
	require.NoError(t, s.Stop(context.Background()))
}
