package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/montarelab/rev-ai/mocks"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		FailureThreshold:  0,
	}
}

func TestResilientGenerator_Call(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(m *mocks.MockGenerator)
		want      string
		expectErr bool
	}{
		{
			name: "success on first attempt",
			setup: func(m *mocks.MockGenerator) {
				m.EXPECT().Call(gomock.Any(), "p").Return("ok", nil)
			},
			want: "ok",
		},
		{
			name: "retries transient errors",
			setup: func(m *mocks.MockGenerator) {
				gomock.InOrder(
					m.EXPECT().Call(gomock.Any(), "p").Return("", errors.New("503 service unavailable")),
					m.EXPECT().Call(gomock.Any(), "p").Return("", errors.New("429 rate limit")),
					m.EXPECT().Call(gomock.Any(), "p").Return("ok", nil),
				)
			},
			want: "ok",
		},
		{
			name: "does not retry client errors",
			setup: func(m *mocks.MockGenerator) {
				m.EXPECT().Call(gomock.Any(), "p").Return("", errors.New("401 unauthorized")).Times(1)
			},
			expectErr: true,
		},
		{
			name: "gives up after max retries",
			setup: func(m *mocks.MockGenerator) {
				m.EXPECT().Call(gomock.Any(), "p").Return("", errors.New("connection refused")).Times(3)
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			inner := mocks.NewMockGenerator(ctrl)
			tt.setup(inner)

			g := NewResilientGenerator(inner, "test", fastRetryConfig(), nil, nil)
			got, err := g.Call(context.Background(), "p")
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResilientGenerator_CircuitOpens(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockGenerator(ctrl)
	inner.EXPECT().Call(gomock.Any(), gomock.Any()).Return("", errors.New("502 bad gateway")).Times(2)

	rc := fastRetryConfig()
	rc.MaxRetries = 0
	rc.FailureThreshold = 2
	rc.OpenTimeout = time.Hour
	g := NewResilientGenerator(inner, "test", rc, nil, nil)

	for range 2 {
		_, err := g.Call(context.Background(), "p")
		require.Error(t, err)
	}

	_, err := g.Call(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestResilientGenerator_CallerCancellationStopsRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockGenerator(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	inner.EXPECT().Call(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (string, error) {
		cancel()
		return "", errors.New("timeout")
	}).Times(1)

	g := NewResilientGenerator(inner, "test", fastRetryConfig(), nil, nil)
	_, err := g.Call(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("upstream overloaded"), true},
		{errors.New("400 bad request"), false},
		{errors.New("something odd"), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetriableError(tt.err))
		})
	}
}
