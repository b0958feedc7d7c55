package conduit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientBuilder(t *testing.T) {
	logger := zap.NewNop()

	t.Run("successful build with all parameters", func(t *testing.T) {
		monitor := &mockMonitor{}
		client, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithToken("tok-123").
			WithLogger(logger).
			WithDialTimeout(10 * time.Second).
			WithHeartbeatInterval(15 * time.Second).
			WithHeartbeatTimeout(5 * time.Second).
			WithInitialDelay(2 * time.Second).
			WithMaxDelay(20 * time.Second).
			WithBackoffFactor(3.0).
			WithMaxReconnectAttempts(5).
			WithQueueCapacity(50).
			WithMonitor(monitor).
			Build()

		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Equal(t, "ws://localhost:8080/ws", client.url)
		assert.Equal(t, "tok-123", client.token)
		assert.Equal(t, logger, client.logger)
		assert.Equal(t, 10*time.Second, client.dialTimeout)
		assert.Equal(t, 15*time.Second, client.heartbeatInterval)
		assert.Equal(t, 5*time.Second, client.heartbeatTimeout)
		assert.Equal(t, 2*time.Second, client.initialDelay)
		assert.Equal(t, 20*time.Second, client.maxDelay)
		assert.Equal(t, 3.0, client.backoffFactor)
		assert.Equal(t, 5, client.maxReconnects)
		assert.Equal(t, monitor, client.monitor)
		assert.Equal(t, StateDisconnected, client.State())
	})

	t.Run("fluent interface returns same builder", func(t *testing.T) {
		builder := NewClient()
		assert.Same(t, builder, builder.WithURL("ws://localhost:8080/ws"))
		assert.Same(t, builder, builder.WithToken("tok"))
		assert.Same(t, builder, builder.WithTokenProvider(func(ctx context.Context) (string, error) {
			return "dynamic-tok", nil
		}))
		assert.Same(t, builder, builder.WithLogger(logger))
		assert.Same(t, builder, builder.WithDialTimeout(5*time.Second))
		assert.Same(t, builder, builder.WithHeartbeatInterval(10*time.Second))
		assert.Same(t, builder, builder.WithHeartbeatTimeout(3*time.Second))
		assert.Same(t, builder, builder.WithInitialDelay(time.Second))
		assert.Same(t, builder, builder.WithMaxDelay(time.Minute))
		assert.Same(t, builder, builder.WithBackoffFactor(2.5))
		assert.Same(t, builder, builder.WithMaxReconnectAttempts(3))
		assert.Same(t, builder, builder.WithAutoReconnect(false))
		assert.Same(t, builder, builder.WithQueueCapacity(10))
		assert.Same(t, builder, builder.WithWriteChannelSize(200))
		assert.Same(t, builder, builder.WithReadLimit(64*1024))
		assert.Same(t, builder, builder.WithMonitor(&mockMonitor{}))
	})

	t.Run("default values", func(t *testing.T) {
		builder := NewClient()
		assert.Equal(t, 30*time.Second, builder.dialTimeout)
		assert.Equal(t, 30*time.Second, builder.heartbeatInterval)
		assert.Equal(t, 10*time.Second, builder.heartbeatTimeout)
		assert.Equal(t, 1*time.Second, builder.initialDelay)
		assert.Equal(t, 30*time.Second, builder.maxDelay)
		assert.Equal(t, 2.0, builder.backoffFactor)
		assert.Equal(t, 10, builder.maxReconnects)
		assert.True(t, builder.autoReconnect)
		assert.Equal(t, 100, builder.queueCapacity)
		assert.Equal(t, 100, builder.writeChannelSize)
		assert.Equal(t, int64(32*1024), builder.readLimit)
	})

	t.Run("build fails with missing URL", func(t *testing.T) {
		_, err := NewClient().
			WithLogger(logger).
			Build()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "URL is required")
	})

	t.Run("build fails with unsupported scheme", func(t *testing.T) {
		_, err := NewClient().
			WithURL("ftp://localhost:8080/ws").
			Build()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported URL scheme")
	})

	t.Run("build accepts ws, wss, http and https schemes", func(t *testing.T) {
		for _, url := range []string{
			"ws://localhost:8080/ws",
			"wss://gateway.example.com/ws",
			"http://localhost:8080/ws",
			"https://gateway.example.com/ws",
		} {
			client, err := NewClient().WithURL(url).Build()
			assert.NoError(t, err, "url %s", url)
			assert.NotNil(t, client)
		}
	})

	t.Run("build succeeds with default logger", func(t *testing.T) {
		client, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			Build()

		assert.NoError(t, err)
		assert.NotNil(t, client)
		assert.NotNil(t, client.logger) // Should have default nop logger
	})

	t.Run("nil logger is ignored", func(t *testing.T) {
		builder := NewClient().WithLogger(logger).WithLogger(nil)
		assert.Equal(t, logger, builder.logger) // Should keep the earlier logger
	})

	t.Run("zero timeout is ignored", func(t *testing.T) {
		builder := NewClient().WithDialTimeout(0)
		assert.Equal(t, 30*time.Second, builder.dialTimeout) // Should keep default
	})

	t.Run("negative timeout is ignored", func(t *testing.T) {
		builder := NewClient().WithDialTimeout(-5 * time.Second)
		assert.Equal(t, 30*time.Second, builder.dialTimeout) // Should keep default
	})

	t.Run("zero heartbeat settings are ignored", func(t *testing.T) {
		builder := NewClient().
			WithHeartbeatInterval(0).
			WithHeartbeatTimeout(0)
		assert.Equal(t, 30*time.Second, builder.heartbeatInterval) // Should keep default
		assert.Equal(t, 10*time.Second, builder.heartbeatTimeout)  // Should keep default
	})

	t.Run("backoff factor below one is ignored", func(t *testing.T) {
		builder := NewClient().WithBackoffFactor(0.5)
		assert.Equal(t, 2.0, builder.backoffFactor) // Should keep default
	})

	t.Run("backoff factor of exactly one is accepted", func(t *testing.T) {
		builder := NewClient().WithBackoffFactor(1.0)
		assert.Equal(t, 1.0, builder.backoffFactor)
	})

	t.Run("negative max reconnect attempts is ignored", func(t *testing.T) {
		builder := NewClient().WithMaxReconnectAttempts(-1)
		assert.Equal(t, 10, builder.maxReconnects) // Should keep default
	})

	t.Run("zero max reconnect attempts disables reconnection", func(t *testing.T) {
		builder := NewClient().WithMaxReconnectAttempts(0)
		assert.Equal(t, 0, builder.maxReconnects)
	})

	t.Run("zero queue capacity is ignored", func(t *testing.T) {
		builder := NewClient().WithQueueCapacity(0)
		assert.Equal(t, 100, builder.queueCapacity) // Should keep default
	})

	t.Run("zero write channel size is ignored", func(t *testing.T) {
		builder := NewClient().WithWriteChannelSize(0)
		assert.Equal(t, 100, builder.writeChannelSize) // Should keep default
	})

	t.Run("nil token provider is ignored", func(t *testing.T) {
		builder := NewClient().WithTokenProvider(nil)
		assert.Nil(t, builder.tokenProvider)
	})

	t.Run("nil monitor is ignored", func(t *testing.T) {
		builder := NewClient().WithMonitor(nil)
		assert.Nil(t, builder.monitor)
	})

	t.Run("token provider configuration", func(t *testing.T) {
		provider := func(ctx context.Context) (string, error) {
			return "tok-from-provider", nil
		}

		client, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithTokenProvider(provider).
			Build()

		require.NoError(t, err)
		require.NotNil(t, client.tokenProvider)

		token, err := client.tokenProvider(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "tok-from-provider", token)
	})

	t.Run("built client starts with empty queue and no rooms", func(t *testing.T) {
		client, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			Build()

		require.NoError(t, err)
		assert.Equal(t, 0, client.QueueLen())
		assert.Empty(t, client.Rooms())
		assert.Equal(t, "", client.SessionID())
	})
}
