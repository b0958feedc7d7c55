package conduit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit/o11y"
)

// TokenProvider supplies an authentication token for the connection
// handshake. It is consulted when connecting without an explicit token, and
// again before every automatic reconnection attempt so refreshed credentials
// are picked up.
type TokenProvider func(ctx context.Context) (string, error)

const (
	defaultDialTimeout          = 30 * time.Second
	defaultHeartbeatInterval    = 30 * time.Second
	defaultHeartbeatTimeout     = 10 * time.Second
	defaultInitialDelay         = 1 * time.Second
	defaultMaxDelay             = 30 * time.Second
	defaultBackoffFactor        = 2.0
	defaultMaxReconnectAttempts = 10
	defaultQueueCapacity        = 100
	defaultWriteChannelSize     = 100
	defaultReadLimit            = 32 * 1024
)

// ClientBuilder constructs Clients with a fluent interface. Setters ignore
// invalid values, keeping the defaults instead.
type ClientBuilder struct {
	url               string
	token             string
	tokenProvider     TokenProvider
	logger            *zap.Logger
	dialTimeout       time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	initialDelay      time.Duration
	maxDelay          time.Duration
	backoffFactor     float64
	maxReconnects     int
	autoReconnect     bool
	queueCapacity     int
	writeChannelSize  int
	readLimit         int64
	monitor           ClientMonitor
	metricsProvider   o11y.MetricsProvider
	tracingProvider   o11y.TracingProvider
}

// NewClient creates a ClientBuilder with production defaults: 30s dial
// timeout, 30s heartbeat interval with a 10s acknowledgement deadline, and
// automatic reconnection backing off from 1s to 30s over at most 10
// attempts.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		dialTimeout:       defaultDialTimeout,
		heartbeatInterval: defaultHeartbeatInterval,
		heartbeatTimeout:  defaultHeartbeatTimeout,
		initialDelay:      defaultInitialDelay,
		maxDelay:          defaultMaxDelay,
		backoffFactor:     defaultBackoffFactor,
		maxReconnects:     defaultMaxReconnectAttempts,
		autoReconnect:     true,
		queueCapacity:     defaultQueueCapacity,
		writeChannelSize:  defaultWriteChannelSize,
		readLimit:         defaultReadLimit,
	}
}

// WithURL sets the gateway URL to connect to (ws:// or wss://).
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithToken sets a static authentication token for the handshake. The token
// is carried as the "token" query parameter of the connection URL.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	b.token = token
	return b
}

// WithTokenProvider sets a dynamic token source. The provider runs when
// connecting without an explicit token and before every automatic reconnect.
func (b *ClientBuilder) WithTokenProvider(provider TokenProvider) *ClientBuilder {
	if provider != nil {
		b.tokenProvider = provider
	}
	return b
}

// WithLogger sets the logger. A nil logger is ignored; without one the
// client logs nowhere.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout bounds how long each connection attempt may take.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithHeartbeatInterval sets how often heartbeats are sent while connected.
func (b *ClientBuilder) WithHeartbeatInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.heartbeatInterval = interval
	}
	return b
}

// WithHeartbeatTimeout sets how long to wait for a heartbeat
// acknowledgement before declaring the connection dead.
func (b *ClientBuilder) WithHeartbeatTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.heartbeatTimeout = timeout
	}
	return b
}

// WithInitialDelay sets the backoff delay before the first reconnection
// attempt.
func (b *ClientBuilder) WithInitialDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.initialDelay = delay
	}
	return b
}

// WithMaxDelay caps the backoff delay between reconnection attempts.
func (b *ClientBuilder) WithMaxDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.maxDelay = delay
	}
	return b
}

// WithBackoffFactor sets the multiplier applied to the delay after each
// failed reconnection attempt. Values below 1.0 are ignored.
func (b *ClientBuilder) WithBackoffFactor(factor float64) *ClientBuilder {
	if factor >= 1.0 {
		b.backoffFactor = factor
	}
	return b
}

// WithMaxReconnectAttempts sets how many reconnection attempts are made
// before the client gives up and parks in StateClosed. Zero disables
// reconnection; negative values are ignored.
func (b *ClientBuilder) WithMaxReconnectAttempts(attempts int) *ClientBuilder {
	if attempts >= 0 {
		b.maxReconnects = attempts
	}
	return b
}

// WithAutoReconnect enables or disables automatic reconnection. With it
// disabled, any connection loss parks the client in StateClosed.
func (b *ClientBuilder) WithAutoReconnect(enabled bool) *ClientBuilder {
	b.autoReconnect = enabled
	return b
}

// WithQueueCapacity bounds the outbound queue used while disconnected. When
// the queue is full the oldest message is evicted to admit the newest.
func (b *ClientBuilder) WithQueueCapacity(capacity int) *ClientBuilder {
	if capacity > 0 {
		b.queueCapacity = capacity
	}
	return b
}

// WithWriteChannelSize sets the buffer between senders and the connection
// writer goroutine.
func (b *ClientBuilder) WithWriteChannelSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithReadLimit bounds the size of a single inbound frame in bytes.
func (b *ClientBuilder) WithReadLimit(limit int64) *ClientBuilder {
	if limit > 0 {
		b.readLimit = limit
	}
	return b
}

// WithMonitor sets a ClientMonitor to receive lifecycle callbacks.
func (b *ClientBuilder) WithMonitor(monitor ClientMonitor) *ClientBuilder {
	if monitor != nil {
		b.monitor = monitor
	}
	return b
}

// WithMetricsProvider enables metrics collection.
func (b *ClientBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ClientBuilder {
	if provider != nil {
		b.metricsProvider = provider
	}
	return b
}

// WithTracingProvider enables a span around each connection attempt.
func (b *ClientBuilder) WithTracingProvider(provider o11y.TracingProvider) *ClientBuilder {
	if provider != nil {
		b.tracingProvider = provider
	}
	return b
}

// IsValid reports whether the builder can produce a Client.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return errors.New("URL is required")
	}

	u, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	return nil
}

// Build validates the configuration and creates the Client. The client
// starts in StateDisconnected; call Connect to establish the connection.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:               b.url,
		logger:            logger,
		dialTimeout:       b.dialTimeout,
		heartbeatInterval: b.heartbeatInterval,
		heartbeatTimeout:  b.heartbeatTimeout,
		initialDelay:      b.initialDelay,
		maxDelay:          b.maxDelay,
		backoffFactor:     b.backoffFactor,
		maxReconnects:     b.maxReconnects,
		autoReconnect:     b.autoReconnect,
		writeChannelSize:  b.writeChannelSize,
		readLimit:         b.readLimit,
		tokenProvider:     b.tokenProvider,
		monitor:           b.monitor,
		metrics:           newClientMetrics(b.metricsProvider),
		tracing:           b.tracingProvider,
		registry:          newListenerRegistry(logger),
		state:             StateDisconnected,
		token:             b.token,
		queue:             newSendQueue(b.queueCapacity),
		rooms:             newRoomSet(),
	}, nil
}
