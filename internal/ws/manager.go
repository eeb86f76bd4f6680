package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"arbflow/internal/metrics"
	"arbflow/logger"
)

const (
	defaultHealthCheckInterval = 30 * time.Second
	writeWait                  = time.Second
)

// ManagerConfig configures a Manager. URL and Parser are required; zero
// values elsewhere get production defaults.
type ManagerConfig struct {
	URL    string
	Parser MessageParser
	// Strategy defaults to ExponentialBackoff.
	Strategy *ReconnectionStrategy
	// HealthCheckInterval between proactive pings, default 30s.
	HealthCheckInterval time.Duration
	// Buffer size per broadcast subscriber, default 100.
	Buffer int
	// OnConnect runs after each successful dial, before the read loop.
	// Exchanges with message-based subscription send their subscribe
	// request here. An error counts as a connection failure.
	OnConnect func(conn *websocket.Conn) error
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Manager maintains a single logical subscription to one exchange endpoint,
// transparently surviving network failures. Inbound text frames are parsed
// and broadcast to subscribers; parse failures are per-message noise and
// never terminate the connection. The manager exclusively owns its socket:
// on reconnect the old connection is discarded and a fresh one dialed.
type Manager struct {
	url                 string
	parser              MessageParser
	strategy            *ReconnectionStrategy
	hub                 *Hub
	healthCheckInterval time.Duration
	onConnect           func(conn *websocket.Conn) error
	dialer              *websocket.Dialer
	log                 *logger.Entry
}

// NewManager builds a manager. Run must be called to start it.
func NewManager(cfg ManagerConfig) *Manager {
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = ExponentialBackoff()
	}
	interval := cfg.HealthCheckInterval
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Manager{
		url:                 cfg.URL,
		parser:              cfg.Parser,
		strategy:            strategy,
		hub:                 NewHub(cfg.Buffer),
		healthCheckInterval: interval,
		onConnect:           cfg.OnConnect,
		dialer:              dialer,
		log:                 logger.GetLogger().WithComponent("ws_manager").WithFields(logger.Fields{"url": cfg.URL}),
	}
}

// Subscribe registers a consumer for parsed prices. Subscribers that fall
// behind the buffer lose their oldest messages rather than slowing the feed.
func (m *Manager) Subscribe() *Subscription {
	return m.hub.Subscribe()
}

// Run connects and processes messages until the server closes the stream
// normally (nil return), the context is cancelled (ctx error), or the
// reconnection budget is exhausted (last connection error). Retryable
// failures sleep for the strategy's next delay before redialing.
func (m *Manager) Run(ctx context.Context) error {
	defer m.hub.Close()

	for {
		err := m.connectAndRead(ctx)
		if err == nil {
			m.log.Info("connection closed normally")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !m.strategy.ShouldRetry() {
			m.log.WithError(err).Error("reconnection attempts exhausted")
			return fmt.Errorf("reconnection attempts exhausted: %w", err)
		}

		delay := m.strategy.NextDelay()
		metrics.IncReconnect()
		m.log.WithError(err).WithFields(logger.Fields{
			"attempt": m.strategy.Attempt(),
			"delay":   delay.String(),
		}).Warn("connection failed, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) connectAndRead(ctx context.Context) error {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.url, err)
	}
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if m.onConnect != nil {
		if err := m.onConnect(conn); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	// Healthy connection: later failures restart backoff from the minimum.
	m.strategy.Reset()
	m.log.Info("connected")

	// A failed pong reply means the write path is broken; surfacing the
	// error from the handler fails the pending read.
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pingErr := make(chan error, 1)
	go m.healthCheckLoop(connCtx, conn, pingErr)

	// Unblock the read loop when the owner cancels.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case perr := <-pingErr:
				return fmt.Errorf("health ping: %w", perr)
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if msgType != websocket.TextMessage {
			continue
		}

		price, perr := m.parser.Parse(string(data))
		if perr != nil {
			metrics.IncParseError()
			m.logParseFailure(perr)
			continue
		}
		metrics.IncMessageParsed()
		m.hub.Publish(price)
	}
}

func (m *Manager) healthCheckLoop(ctx context.Context, conn *websocket.Conn, pingErr chan<- error) {
	ticker := time.NewTicker(m.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				select {
				case pingErr <- err:
				default:
				}
				// Broken write path is fatal for this connection.
				conn.Close()
				return
			}
		}
	}
}

// logParseFailure keeps per-message noise proportional: subscription acks
// are routine, exchange error notices are not.
func (m *Manager) logParseFailure(err error) {
	var ack *SubscribeAckError
	if errors.As(err, &ack) {
		m.log.Debug("subscription confirmed by server")
		return
	}
	var exchErr *ExchangeError
	if errors.As(err, &exchErr) {
		m.log.WithError(err).Warn("exchange reported stream error")
		return
	}
	m.log.WithError(err).Warn("failed to parse message")
}
