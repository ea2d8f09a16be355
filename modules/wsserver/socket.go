package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/codecollab/modules/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	defaultMessagesPerSecond = 100
	defaultMessageBurst      = 200

	rateLimitWarnEvery     = 100
	rateLimitMaxViolations = 1000
)

var (
	// ErrRateLimited ends a connection that keeps exceeding its message rate.
	ErrRateLimited = errors.New("connection exceeded message rate")

	errSendClosed = errors.New("send queue closed by relay")
	errPeerClosed = errors.New("peer closed connection")
)

// SocketConfig holds per-connection limits.
type SocketConfig struct {
	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int
}

// SocketServer pumps frames between WebSocket connections and the relay hub.
type SocketServer struct {
	hub    *relay.Hub
	cfg    SocketConfig
	newID  func() string
	logger types.Logger
}

// NewSocketServer creates a socket server feeding hub.
func NewSocketServer(hub *relay.Hub, cfg SocketConfig, newID func() string, logger types.Logger) *SocketServer {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = defaultMessagesPerSecond
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = defaultMessageBurst
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = relay.DefaultSendBuffer
	}
	return &SocketServer{
		hub:    hub,
		cfg:    cfg,
		newID:  newID,
		logger: logger,
	}
}

// Serve runs one connection until either side ends it, then runs the
// disconnect transition.
func (s *SocketServer) Serve(conn *websocket.Conn) {
	client := relay.NewClient(s.newID(), s.cfg.SendBuffer)
	log := s.logger.With("socketID", client.ID)

	s.hub.Register(client)
	log.Info("WebSocket connected", "remote", conn.RemoteAddr().String())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return s.readPump(conn, client, log)
	})
	g.Go(func() error {
		return s.writePump(ctx, conn, client)
	})
	err := g.Wait()

	s.hub.Unregister(client)

	switch {
	case errors.Is(err, errPeerClosed):
		log.Info("WebSocket disconnected")
	case errors.Is(err, ErrRateLimited):
		log.Warn("WebSocket closed for excessive rate limit violations")
	case errors.Is(err, errSendClosed):
		log.Warn("WebSocket closed by relay")
	default:
		log.Info("WebSocket disconnected", "reason", err)
	}
}

// readPump decodes inbound frames and hands them to the hub in order. It
// always returns a non-nil error so the write side is cancelled.
func (s *SocketServer) readPump(conn *websocket.Conn, client *relay.Client, log types.Logger) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	violations := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", "error", err)
			}
			return errPeerClosed
		}

		if !limiter.Allow() {
			violations++
			if violations%rateLimitWarnEvery == 1 {
				log.Warn("Rate limit exceeded", "violations", violations)
			}
			if violations > rateLimitMaxViolations {
				return ErrRateLimited
			}
			continue
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			log.Warn("Dropping malformed frame", "size", len(data))
			continue
		}

		s.hub.Deliver(client, env)
	}
}

// writePump owns every write on the connection.
func (s *SocketServer) writePump(ctx context.Context, conn *websocket.Conn, client *relay.Client) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return nil

		case message, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return errSendClosed
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return err
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
