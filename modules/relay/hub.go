package relay

import (
	"context"
	"errors"
	"time"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/modules/identity"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 256

// ErrHubStopped is returned by calls made after the hub has shut down.
var ErrHubStopped = errors.New("relay hub stopped")

// Client is a connection as seen by the hub.
type Client struct {
	ID     string
	send   chan []byte
	closed bool // owned by the hub goroutine
}

// NewClient creates a client with an outbound queue of the given size.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:   id,
		send: make(chan []byte, buffer),
	}
}

// Send returns the queue of encoded frames for this client. It is closed
// when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

type inboundMessage struct {
	client *Client
	env    Envelope
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Connections  int `json:"connections"`
	Participants int `json:"participants"`
	Rooms        int `json:"rooms"`
}

// Hub owns the relay state and runs every transition on a single goroutine.
type Hub struct {
	dispatcher *Dispatcher
	state      *State
	clients    map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	queries    chan func(*State)
	done       chan struct{}

	logger types.Logger
	now    func() time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithObserver receives membership transitions.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		h.state.Observer = o
	}
}

// WithClock overrides the time source used for chat timestamps.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		h.now = now
	}
}

// WithIdentityOptions configures the hub's identity registry.
func WithIdentityOptions(opts ...identity.Option) HubOption {
	return func(h *Hub) {
		observer := h.state.Observer
		h.state = NewState(opts...)
		h.state.Observer = observer
	}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger types.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		dispatcher: NewDispatcher(),
		state:      NewState(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage),
		queries:    make(chan func(*State)),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Relay hub shutting down", "connections", len(h.clients))
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.inbound:
			h.handleInbound(msg)
		case query := <-h.queries:
			query(h.state)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister runs the disconnect transition for a connection.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver queues an inbound event from a connection. Events from one
// connection are handled in the order they are delivered.
func (h *Hub) Deliver(client *Client, env Envelope) {
	select {
	case h.inbound <- inboundMessage{client: client, env: env}:
	case <-h.done:
	}
}

// Query runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) Query(ctx context.Context, fn func(st *State)) error {
	finished := make(chan struct{})
	wrapped := func(st *State) {
		defer close(finished)
		fn(st)
	}

	select {
	case h.queries <- wrapped:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports connection, participant and room counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := h.Query(ctx, func(st *State) {
		stats = Stats{
			Connections:  len(h.clients),
			Participants: st.Registry.Len(),
			Rooms:        st.Rooms.RoomCount(),
		}
	})
	return stats, err
}

// Roster returns the participants currently joined to a room.
func (h *Hub) Roster(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var clients []domain.Participant
	err := h.Query(ctx, func(st *State) {
		clients = roster(st, st.Rooms.MembersOf(roomID))
	})
	return clients, err
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client.ID] = client
	h.logger.Debug("Connection registered", "socketID", client.ID)
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	deliveries := h.run(client.ID, "disconnect", func(c Context) []Delivery {
		return h.dispatcher.Disconnect(c, h.state)
	})
	h.deliver(deliveries)

	delete(h.clients, client.ID)
	h.closeClient(client)
	h.logger.Debug("Connection unregistered", "socketID", client.ID)
}

func (h *Hub) handleInbound(msg inboundMessage) {
	if _, ok := h.clients[msg.client.ID]; !ok {
		return
	}

	known := true
	deliveries := h.run(msg.client.ID, msg.env.Event, func(c Context) []Delivery {
		var out []Delivery
		out, known = h.dispatcher.Handle(c, h.state, msg.env)
		return out
	})
	if !known {
		h.logger.Warn("Ignoring unknown event", "event", msg.env.Event, "socketID", msg.client.ID)
		return
	}
	h.deliver(deliveries)
}

// run executes one transition, containing any panic to that event.
func (h *Hub) run(socketID, event string, fn func(c Context) []Delivery) (out []Delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Relay handler panicked", "event", event, "socketID", socketID, "panic", r)
			out = nil
		}
	}()
	return fn(Context{SocketID: socketID, Now: h.now()})
}

func (h *Hub) deliver(deliveries []Delivery) {
	encoded := make(map[*Outbound][]byte)
	for _, d := range deliveries {
		client, ok := h.clients[d.To]
		if !ok || client.closed {
			continue
		}

		data, ok := encoded[d.Msg]
		if !ok {
			var err error
			data, err = d.Msg.Encode()
			if err != nil {
				h.logger.Error("Failed to encode outbound event", "event", d.Msg.Event, "error", err)
				continue
			}
			encoded[d.Msg] = data
		}

		select {
		case client.send <- data:
		default:
			h.logger.Warn("Send buffer full, dropping connection", "socketID", client.ID)
			h.closeClient(client)
		}
	}
}

func (h *Hub) closeClient(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
}

func (h *Hub) closeAllClients() {
	for _, client := range h.clients {
		h.closeClient(client)
	}
	h.clients = make(map[string]*Client)
}
