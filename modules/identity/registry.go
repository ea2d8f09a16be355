package identity

import (
	"math/rand/v2"

	domain "github.com/example/codecollab/domain/room"
)

// ColorPicker chooses a color for a newly registered participant.
type ColorPicker func() domain.Color

// RandomColor picks uniformly from the palette.
func RandomColor() domain.Color {
	return domain.Palette[rand.IntN(len(domain.Palette))]
}

// Registry maps live connections to their participant identity.
// It is not safe for concurrent use; the relay hub is its only owner.
type Registry struct {
	participants map[string]domain.Participant
	pick         ColorPicker
}

// Option configures a Registry.
type Option func(*Registry)

// WithColorPicker overrides the random color choice.
func WithColorPicker(pick ColorPicker) Option {
	return func(r *Registry) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		participants: make(map[string]domain.Participant),
		pick:         RandomColor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register assigns a color to the connection and marks it online.
// Registering the same connection again replaces the previous entry.
func (r *Registry) Register(socketID, username string) domain.Participant {
	p := domain.Participant{
		SocketID: socketID,
		Username: username,
		Color:    r.pick(),
		IsOnline: true,
	}
	r.participants[socketID] = p
	return p
}

// Lookup returns the participant for a connection.
func (r *Registry) Lookup(socketID string) (domain.Participant, bool) {
	p, ok := r.participants[socketID]
	return p, ok
}

// Remove forgets a connection. Removing an unknown id is a no-op.
func (r *Registry) Remove(socketID string) {
	delete(r.participants, socketID)
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	return len(r.participants)
}
