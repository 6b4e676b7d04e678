package database

import (
	"time"

	"roomcast/types/message"
)

// PublisherInfo is a struct for remote publisher information.
type PublisherInfo struct {
	ID          uint64                    `json:"id"`
	RoomID      uint64                    `json:"room"`
	Display     string                    `json:"display"`
	Talking     bool                      `json:"talking"`
	Streams     []message.PublisherStream `json:"streams,omitempty"`
	JoinedAt    time.Time                 `json:"joined_at"`
	LastUpdated time.Time                 `json:"last_updated"`
}

// UpdateTalking updates the Talking field with the provided value.
func (p *PublisherInfo) UpdateTalking(talking bool) {
	p.Talking = talking
	p.LastUpdated = time.Now()
}

// DeepCopy creates a deep copy of the given PublisherInfo.
func (p *PublisherInfo) DeepCopy() *PublisherInfo {
	return &PublisherInfo{
		ID:          p.ID,
		RoomID:      p.RoomID,
		Display:     p.Display,
		Talking:     p.Talking,
		Streams:     append([]message.PublisherStream(nil), p.Streams...),
		JoinedAt:    p.JoinedAt,
		LastUpdated: p.LastUpdated,
	}
}
