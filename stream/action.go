package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ActionType identifies a recorded action on the wire.
type ActionType uint8

// Recorded action types.
const (
	SpeechPublishedType ActionType = iota + 1
	SpeechEndedType
)

// ErrUnknownAction is returned when decoding an unknown action type.
var ErrUnknownAction = errors.New("unknown action")

// Action is a recorded stream action forwarded to the audience.
type Action interface {
	Type() ActionType
}

// SpeechPublished announces that a participant's speech is on air.
type SpeechPublished struct {
	PublisherID uint64    `cbor:"publisher_id"`
	DisplayName string    `cbor:"display_name"`
	Time        time.Time `cbor:"time"`
}

// SpeechEnded announces that a participant's speech stopped.
type SpeechEnded struct {
	PublisherID uint64    `cbor:"publisher_id"`
	Time        time.Time `cbor:"time"`
}

// Type returns SpeechPublishedType.
func (SpeechPublished) Type() ActionType { return SpeechPublishedType }

// Type returns SpeechEndedType.
func (SpeechEnded) Type() ActionType { return SpeechEndedType }

// Encode serializes an action as one type byte followed by its CBOR payload.
func Encode(a Action) ([]byte, error) {
	payload, err := cbor.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action %d: %w", a.Type(), err)
	}
	return append([]byte{byte(a.Type())}, payload...), nil
}

// Decode parses an encoded action.
func Decode(data []byte) (Action, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data: %w", ErrUnknownAction)
	}

	switch ActionType(data[0]) {
	case SpeechPublishedType:
		var a SpeechPublished
		if err := cbor.Unmarshal(data[1:], &a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		return a, nil
	case SpeechEndedType:
		var a SpeechEnded
		if err := cbor.Unmarshal(data[1:], &a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("type %d: %w", data[0], ErrUnknownAction)
}
