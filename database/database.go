// Package database provides an interface for the registry of remote
// publishers seen in the room.
package database

import (
	"errors"

	"roomcast/types/message"
)

var (
	// ErrPublisherAlreadyExists is returned when the publisher already exists.
	ErrPublisherAlreadyExists = errors.New("publisher already exists")

	// ErrPublisherNotFound is returned when the publisher is not found.
	ErrPublisherNotFound = errors.New("publisher not found")
)

// Database is an interface for publisher registry operations.
type Database interface {
	CreatePublisherInfo(roomID uint64, publisher message.Publisher) (*PublisherInfo, error)
	FindPublisherInfoByID(id uint64) (*PublisherInfo, error)
	FindPublisherInfoByRoom(roomID uint64) ([]*PublisherInfo, error)
	FindAllPublisherInfo() ([]*PublisherInfo, error)
	UpdatePublisherTalking(id uint64, talking bool) (*PublisherInfo, error)
	DeletePublisherInfoByID(id uint64) error
}
