// Package memory provides an in-memory database implementation.
package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"roomcast/database"
	"roomcast/types/message"
)

// DB is a memory-backed database.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed database.
func New() *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &DB{
		db: db,
	}
}

// CreatePublisherInfo registers a publisher that joined the room.
func (d *DB) CreatePublisherInfo(roomID uint64, publisher message.Publisher) (*database.PublisherInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblPublishers, idxPublisherID, publisher.ID)
	if err != nil {
		return nil, fmt.Errorf("find publisher by id: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%d: %w", publisher.ID, database.ErrPublisherAlreadyExists)
	}

	now := time.Now()
	info := &database.PublisherInfo{
		ID:          publisher.ID,
		RoomID:      roomID,
		Display:     publisher.Display,
		Talking:     publisher.Talking,
		Streams:     append([]message.PublisherStream(nil), publisher.Streams...),
		JoinedAt:    now,
		LastUpdated: now,
	}
	if err := txn.Insert(tblPublishers, info); err != nil {
		return nil, fmt.Errorf("insert publisher: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindPublisherInfoByID finds a publisher by its ID.
func (d *DB) FindPublisherInfoByID(id uint64) (*database.PublisherInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblPublishers, idxPublisherID, id)
	if err != nil {
		return nil, fmt.Errorf("find publisher by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%d: %w", id, database.ErrPublisherNotFound)
	}
	return raw.(*database.PublisherInfo).DeepCopy(), nil
}

// FindPublisherInfoByRoom returns the publishers of a room.
func (d *DB) FindPublisherInfoByRoom(roomID uint64) ([]*database.PublisherInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	iter, err := txn.Get(tblPublishers, idxPublisherRoom, roomID)
	if err != nil {
		return nil, fmt.Errorf("find publishers by room: %w", err)
	}
	return collect(iter), nil
}

// FindAllPublisherInfo returns every publisher.
func (d *DB) FindAllPublisherInfo() ([]*database.PublisherInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	iter, err := txn.Get(tblPublishers, idxPublisherID)
	if err != nil {
		return nil, fmt.Errorf("find all publishers: %w", err)
	}
	return collect(iter), nil
}

// UpdatePublisherTalking updates the talking flag of a publisher.
func (d *DB) UpdatePublisherTalking(id uint64, talking bool) (*database.PublisherInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblPublishers, idxPublisherID, id)
	if err != nil {
		return nil, fmt.Errorf("find publisher by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%d: %w", id, database.ErrPublisherNotFound)
	}

	info := raw.(*database.PublisherInfo).DeepCopy()
	info.UpdateTalking(talking)
	if err := txn.Insert(tblPublishers, info); err != nil {
		return nil, fmt.Errorf("update publisher: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// DeletePublisherInfoByID removes a publisher.
func (d *DB) DeletePublisherInfoByID(id uint64) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblPublishers, idxPublisherID, id)
	if err != nil {
		return fmt.Errorf("find publisher by id: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%d: %w", id, database.ErrPublisherNotFound)
	}
	if err := txn.Delete(tblPublishers, raw); err != nil {
		return fmt.Errorf("delete publisher: %w", err)
	}
	txn.Commit()
	return nil
}

func collect(iter memdb.ResultIterator) []*database.PublisherInfo {
	var infos []*database.PublisherInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.PublisherInfo).DeepCopy())
	}
	return infos
}
