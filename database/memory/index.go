// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblPublishers = "publishers"
)

const (
	idxPublisherID   = "id"
	idxPublisherRoom = "room"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblPublishers: {
			Name: tblPublishers,
			Indexes: map[string]*memdb.IndexSchema{
				idxPublisherID: {
					Name:    idxPublisherID,
					Unique:  true,
					Indexer: &memdb.UintFieldIndex{Field: "ID"},
				},
				idxPublisherRoom: {
					Name:    idxPublisherRoom,
					Unique:  false,
					Indexer: &memdb.UintFieldIndex{Field: "RoomID"},
				},
			},
		},
	},
}
