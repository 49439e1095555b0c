package backend

import "context"

// MetaRecord is the persisted form of a tracker record.
type MetaRecord struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Checksum   string `json:"checksum"`
	ModifyTime int64  `json:"modify_time"`
}

// MetadataBackend persists tracker records next to the data they describe.
// It is optional; the tracker always keeps its records in memory.
type MetadataBackend interface {
	Backend
	// ReadAllMeta returns every persisted record.
	ReadAllMeta(ctx context.Context) ([]*MetaRecord, error)
	// ReplaceAllMeta atomically replaces all persisted records.
	ReplaceAllMeta(ctx context.Context, records []*MetaRecord) error
	// PutMeta creates or replaces a single record.
	PutMeta(ctx context.Context, record *MetaRecord) error
	// DeleteMetaTree removes the record at path and all records nested under it.
	DeleteMetaTree(ctx context.Context, path string) error
}
