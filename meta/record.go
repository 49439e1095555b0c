package meta

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/secstore/backend"
)

// Record is the shadow entry the tracker keeps for every stored item.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum"`
	ModifyTime time.Time `json:"modify_time"`
}

// Checksum returns the integrity token stored for content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func newRecord(path string, content []byte) *Record {
	return &Record{
		ID:         genRecordID(),
		Path:       path,
		Size:       int64(len(content)),
		Checksum:   Checksum(content),
		ModifyTime: time.Now(),
	}
}

// genRecordID prefers time ordered v7 identifiers and falls back to v4.
func genRecordID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}

	return id
}

// Matches reports whether the record describes content.
func (r *Record) Matches(content []byte) bool {
	return r.Size == int64(len(content)) && r.Checksum == Checksum(content)
}

func (r *Record) clone() *Record {
	clone := *r
	return &clone
}

func (r *Record) toBackend() *backend.MetaRecord {
	return &backend.MetaRecord{
		ID:         r.ID.String(),
		Path:       r.Path,
		Size:       r.Size,
		Checksum:   r.Checksum,
		ModifyTime: r.ModifyTime.UnixNano(),
	}
}

func recordFromBackend(mr *backend.MetaRecord) (*Record, error) {
	id, err := uuid.Parse(mr.ID)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:         id,
		Path:       mr.Path,
		Size:       mr.Size,
		Checksum:   mr.Checksum,
		ModifyTime: time.Unix(0, mr.ModifyTime),
	}, nil
}
