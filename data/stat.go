package data

import "time"

// ItemStat describes a stored item without its content.
type ItemStat struct {
	// Normalized path of the item
	Path string `json:"path"`

	// Size in bytes
	Size int64 `json:"size"`

	ModifyTime time.Time `json:"modify_time,omitzero"`
}

// SpaceStat reports the capacity of a storage backend in bytes.
type SpaceStat struct {
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
}

// Used returns the number of bytes currently in use.
func (s *SpaceStat) Used() int64 {
	return s.Total - s.Free
}

// NewSpaceStat builds a SpaceStat from a quota and the bytes in use.
// Free space never drops below zero.
func NewSpaceStat(quota, used int64) *SpaceStat {
	return &SpaceStat{
		Total: quota,
		Free:  max(quota-used, 0),
	}
}
