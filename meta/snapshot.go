package meta

import (
	"encoding/json"
	"time"
)

// Snapshot is an exportable copy of all tracked records.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	TotalSize   int64     `json:"total_size"`
	Records     []*Record `json:"records"`
}

// Snapshot captures the current records. It returns nil when nothing is tracked.
func (t *Tracker) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.records.Len() == 0 {
		return nil
	}

	snapshot := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		Records:     make([]*Record, 0, t.records.Len()),
	}
	t.records.Scan(func(_ string, r *Record) bool {
		snapshot.Records = append(snapshot.Records, r.clone())
		snapshot.TotalSize += r.Size
		return true
	})
	snapshot.Count = len(snapshot.Records)

	return snapshot
}

func (s *Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func (s *Snapshot) Unmarshal(data []byte) error {
	return json.Unmarshal(data, s)
}
