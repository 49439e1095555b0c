package meta

import (
	"context"
	"slices"
	"strings"

	"github.com/mwantia/secstore/backend"
)

type DriftKind string

const (
	// DriftMissing marks a record whose item no longer exists.
	DriftMissing DriftKind = "missing"
	// DriftUntracked marks an item without a record.
	DriftUntracked DriftKind = "untracked"
	DriftSize      DriftKind = "size"
	DriftChecksum  DriftKind = "checksum"
)

// Drift describes a single difference between the records and the storage.
type Drift struct {
	Path     string    `json:"path"`
	Kind     DriftKind `json:"kind"`
	Expected *Record   `json:"expected,omitempty"`
	Actual   int64     `json:"actual_size"`
}

// Verify compares the records at or below path with the stored items
// without modifying either. Drifts are returned in path order.
func (t *Tracker) Verify(ctx context.Context, storage backend.StorageBackend, path string) ([]Drift, error) {
	records := t.Records(path)
	expected := make(map[string]*Record, len(records))
	for _, r := range records {
		expected[r.Path] = r
	}

	var drifts []Drift
	seen := make(map[string]struct{}, len(records))
	err := Walk(ctx, storage, path, func(itemPath string, content []byte) error {
		seen[itemPath] = struct{}{}
		size := int64(len(content))

		record, ok := expected[itemPath]
		switch {
		case !ok:
			drifts = append(drifts, Drift{Path: itemPath, Kind: DriftUntracked, Actual: size})
		case record.Size != size:
			drifts = append(drifts, Drift{Path: itemPath, Kind: DriftSize, Expected: record, Actual: size})
		case record.Checksum != Checksum(content):
			drifts = append(drifts, Drift{Path: itemPath, Kind: DriftChecksum, Expected: record, Actual: size})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		if _, ok := seen[r.Path]; !ok {
			drifts = append(drifts, Drift{Path: r.Path, Kind: DriftMissing, Expected: r})
		}
	}

	slices.SortStableFunc(drifts, func(a, b Drift) int {
		return strings.Compare(a.Path, b.Path)
	})
	return drifts, nil
}
