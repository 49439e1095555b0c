package backend

import "slices"

// Capability represents a capability that a backend can provide.
type Capability string

const (
	CapabilityStorage  Capability = "storage"
	CapabilityMetadata Capability = "metadata"
)

// Capabilities describes what a backend supports.
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
	// MaxObjectSize limits a single item in bytes (0 = unlimited)
	MaxObjectSize int64 `json:"max_object_size"`
}

// Contains checks if a capability is supported.
func (c *Capabilities) Contains(cap Capability) bool {
	return slices.Contains(c.Capabilities, cap)
}

// Allows reports whether an item of size bytes fits into a single object.
func (c *Capabilities) Allows(size int64) bool {
	return c.MaxObjectSize <= 0 || size <= c.MaxObjectSize
}
