package collections

import (
	"fmt"
	"sort"
	"time"
)

// Status is the application-visible serving state of a collection.
type Status string

const (
	// StatusUnloaded means the collection exists but is not serving searches.
	StatusUnloaded Status = "unloaded"

	// StatusLoaded means the collection is loaded into serving memory.
	StatusLoaded Status = "loaded"
)

// TagAutoRegistered marks metadata synthesized for a collection discovered in
// the vector database without a registry record.
const TagAutoRegistered = "auto-registered"

// CollectionMetadata is the registry record for one collection.
//
// Name matches the vector database's collection identifier exactly and is
// immutable after creation. VectorDim is fixed at creation and never changes.
type CollectionMetadata struct {
	Name        string    `json:"name"`
	Tags        []string  `json:"tags,omitempty"`
	Description string    `json:"description,omitempty"`
	VectorDim   int       `json:"vector_dim"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the metadata invariants.
func (m CollectionMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if m.VectorDim <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive", ErrValidation)
	}
	switch m.Status {
	case StatusLoaded, StatusUnloaded:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, m.Status)
	}
	return nil
}

// HasTag reports whether the metadata carries the given tag.
func (m CollectionMetadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalizeTags deduplicates and sorts tags, giving set semantics a stable
// serialized form.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MetadataUpdate carries the mutable fields of a metadata update. Nil fields
// are left unchanged.
type MetadataUpdate struct {
	Tags        *[]string
	Description *string
	Status      *Status
}
