// Package chunker splits raw document text into overlapping, size-bounded
// segments for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidConfig indicates unusable chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunk is a bounded contiguous span of a source document.
//
// Offsets are byte positions into the original text, so Text always equals
// the original slice [StartOffset:EndOffset). SequenceIndex is 0-based and
// contiguous within one run; TotalChunks is stamped once the whole document
// has been split.
type Chunk struct {
	ID            string
	Text          string
	StartOffset   int
	EndOffset     int
	SequenceIndex int
	TotalChunks   int
}

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the target maximum chunk length in bytes. Single parts
	// longer than this are emitted whole.
	ChunkSize int `koanf:"chunk_size"`

	// Overlap is how many trailing bytes of each emitted chunk seed the next
	// one. Clamped to ChunkSize-1 to guarantee forward progress.
	Overlap int `koanf:"overlap"`

	// Separator is the part boundary, paragraph break by default.
	Separator string `koanf:"separator"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 100
	}
	if c.Separator == "" {
		c.Separator = "\n\n"
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// clampedOverlap bounds the overlap below the chunk size so that every
// emitted chunk advances through the text.
func (c Config) clampedOverlap() int {
	if c.Overlap >= c.ChunkSize {
		return c.ChunkSize - 1
	}
	return c.Overlap
}

// Split divides text into chunks at separator boundaries.
//
// Parts are greedily accumulated into a running buffer; when the next part
// would push the buffer past ChunkSize the buffer is emitted and the next
// buffer is seeded with the last Overlap bytes of it. A single part longer
// than ChunkSize is emitted whole, never split mid-part.
func Split(text string, cfg Config) ([]Chunk, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	sep := cfg.Separator
	overlap := cfg.clampedOverlap()
	parts := strings.Split(text, sep)

	var chunks []Chunk
	bufStart, bufEnd := -1, -1
	offset := 0

	for _, part := range parts {
		partStart := offset
		partEnd := partStart + len(part)
		offset = partEnd + len(sep)

		if bufStart < 0 {
			bufStart, bufEnd = partStart, partEnd
			continue
		}
		if (bufEnd-bufStart)+len(sep)+len(part) > cfg.ChunkSize {
			chunks = append(chunks, Chunk{
				Text:        text[bufStart:bufEnd],
				StartOffset: bufStart,
				EndOffset:   bufEnd,
			})
			seed := overlap
			if seed > bufEnd-bufStart {
				seed = bufEnd - bufStart
			}
			// The seed is the tail of the chunk just emitted; the original
			// text continues with the separator and this part, so the new
			// buffer stays a contiguous span of the source.
			bufStart = bufEnd - seed
			bufEnd = partEnd
			continue
		}
		bufEnd = partEnd
	}

	if bufStart >= 0 && bufEnd > bufStart {
		chunks = append(chunks, Chunk{
			Text:        text[bufStart:bufEnd],
			StartOffset: bufStart,
			EndOffset:   bufEnd,
		})
	}

	stamp(chunks)
	return chunks, nil
}

// SplitByCharCount ignores separators and slides a fixed window across the
// text. The window start strictly advances each iteration, so the split
// terminates for any chunkSize > overlap >= 0.
func SplitByCharCount(text string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size", ErrInvalidConfig)
	}
	if text == "" {
		return nil, nil
	}

	step := chunkSize - overlap
	var chunks []Chunk
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(text) {
			break
		}
	}

	stamp(chunks)
	return chunks, nil
}

// stamp assigns IDs and re-stamps sequence bookkeeping once the run is
// complete.
func stamp(chunks []Chunk) {
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].SequenceIndex = i
		chunks[i].TotalChunks = len(chunks)
	}
}
