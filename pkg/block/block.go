// Package block defines the block primitive of the storage system: its
// identity, binary wire format, filename convention and content checksum.
//
// A Block is a plain value holder with no internal synchronization.
// Instances must not be mutated concurrently; callers that hand a block
// to another goroutine should pass a copy (Clone), not a shared pointer.
package block

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// BlockFilePrefix is the filename prefix shared by block and metadata files
	BlockFilePrefix = "blk_"
	// MetadataExtension is the filename extension of block metadata files
	MetadataExtension = ".meta"
	// NoChecksum is the text token for an absent checksum
	NoChecksum = "nochecksum"
	// ChecksumLength is the byte length of a block content checksum (SHA-256)
	ChecksumLength = 32
	// GrandfatherGenerationStamp marks blocks with no recorded generation
	// stamp, kept for compatibility with legacy storage layouts
	GrandfatherGenerationStamp int64 = 0
)

// Block identifies a unit of stored data. Two blocks are considered equal
// iff they have the same block ID; the generation stamp is a monotonically
// increasing per-block version counter assigned by an external authority
// and does not participate in equality.
type Block struct {
	id       int64
	numBytes int64
	genStamp int64
	checksum []byte
}

// NewBlock creates a block with the given identity, length and generation
// stamp, and no checksum.
func NewBlock(id, numBytes, genStamp int64) *Block {
	b := &Block{}
	b.Set(id, numBytes, genStamp, nil)
	return b
}

// NewBlockWithChecksum creates a block with all four fields populated.
// The checksum bytes are copied.
func NewBlockWithChecksum(id, numBytes, genStamp int64, checksum []byte) *Block {
	b := &Block{}
	b.Set(id, numBytes, genStamp, checksum)
	return b
}

// NewBlockWithID creates a block known only by its ID: zero length and
// the grandfather generation stamp.
func NewBlockWithID(id int64) *Block {
	return NewBlock(id, 0, GrandfatherGenerationStamp)
}

// NewBlockFromFile derives a block from the name of a block file. The ID is
// parsed from the filename, length and generation stamp are supplied by the
// caller, and the checksum is computed from the file contents on a
// best-effort basis (absent if the file cannot be read).
func NewBlockFromFile(path string, numBytes, genStamp int64) *Block {
	b := &Block{}
	b.Set(Filename2ID(baseName(path)), numBytes, genStamp, ComputeChecksum(path))
	return b
}

// Clone returns a copy of the block. The checksum buffer is not shared.
func (b *Block) Clone() *Block {
	c := &Block{}
	c.Set(b.id, b.numBytes, b.genStamp, b.checksum)
	return c
}

// Set updates all four fields at once. Every constructor routes through
// here. The checksum bytes are copied so the block never aliases a
// caller-owned buffer.
func (b *Block) Set(id, numBytes, genStamp int64, checksum []byte) {
	b.id = id
	b.numBytes = numBytes
	b.genStamp = genStamp
	b.checksum = cloneChecksum(checksum)
}

// ID returns the block ID.
func (b *Block) ID() int64 { return b.id }

// SetID replaces the block ID.
func (b *Block) SetID(id int64) { b.id = id }

// NumBytes returns the current known length of the block's data.
func (b *Block) NumBytes() int64 { return b.numBytes }

// SetNumBytes replaces the block length.
func (b *Block) SetNumBytes(numBytes int64) { b.numBytes = numBytes }

// GenerationStamp returns the block's generation stamp.
func (b *Block) GenerationStamp() int64 { return b.genStamp }

// SetGenerationStamp replaces the generation stamp.
func (b *Block) SetGenerationStamp(genStamp int64) { b.genStamp = genStamp }

// Checksum returns a copy of the checksum bytes, or nil when absent.
func (b *Block) Checksum() []byte { return cloneChecksum(b.checksum) }

// SetChecksum replaces the checksum. The bytes are copied; passing nil
// clears the checksum.
func (b *Block) SetChecksum(checksum []byte) { b.checksum = cloneChecksum(checksum) }

// BlockName returns the block file name, e.g. blk_1, blk_2, blk_-17.
func (b *Block) BlockName() string {
	return BlockFilePrefix + strconv.FormatInt(b.id, 10)
}

// String renders the block as blk_<id>_<genstamp>, with the checksum text
// form appended when a checksum is present.
func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString(BlockFilePrefix)
	sb.WriteString(strconv.FormatInt(b.id, 10))
	sb.WriteByte('_')
	sb.WriteString(strconv.FormatInt(b.genStamp, 10))
	if b.checksum != nil {
		sb.WriteString("--")
		sb.WriteString(b.ChecksumString())
	}
	return sb.String()
}

// Equal reports whether two blocks carry the same block ID. Length,
// generation stamp and checksum do not participate: identity tracks the
// block across version churn so it can key maps and sets.
func (b *Block) Equal(other *Block) bool {
	if b == other {
		return true
	}
	if b == nil || other == nil {
		return false
	}
	return b.id == other.id
}

// Compare orders blocks by block ID, ascending. It is a total order
// consistent with Equal.
func Compare(a, b *Block) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}

// Hash returns a 64-bit hash derived solely from the block ID, so blocks
// that compare equal always hash identically.
func (b *Block) Hash() uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(b.id))
	return xxhash.Sum64(buf[:])
}

// MatchingIDAndGenStamp is a stricter equivalence than Equal: both the
// block ID and the generation stamp must match. Two nil blocks match;
// a nil and a non-nil block do not.
func MatchingIDAndGenStamp(a, b *Block) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.id == b.id && a.genStamp == b.genStamp
}

func cloneChecksum(c []byte) []byte {
	if c == nil {
		return nil
	}
	out := make([]byte, len(c))
	copy(out, c)
	return out
}
