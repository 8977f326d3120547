// Package inventory persists snapshots of block descriptors. A snapshot is
// a framed, optionally compressed list of blocks in the standard block
// wire format, used to carry the result of a directory sweep between
// processes without rescanning.
package inventory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/blockfs-io/blockfs/pkg/block"
)

const (
	// Magic is a magic number to verify we're reading a valid inventory
	Magic = uint64(0xB10C1DEAB10C1DEA)
	// CurrentVersion is the current snapshot format version
	CurrentVersion = uint32(1)
	// headerSize covers magic, version, codec byte and payload checksum
	headerSize = 21
)

var (
	// ErrCorruptInventory is returned when a snapshot fails framing or
	// checksum validation
	ErrCorruptInventory = errors.New("corrupt inventory")

	// ErrUnknownCodec is returned when an unsupported compression codec
	// is specified or encountered
	ErrUnknownCodec = errors.New("unknown compression codec")
)

// CompressionCodec selects how the snapshot payload is compressed.
type CompressionCodec uint8

const (
	CompressionNone CompressionCodec = iota
	CompressionSnappy
	CompressionZstd
)

// String returns the codec name used in configuration files.
func (c CompressionCodec) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCompressionCodec maps a configuration name to a codec.
func ParseCompressionCodec(name string) (CompressionCodec, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Write serializes a snapshot of blocks to w.
//
// Layout: magic (8), version (4), codec (1), xxhash64 of the uncompressed
// payload (8), then the payload compressed per codec. The payload is a
// uint32 entry count followed by each block in the full block wire format.
func Write(w io.Writer, blocks []*block.Block, codec CompressionCodec) error {
	var payload bytes.Buffer

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(blocks)))
	payload.Write(count[:])

	blockCodec := block.NewCodec()
	for _, b := range blocks {
		if err := blockCodec.WriteBlock(&payload, b); err != nil {
			return fmt.Errorf("failed to encode block %s: %w", b.BlockName(), err)
		}
	}

	sum := xxhash.Sum64(payload.Bytes())
	body, err := compress(payload.Bytes(), codec)
	if err != nil {
		return err
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0:8], Magic)
	binary.LittleEndian.PutUint32(header[8:12], CurrentVersion)
	header[12] = byte(codec)
	binary.LittleEndian.PutUint64(header[13:21], sum)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Read parses a snapshot from r and returns the blocks it carries.
// Framing, checksum and entry decoding are all strict: any mismatch
// aborts the read with an error.
func Read(r io.Reader) ([]*block.Block, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptInventory, err)
	}

	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != Magic {
		return nil, fmt.Errorf("%w: invalid magic %x, expected %x", ErrCorruptInventory, magic, Magic)
	}
	version := binary.LittleEndian.Uint32(header[8:12])
	if version != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptInventory, version)
	}
	codec := CompressionCodec(header[12])
	sum := binary.LittleEndian.Uint64(header[13:21])

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	payload, err := decompress(body, codec)
	if err != nil {
		return nil, err
	}

	if got := xxhash.Sum64(payload); got != sum {
		return nil, fmt.Errorf("%w: payload checksum mismatch: file has %d, calculated %d",
			ErrCorruptInventory, sum, got)
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: payload too small", ErrCorruptInventory)
	}

	count := binary.LittleEndian.Uint32(payload[:4])
	entries := bytes.NewReader(payload[4:])
	blockCodec := block.NewCodec()

	blocks := make([]*block.Block, 0, count)
	for i := uint32(0); i < count; i++ {
		b := &block.Block{}
		if err := blockCodec.ReadBlock(entries, b); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	if entries.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries",
			ErrCorruptInventory, entries.Len(), count)
	}

	return blocks, nil
}

// WriteFile writes a snapshot to a file, creating or truncating it.
func WriteFile(path string, blocks []*block.Block, codec CompressionCodec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create inventory file: %w", err)
	}
	if err := Write(f, blocks, codec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a snapshot from a file.
func ReadFile(path string) ([]*block.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func compress(data []byte, codec CompressionCodec) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil

	case CompressionSnappy:
		return snappy.Encode(nil, data), nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create ZSTD encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

func decompress(data []byte, codec CompressionCodec) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return data, nil

	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptInventory, err)
		}
		return out, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptInventory, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}
