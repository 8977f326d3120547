package block

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// fieldsSize covers blockId, numBytes and generationStamp
	fieldsSize = 24
	// idSize covers blockId and generationStamp in the partial codec
	idSize = 16
	// checksumLenSize is the length prefix of the checksum blob
	checksumLenSize = 4
)

// ErrCorruptBlock is returned when a serialized block carries a field no
// reader can honor. Decoding aborts; there is no partial recovery.
var ErrCorruptBlock = errors.New("corrupt block")

// CodecObserver receives a notification on every full block write or read.
// Implementations can log or meter the codec hot path without the codec
// depending on any particular logging subsystem.
type CodecObserver interface {
	// OnBlockWrite is called after a block has been fully serialized.
	OnBlockWrite(b *Block, checksumLen int)

	// OnBlockRead is called after a block has been fully deserialized.
	OnBlockRead(b *Block, checksumLen int)
}

type noopObserver struct{}

func (noopObserver) OnBlockWrite(*Block, int) {}
func (noopObserver) OnBlockRead(*Block, int)  {}

// Codec serializes blocks in the fixed wire layout:
//
//	blockId          int64, big-endian
//	numBytes         int64, big-endian
//	generationStamp  int64, big-endian
//	checksum length  int32, big-endian (0 means no checksum)
//	checksum bytes   raw, exactly the declared length
//
// The layout is shared with every existing reader and writer of block
// descriptors and must not change.
type Codec struct {
	obs CodecObserver
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithObserver attaches an observer to the codec. The default is a no-op.
func WithObserver(obs CodecObserver) CodecOption {
	return func(c *Codec) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// NewCodec creates a codec with the given options.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{obs: noopObserver{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WriteBlock serializes a full block description to w.
func (c *Codec) WriteBlock(w io.Writer, b *Block) error {
	buf := make([]byte, fieldsSize+checksumLenSize+len(b.checksum))
	binary.BigEndian.PutUint64(buf[0:8], uint64(b.id))
	binary.BigEndian.PutUint64(buf[8:16], uint64(b.numBytes))
	binary.BigEndian.PutUint64(buf[16:24], uint64(b.genStamp))
	binary.BigEndian.PutUint32(buf[24:28], uint32(len(b.checksum)))
	copy(buf[28:], b.checksum)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	c.obs.OnBlockWrite(b, len(b.checksum))
	return nil
}

// ReadBlock deserializes a full block description from r into b,
// overwriting all four fields. A negative length field aborts the read
// with ErrCorruptBlock; block ID and generation stamp are accepted as-is
// since the whole signed 64-bit domain is valid for them.
func (c *Codec) ReadBlock(r io.Reader, b *Block) error {
	var fields [fieldsSize]byte
	if _, err := io.ReadFull(r, fields[:]); err != nil {
		return err
	}
	id := int64(binary.BigEndian.Uint64(fields[0:8]))
	numBytes := int64(binary.BigEndian.Uint64(fields[8:16]))
	genStamp := int64(binary.BigEndian.Uint64(fields[16:24]))
	if numBytes < 0 {
		return fmt.Errorf("%w: unexpected block size %d", ErrCorruptBlock, numBytes)
	}

	var lenBuf [checksumLenSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	checksumLen := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if checksumLen < 0 {
		return fmt.Errorf("%w: unexpected checksum length %d", ErrCorruptBlock, checksumLen)
	}

	var checksum []byte
	if checksumLen > 0 {
		checksum = make([]byte, checksumLen)
		if _, err := io.ReadFull(r, checksum); err != nil {
			return err
		}
	}

	b.id = id
	b.numBytes = numBytes
	b.genStamp = genStamp
	b.checksum = checksum

	c.obs.OnBlockRead(b, int(checksumLen))
	return nil
}

// WriteBlockID serializes only the identifier part of a block: block ID
// followed by generation stamp, same encoding as the full codec. Callers
// that only need identity use this instead of a full description.
func (c *Codec) WriteBlockID(w io.Writer, b *Block) error {
	var buf [idSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(b.id))
	binary.BigEndian.PutUint64(buf[8:16], uint64(b.genStamp))
	_, err := w.Write(buf[:])
	return err
}

// ReadBlockID deserializes the identifier part of a block into b, leaving
// length and checksum untouched.
func (c *Codec) ReadBlockID(r io.Reader, b *Block) error {
	var buf [idSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	b.id = int64(binary.BigEndian.Uint64(buf[0:8]))
	b.genStamp = int64(binary.BigEndian.Uint64(buf[8:16]))
	return nil
}

// defaultCodec backs the convenience methods on Block. It carries no
// observer; callers that want codec observability construct their own
// Codec with WithObserver.
var defaultCodec = NewCodec()

// Write serializes the full block description to w.
func (b *Block) Write(w io.Writer) error { return defaultCodec.WriteBlock(w, b) }

// ReadFields deserializes a full block description from r into b.
func (b *Block) ReadFields(r io.Reader) error { return defaultCodec.ReadBlock(r, b) }

// WriteID serializes only the block ID and generation stamp to w.
func (b *Block) WriteID(w io.Writer) error { return defaultCodec.WriteBlockID(w, b) }

// ReadID deserializes only the block ID and generation stamp from r.
func (b *Block) ReadID(r io.Reader) error { return defaultCodec.ReadBlockID(r, b) }

// StreamSerializable is the capability a serialization framework needs to
// move a value through a byte stream.
type StreamSerializable interface {
	Write(w io.Writer) error
	ReadFields(r io.Reader) error
}

// Factory produces a fresh value for a deserialization framework to fill.
type Factory func() StreamSerializable

// BlockFactory is the Factory for Block values.
func BlockFactory() StreamSerializable { return new(Block) }

var _ StreamSerializable = (*Block)(nil)
