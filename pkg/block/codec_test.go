package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	checksum := bytes.Repeat([]byte{0xAB}, ChecksumLength)
	in := NewBlockWithChecksum(-12345, 4096, 17, checksum)

	var buf bytes.Buffer
	if err := in.Write(&buf); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}

	var out Block
	if err := out.ReadFields(&buf); err != nil {
		t.Fatalf("Failed to read block: %v", err)
	}

	if out.ID() != in.ID() {
		t.Errorf("ID mismatch: got %d, expected %d", out.ID(), in.ID())
	}
	if out.NumBytes() != in.NumBytes() {
		t.Errorf("NumBytes mismatch: got %d, expected %d", out.NumBytes(), in.NumBytes())
	}
	if out.GenerationStamp() != in.GenerationStamp() {
		t.Errorf("GenerationStamp mismatch: got %d, expected %d", out.GenerationStamp(), in.GenerationStamp())
	}
	if !bytes.Equal(out.Checksum(), in.Checksum()) {
		t.Errorf("Checksum mismatch: got %x, expected %x", out.Checksum(), in.Checksum())
	}
}

func TestCodecRoundTripNoChecksum(t *testing.T) {
	in := NewBlock(7, 0, GrandfatherGenerationStamp)

	var buf bytes.Buffer
	if err := in.Write(&buf); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}

	// Absence is 24 field bytes plus a zero length prefix, nothing more
	if buf.Len() != fieldsSize+checksumLenSize {
		t.Errorf("Encoded size is %d, expected %d", buf.Len(), fieldsSize+checksumLenSize)
	}

	// Reading must overwrite a stale checksum with absence
	out := NewBlockWithChecksum(0, 0, 0, []byte{1, 2, 3})
	if err := out.ReadFields(&buf); err != nil {
		t.Fatalf("Failed to read block: %v", err)
	}
	if out.Checksum() != nil {
		t.Errorf("Absent checksum did not round-trip: got %x", out.Checksum())
	}
	if out.ChecksumString() != NoChecksum {
		t.Errorf("ChecksumString: got %q, expected %q", out.ChecksumString(), NoChecksum)
	}
}

func TestCodecWireLayout(t *testing.T) {
	in := NewBlockWithChecksum(1, 2, 3, []byte{0xDE, 0xAD})

	var buf bytes.Buffer
	if err := in.Write(&buf); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}

	data := buf.Bytes()
	if got := int64(binary.BigEndian.Uint64(data[0:8])); got != 1 {
		t.Errorf("blockId field: got %d", got)
	}
	if got := int64(binary.BigEndian.Uint64(data[8:16])); got != 2 {
		t.Errorf("numBytes field: got %d", got)
	}
	if got := int64(binary.BigEndian.Uint64(data[16:24])); got != 3 {
		t.Errorf("generationStamp field: got %d", got)
	}
	if got := int32(binary.BigEndian.Uint32(data[24:28])); got != 2 {
		t.Errorf("checksum length field: got %d", got)
	}
	if !bytes.Equal(data[28:], []byte{0xDE, 0xAD}) {
		t.Errorf("checksum bytes: got %x", data[28:])
	}
}

func TestIDCodecRoundTrip(t *testing.T) {
	in := NewBlock(-99, 12345, 42)

	var buf bytes.Buffer
	if err := in.WriteID(&buf); err != nil {
		t.Fatalf("Failed to write block ID: %v", err)
	}
	if buf.Len() != idSize {
		t.Errorf("ID encoding is %d bytes, expected %d", buf.Len(), idSize)
	}

	out := NewBlock(0, 777, 0)
	if err := out.ReadID(&buf); err != nil {
		t.Fatalf("Failed to read block ID: %v", err)
	}
	if out.ID() != -99 {
		t.Errorf("ID mismatch: got %d, expected -99", out.ID())
	}
	if out.GenerationStamp() != 42 {
		t.Errorf("GenerationStamp mismatch: got %d, expected 42", out.GenerationStamp())
	}
	// The partial codec carries identity only
	if out.NumBytes() != 777 {
		t.Errorf("ReadID touched NumBytes: got %d", out.NumBytes())
	}
}

func TestReadRejectsNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int64(1))  // blockId
	binary.Write(&buf, binary.BigEndian, int64(-5)) // numBytes, corrupt
	binary.Write(&buf, binary.BigEndian, int64(2))  // generationStamp
	binary.Write(&buf, binary.BigEndian, int32(0))  // checksum length

	var out Block
	err := out.ReadFields(&buf)
	if err == nil {
		t.Fatalf("Expected an error decoding a negative block size, got none")
	}
	if !errors.Is(err, ErrCorruptBlock) {
		t.Errorf("Expected ErrCorruptBlock, got %v", err)
	}
}

func TestReadRejectsNegativeChecksumLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int64(1))
	binary.Write(&buf, binary.BigEndian, int64(5))
	binary.Write(&buf, binary.BigEndian, int64(2))
	binary.Write(&buf, binary.BigEndian, int32(-1))

	var out Block
	err := out.ReadFields(&buf)
	if !errors.Is(err, ErrCorruptBlock) {
		t.Errorf("Expected ErrCorruptBlock for a negative checksum length, got %v", err)
	}
}

func TestReadTruncatedStream(t *testing.T) {
	full := NewBlockWithChecksum(1, 2, 3, bytes.Repeat([]byte{1}, ChecksumLength))
	var buf bytes.Buffer
	if err := full.Write(&buf); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}
	data := buf.Bytes()

	for _, cut := range []int{0, 10, fieldsSize, fieldsSize + 2, len(data) - 1} {
		var out Block
		err := out.ReadFields(bytes.NewReader(data[:cut]))
		if err == nil {
			t.Errorf("Expected an error reading a stream truncated at %d bytes", cut)
		}
	}
}

type recordingObserver struct {
	writes int
	reads  int
	lastCk int
}

func (o *recordingObserver) OnBlockWrite(b *Block, checksumLen int) {
	o.writes++
	o.lastCk = checksumLen
}

func (o *recordingObserver) OnBlockRead(b *Block, checksumLen int) {
	o.reads++
	o.lastCk = checksumLen
}

func TestCodecObserver(t *testing.T) {
	obs := &recordingObserver{}
	codec := NewCodec(WithObserver(obs))

	in := NewBlockWithChecksum(1, 2, 3, []byte{1, 2, 3, 4})
	var buf bytes.Buffer
	if err := codec.WriteBlock(&buf, in); err != nil {
		t.Fatalf("Failed to write block: %v", err)
	}
	if obs.writes != 1 || obs.lastCk != 4 {
		t.Errorf("Observer saw writes=%d ck=%d, expected 1 and 4", obs.writes, obs.lastCk)
	}

	var out Block
	if err := codec.ReadBlock(&buf, &out); err != nil {
		t.Fatalf("Failed to read block: %v", err)
	}
	if obs.reads != 1 {
		t.Errorf("Observer saw reads=%d, expected 1", obs.reads)
	}

	// A failed write must not notify
	if err := codec.WriteBlock(failingWriter{}, in); err == nil {
		t.Fatalf("Expected a write error")
	}
	if obs.writes != 1 {
		t.Errorf("Observer notified on a failed write")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestEndToEndDescribeSerializeRestore(t *testing.T) {
	digest := sha256.Sum256([]byte("block payload"))

	b := NewBlock(7, 100, 2)
	b.SetChecksum(digest[:])

	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var restored Block
	if err := restored.ReadFields(&buf); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	if restored.ID() != 7 || restored.NumBytes() != 100 || restored.GenerationStamp() != 2 {
		t.Errorf("Field mismatch after round trip: %v", &restored)
	}
	if !bytes.Equal(restored.Checksum(), digest[:]) {
		t.Errorf("Checksum mismatch after round trip")
	}
}
