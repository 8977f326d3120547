package block

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestComputeChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk_1")

	// Larger than one read chunk so the streaming loop runs more than once
	payload := bytes.Repeat([]byte("block data "), 2000)
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	got := ComputeChecksum(path)
	want := sha256.Sum256(payload)

	if len(got) != ChecksumLength {
		t.Fatalf("Checksum length is %d, expected %d", len(got), ChecksumLength)
	}
	if !bytes.Equal(got, want[:]) {
		t.Errorf("Checksum mismatch: got %x, expected %x", got, want)
	}
}

func TestComputeChecksumMissingFile(t *testing.T) {
	// Best-effort contract: an unreadable file yields absence, not an error
	got := ComputeChecksum(filepath.Join(t.TempDir(), "does-not-exist"))
	if got != nil {
		t.Errorf("Expected no checksum for a missing file, got %x", got)
	}
}

func TestChecksumTextRoundTrip(t *testing.T) {
	digest := sha256.Sum256([]byte("payload"))

	encoded := EncodeChecksum(digest[:])
	decoded, err := DecodeChecksum(encoded)
	if err != nil {
		t.Fatalf("Failed to decode checksum text: %v", err)
	}
	if !bytes.Equal(decoded, digest[:]) {
		t.Errorf("Text round trip mismatch: got %x, expected %x", decoded, digest)
	}

	// URL-safe alphabet, no padding
	for _, c := range []byte{'+', '/', '='} {
		if bytes.IndexByte([]byte(encoded), c) >= 0 {
			t.Errorf("Encoded checksum %q contains forbidden character %q", encoded, c)
		}
	}
}

func TestChecksumString(t *testing.T) {
	b := NewBlock(1, 2, 3)
	if got := b.ChecksumString(); got != NoChecksum {
		t.Errorf("ChecksumString without a checksum: got %q, expected %q", got, NoChecksum)
	}

	digest := sha256.Sum256([]byte("payload"))
	b.SetChecksum(digest[:])
	if got := b.ChecksumString(); got != EncodeChecksum(digest[:]) {
		t.Errorf("ChecksumString: got %q", got)
	}
}

func TestSetChecksumString(t *testing.T) {
	digest := sha256.Sum256([]byte("payload"))

	b := NewBlock(1, 2, 3)
	if err := b.SetChecksumString(EncodeChecksum(digest[:])); err != nil {
		t.Fatalf("Failed to set checksum from text: %v", err)
	}
	if !bytes.Equal(b.Checksum(), digest[:]) {
		t.Errorf("Checksum mismatch after SetChecksumString")
	}

	// The nochecksum token is a no-op and preserves the prior checksum
	if err := b.SetChecksumString(NoChecksum); err != nil {
		t.Fatalf("SetChecksumString(NoChecksum) returned %v", err)
	}
	if !bytes.Equal(b.Checksum(), digest[:]) {
		t.Errorf("NoChecksum token overwrote an existing checksum")
	}

	if err := b.SetChecksumString("!!! not base64 !!!"); err == nil {
		t.Errorf("Expected an error for malformed checksum text")
	}
}

func TestSetChecksumFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk_9")
	payload := []byte("nine")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	b := NewBlock(9, int64(len(payload)), 1)
	b.SetChecksumFromFile(path)

	want := sha256.Sum256(payload)
	if !bytes.Equal(b.Checksum(), want[:]) {
		t.Errorf("Checksum mismatch: got %x, expected %x", b.Checksum(), want)
	}

	// An unreadable file clears the checksum
	b.SetChecksumFromFile(filepath.Join(dir, "missing"))
	if b.Checksum() != nil {
		t.Errorf("Expected the checksum to clear for an unreadable file")
	}
}

func TestNewBlockFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blk_4711")
	payload := []byte("contents")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	b := NewBlockFromFile(path, int64(len(payload)), 3)
	if b.ID() != 4711 {
		t.Errorf("ID parsed from filename: got %d, expected 4711", b.ID())
	}
	if b.GenerationStamp() != 3 {
		t.Errorf("GenerationStamp: got %d, expected 3", b.GenerationStamp())
	}

	want := sha256.Sum256(payload)
	if !bytes.Equal(b.Checksum(), want[:]) {
		t.Errorf("Checksum mismatch: got %x", b.Checksum())
	}
}
