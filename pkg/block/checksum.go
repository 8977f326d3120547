package block

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"
)

// checksumChunkSize is the read granularity when digesting a file.
const checksumChunkSize = 8192

// checksumEncoding is the text form of checksums wherever they appear in
// protocol text or debug output: URL-safe base64 with no padding. Both
// sides of the system must use the same variant.
var checksumEncoding = base64.RawURLEncoding

// ComputeChecksum streams the file at path through SHA-256 and returns the
// 32-byte digest. This is a best-effort path: any I/O failure yields nil
// ("no checksum") instead of an error, unlike the strict decode path of
// the codec. The read is synchronous with no timeout; callers needing
// bounded latency must wrap it.
func ComputeChecksum(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, checksumChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil
		}
	}
	return h.Sum(nil)
}

// EncodeChecksum renders checksum bytes in the canonical text form.
func EncodeChecksum(c []byte) string {
	return checksumEncoding.EncodeToString(c)
}

// DecodeChecksum parses the canonical text form back into checksum bytes.
func DecodeChecksum(s string) ([]byte, error) {
	return checksumEncoding.DecodeString(s)
}

// ChecksumString returns the checksum in text form, or the NoChecksum
// token when the block carries none.
func (b *Block) ChecksumString() string {
	if b.checksum == nil {
		return NoChecksum
	}
	return EncodeChecksum(b.checksum)
}

// SetChecksumString stores a checksum given in text form. The NoChecksum
// token is a no-op and leaves any existing checksum in place.
func (b *Block) SetChecksumString(s string) error {
	if s == NoChecksum {
		return nil
	}
	c, err := DecodeChecksum(s)
	if err != nil {
		return err
	}
	b.checksum = c
	return nil
}

// SetChecksumFromFile computes and stores the checksum of the file at
// path, clearing the checksum if the file cannot be read.
func (b *Block) SetChecksumFromFile(path string) {
	b.checksum = ComputeChecksum(path)
}
