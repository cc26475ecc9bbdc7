package common

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// HashingWriter forwards writes to an underlying writer while keeping a
// running SHA-256 and byte count of everything written.
type HashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func NewHashingWriter(w io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: sha256.New()}
}

func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// Sum returns the hex digest of the bytes written so far.
func (hw *HashingWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

func (hw *HashingWriter) Size() int64 {
	return hw.n
}

func Sha256OfBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func Sha256OfFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	hw := NewHashingWriter(io.Discard)
	if _, err := io.Copy(hw, f); err != nil {
		return "", 0, err
	}
	return hw.Sum(), hw.Size(), nil
}
