// Package checksum computes content digests for protected workspace files.
//
// A file that does not exist is a valid observation here, not an error:
// the integrity scan must be able to report a deleted protected file
// instead of aborting on it. That state is modeled as an absent Digest
// rather than a sentinel string so callers cannot accidentally compare
// hex text against a marker value.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// missingLiteral is how an absent digest appears in the manifest JSON.
const missingLiteral = "missing"

// Digest is the recorded content hash of a single file: either the hex
// SHA-256 of its bytes, or absent when the file did not exist at hash
// time. The zero value is absent.
type Digest struct {
	hex string
}

// Known wraps an already-computed lowercase hex digest.
func Known(hexSum string) Digest {
	return Digest{hex: hexSum}
}

// Absent is the digest recorded for a file that does not exist.
func Absent() Digest {
	return Digest{}
}

// IsAbsent reports whether d records a missing file.
func (d Digest) IsAbsent() bool {
	return d.hex == ""
}

// Hex returns the hex form of a known digest, or "" when absent.
func (d Digest) Hex() string {
	return d.hex
}

// Equal reports whether two digests record the same observation.
func (d Digest) Equal(other Digest) bool {
	return d.hex == other.hex
}

func (d Digest) String() string {
	if d.IsAbsent() {
		return missingLiteral
	}
	return d.hex
}

// MarshalJSON writes the hex digest, or the manifest's "missing" literal
// for an absent file.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a hex digest or the "missing" literal.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("digest must be a JSON string: %w", err)
	}
	if raw == missingLiteral {
		*d = Absent()
		return nil
	}
	*d = Digest{hex: raw}
	return nil
}

// File hashes the file at path by streaming its contents through SHA-256.
// A nonexistent file yields an absent digest and no error.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Absent(), nil
	}
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Digest{hex: hex.EncodeToString(h.Sum(nil))}, nil
}

// Size returns the file's size in bytes, or nil when the file is absent.
func Size(path string) (*int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	n := info.Size()
	return &n, nil
}
